package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countryfilter_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "countryfilter_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Scanner metrics
var (
	ItemsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "countryfilter_items_scanned_total",
		Help: "Total number of content items classified",
	})

	ItemsHiddenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countryfilter_items_hidden_total",
		Help: "Total number of content items hidden, by matching rule",
	}, []string{"reason"})

	LocationsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countryfilter_locations_detected_total",
		Help: "Total number of items with a recognized country",
	}, []string{"country"})

	RescansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "countryfilter_rescans_total",
		Help: "Total number of revert-and-rescan cycles triggered by settings changes",
	})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "countryfilter_scan_duration_seconds",
		Help:    "Duration of full-tree scans in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// Messaging metrics
var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countryfilter_messages_total",
		Help: "Total number of surface messages handled",
	}, []string{"action", "result"})

	BridgeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countryfilter_bridge_connections",
		Help: "Number of connected surfaces",
	})

	BadgeUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "countryfilter_badge_updates_total",
		Help: "Total number of badge count notifications sent",
	})
)

// Storage metrics
var (
	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "countryfilter_store_writes_total",
		Help: "Total number of committed store writes",
	}, []string{"key"})
)

// Persisted counters (gauges updated periodically by collector)
var (
	StatsTotalScanned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countryfilter_stats_total_scanned",
		Help: "Persisted totalScanned counter",
	})

	StatsHidden = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countryfilter_stats_hidden",
		Help: "Persisted hidden counter",
	})

	StatsWithLocation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countryfilter_stats_with_location",
		Help: "Persisted withLocation counter",
	})

	DetectedCountries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "countryfilter_detected_countries",
		Help: "Occurrences per detected country",
	}, []string{"country"})

	FilteredItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "countryfilter_filtered_items",
		Help: "Number of items currently filtered in the document",
	})
)

// knownPaths are the routes served by the bridge; anything else is
// collapsed to keep the label space bounded.
var knownPaths = map[string]bool{
	"/ws":      true,
	"/metrics": true,
	"/healthz": true,
}

// NormalizePath reduces high-cardinality path labels.
func NormalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}
