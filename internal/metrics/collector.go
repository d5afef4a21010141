package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current values for gauge metrics.
// Nil functions are skipped.
type StatsSource struct {
	TotalScanned      func() uint64
	Hidden            func() uint64
	WithLocation      func() uint64
	DetectedCountries func() map[string]uint64
	FilteredItems     func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.TotalScanned != nil {
		StatsTotalScanned.Set(float64(src.TotalScanned()))
	}
	if src.Hidden != nil {
		StatsHidden.Set(float64(src.Hidden()))
	}
	if src.WithLocation != nil {
		StatsWithLocation.Set(float64(src.WithLocation()))
	}
	if src.DetectedCountries != nil {
		for country, count := range src.DetectedCountries() {
			DetectedCountries.WithLabelValues(country).Set(float64(count))
		}
	}
	if src.FilteredItems != nil {
		FilteredItems.Set(float64(src.FilteredItems()))
	}
}
