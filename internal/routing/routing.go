package routing

import (
	"net/http"

	"countryfilter/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the configuration needed for setting up routes.
type Config struct {
	// Bridge serves surface websocket connections.
	Bridge http.Handler
	// Ready reports whether the engine has finished its startup scan.
	Ready  func() bool
	Logger zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware.
func SetupRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	// The websocket route is left out of otelhttp so the upgrader can
	// hijack the connection directly.
	mux.Handle("GET /ws", cfg.Bridge)

	mux.Handle("GET /metrics", otelhttp.NewHandler(promhttp.Handler(), "metrics"))
	mux.Handle("GET /healthz", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil && !cfg.Ready() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}), "healthz"))

	return middleware.LoggingMiddleware(cfg.Logger)(mux)
}
