package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"countryfilter/internal/badge"
	"countryfilter/internal/bridge"
	"countryfilter/internal/engine"
	"countryfilter/internal/inbox"
	"countryfilter/internal/messaging"
	"countryfilter/internal/metrics"
	"countryfilter/internal/models"
	"countryfilter/internal/routing"
	"countryfilter/internal/settings"
	"countryfilter/internal/tracing"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var inboxDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and the surface bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("inbox") {
				a.cfg.Inbox = inboxDir
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&inboxDir, "inbox", "", "directory watched for HTML fragments (COUNTRYFILTER_INBOX)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log.Info().Msg("Starting countryfilter")

	if cfg.OTelEnabled {
		tp, err := tracing.Init(ctx, cfg.OTelEndpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Tracing disabled")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = tp.Shutdown(sctx)
			}()
			log.Info().Str("endpoint", cfg.OTelEndpoint).Msg("Tracing enabled")
		}
	}

	store, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer closeQuietly(store)
	log.Info().Str("path", cfg.DBPath).Str("backend", cfg.Store).Msg("Database opened")

	if _, err := settings.New(store, engine.DefaultOrigin).Bootstrap(ctx); err != nil {
		return err
	}

	// the server needs the engine as handler and the engine needs the
	// server as broadcaster
	var eng *engine.Engine
	srv, err := bridge.NewServer(bridge.HandlerFunc(func(ctx context.Context, req messaging.Request) (messaging.Response, error) {
		return eng.Handle(ctx, req)
	}), cfg.ReplyTimeout)
	if err != nil {
		return err
	}

	ctrl := &badge.Controller{OnChange: func(s badge.State) {
		log.Debug().Str("text", s.Text).Msg("Badge updated")
	}}
	eng = engine.New(engine.Config{
		Store:       store,
		Broadcaster: engine.Broadcasters{srv, ctrl},
		CacheSize:   cfg.ClassifierCache,
	})

	httpSrv := &http.Server{
		Addr: cfg.Addr,
		Handler: routing.SetupRouter(routing.Config{
			Bridge: srv,
			Ready:  readyFunc(eng.Ready()),
			Logger: log.Logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return eng.Run(gctx) })

	g.Go(func() error {
		log.Info().Str("address", cfg.Addr).Str("url", cfg.BridgeURL()).Msg("Starting HTTP server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Close()
		return httpSrv.Shutdown(sctx)
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-eng.Ready():
		}
		metrics.StartCollector(gctx, statsSource(eng), cfg.MetricsInterval)
		return nil
	})

	if cfg.Inbox != "" {
		in := inbox.New(cfg.Inbox, cfg.MaxFragmentSize, eng)
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case <-eng.Ready():
			}
			return in.Run(gctx)
		})
	}

	if cfg.SnapshotPath != "" {
		g.Go(func() error {
			return snapshotLoop(gctx, eng, cfg.SnapshotPath, cfg.MetricsInterval)
		})
	}

	err = g.Wait()
	log.Info().Msg("countryfilter stopped")
	return err
}

func readyFunc(ready <-chan struct{}) func() bool {
	return func() bool {
		select {
		case <-ready:
			return true
		default:
			return false
		}
	}
}

func statsSource(eng *engine.Engine) metrics.StatsSource {
	stats := func() models.Stats {
		st, _ := eng.Stats()
		return st
	}
	return metrics.StatsSource{
		TotalScanned: func() uint64 { return stats().TotalScanned },
		Hidden:       func() uint64 { return stats().Hidden },
		WithLocation: func() uint64 { return stats().WithLocation },
		DetectedCountries: func() map[string]uint64 {
			_, detected := eng.Stats()
			return detected
		},
		FilteredItems: eng.FilteredCount,
	}
}

// snapshotLoop rewrites the rendered document at path every interval
func snapshotLoop(ctx context.Context, eng *engine.Engine, path string, interval time.Duration) error {
	select {
	case <-ctx.Done():
		return nil
	case <-eng.Ready():
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			html, err := eng.Snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Msg("Snapshot failed")
				continue
			}
			if err := writeSnapshot(path, html); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Snapshot write failed")
			}
		}
	}
}
