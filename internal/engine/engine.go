// Package engine owns the live document and runs every scan, message and
// settings change on one goroutine, so the pipeline never runs in
// parallel with itself.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"countryfilter/internal/classifier"
	"countryfilter/internal/database"
	"countryfilter/internal/filter"
	"countryfilter/internal/messaging"
	"countryfilter/internal/metrics"
	"countryfilter/internal/models"
	"countryfilter/internal/scanner"
	"countryfilter/internal/settings"
	"countryfilter/internal/stats"
	"countryfilter/internal/tracing"
	"countryfilter/internal/tree"

	"github.com/rs/zerolog/log"
)

// DefaultOrigin identifies the engine's own store writes.
const DefaultOrigin = "content"

// ErrStopped is returned when the loop is no longer running.
var ErrStopped = errors.New("engine: stopped")

// Broadcaster delivers outbound notifications to surfaces.
type Broadcaster interface {
	Broadcast(messaging.Outbound)
}

// Broadcasters fans a notification out to several broadcasters.
type Broadcasters []Broadcaster

func (bs Broadcasters) Broadcast(o messaging.Outbound) {
	for _, b := range bs {
		b.Broadcast(o)
	}
}

// Config holds the collaborators of an Engine.
type Config struct {
	Store       database.Store
	Origin      string
	Document    *tree.Document
	Broadcaster Broadcaster
	CacheSize   int
}

// Engine is the content surface.
type Engine struct {
	store       database.Store
	origin      string
	settings    *settings.Store
	doc         *tree.Document
	scanner     *scanner.Scanner
	stats       *stats.Aggregator
	broadcaster Broadcaster

	// loop state, touched only by Run
	current models.Settings
	later   []func(context.Context)

	work     chan func(context.Context)
	ready    chan struct{}
	done     chan struct{}
	filtered atomic.Int64
}

// New wires an engine. Nothing runs until Run is called.
func New(cfg Config) *Engine {
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Document == nil {
		cfg.Document = tree.New()
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = classifier.DefaultCacheSize
	}

	agg := stats.New(cfg.Store, cfg.Origin)
	e := &Engine{
		store:       cfg.Store,
		origin:      cfg.Origin,
		settings:    settings.New(cfg.Store, cfg.Origin),
		doc:         cfg.Document,
		stats:       agg,
		broadcaster: cfg.Broadcaster,
		current:     models.DefaultSettings(),
		work:        make(chan func(context.Context)),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
	}
	e.scanner = scanner.New(cfg.Document, filter.New(cfg.Document), classifier.New(cfg.CacheSize), agg)
	agg.OnHidden(e.hidden)
	return e
}

// Ready is closed once startup has completed and requests are served.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Stats returns the current counters. Safe from any goroutine.
func (e *Engine) Stats() (models.Stats, models.DetectedCountries) {
	return e.stats.Snapshot()
}

// FilteredCount is the number of filtered items after the last event.
// Safe from any goroutine.
func (e *Engine) FilteredCount() int {
	return int(e.filtered.Load())
}

// Run loads state, scans the document and then serves events until ctx
// is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	changes := e.store.Watch(ctx)
	if err := e.start(ctx); err != nil {
		return err
	}
	close(e.ready)
	log.Info().Str("origin", e.origin).Msg("engine: running")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine: stopping")
			return nil
		case fn := <-e.work:
			fn(ctx)
		case c, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("engine: store watch closed: %w", database.ErrClosed)
			}
			e.storeChanged(ctx, c)
		}
		e.settle(ctx)
	}
}

func (e *Engine) start(ctx context.Context) error {
	current, err := e.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.stats.Load(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.current = current
	e.scanner.SetSettings(current)
	e.scanner.Observe(ctx)

	ctx, span := tracing.ScanSpan(ctx, "scan")
	n := e.scanner.ScanAll(ctx)
	span.End()
	e.settle(ctx)

	log.Info().
		Int("items", n).
		Bool("enabled", current.Enabled).
		Uint64("version", current.Version).
		Msg("engine: initial scan complete")
	e.sendBadge()
	return nil
}

// settle delivers pending tree mutations and runs work deferred until
// after the current event.
func (e *Engine) settle(ctx context.Context) {
	for e.doc.Pending() > 0 || len(e.later) > 0 {
		e.doc.Flush()
		later := e.later
		e.later = nil
		for _, fn := range later {
			fn(ctx)
		}
	}
	e.filtered.Store(int64(e.scanner.FilteredCount()))
}

func (e *Engine) storeChanged(ctx context.Context, c database.Change) {
	if c.Origin == e.origin {
		return
	}
	switch c.Key {
	case database.KeySettings:
		s, err := settings.Decode(c.Value)
		if err != nil {
			log.Warn().Err(err).Str("origin", c.Origin).Msg("engine: ignoring unreadable settings change")
			return
		}
		e.applySettings(ctx, s)
	case database.KeyFilterStats:
		var st models.Stats
		if err := json.Unmarshal(c.Value, &st); err != nil {
			log.Warn().Err(err).Msg("engine: ignoring unreadable stats change")
			return
		}
		e.stats.Adopt(st)
	}
}

// applySettings switches to s if it is newer than the cached settings,
// then reverts every item and scans again. It reports whether s was applied.
func (e *Engine) applySettings(ctx context.Context, s models.Settings) bool {
	if s.Version <= e.current.Version {
		log.Debug().
			Uint64("version", s.Version).
			Uint64("current", e.current.Version).
			Msg("engine: ignoring stale settings")
		return false
	}
	e.current = s.Clone()
	e.scanner.SetSettings(e.current)

	ctx, span := tracing.ScanSpan(ctx, "rescan")
	defer span.End()

	metrics.RescansTotal.Inc()
	if !e.current.Enabled {
		// a disabled filter hides nothing
		e.scanner.UncountHidden()
		e.stats.ClearHidden(ctx)
	}
	reverted := e.scanner.RevertAll()
	e.doc.Flush()
	scanned := e.scanner.ScanAll(ctx)

	log.Info().
		Uint64("version", s.Version).
		Int("reverted", reverted).
		Int("scanned", scanned).
		Msg("engine: settings applied")
	e.sendBadge()
	return true
}

// hidden is the stats hook fired after each hide and after a reset
func (e *Engine) hidden(count uint64) {
	if !e.current.Enabled {
		count = 0
	}
	e.broadcast(count)
}

func (e *Engine) sendBadge() {
	if !e.current.Enabled {
		e.broadcast(0)
		return
	}
	e.broadcast(e.stats.Stats().Hidden)
}

func (e *Engine) broadcast(count uint64) {
	if e.broadcaster == nil {
		return
	}
	metrics.BadgeUpdatesTotal.Inc()
	e.broadcaster.Broadcast(messaging.Outbound{Action: messaging.ActionUpdateBadge, Count: count})
}

// post runs fn on the loop and waits for it to finish. It returns
// messaging.ErrNoReply when ctx ends first.
func (e *Engine) post(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	job := func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}

	select {
	case e.work <- job:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return messaging.ErrNoReply
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return messaging.ErrNoReply
	}
}

// Render appends an HTML fragment to the document body. Items in it are
// picked up by the mutation observer.
func (e *Engine) Render(ctx context.Context, fragment string) error {
	var err error
	if perr := e.post(ctx, func(context.Context) {
		_, err = e.doc.AppendHTML(e.doc.Body(), fragment)
	}); perr != nil {
		return perr
	}
	return err
}

// Snapshot renders the current document.
func (e *Engine) Snapshot(ctx context.Context) (string, error) {
	var out string
	err := e.post(ctx, func(context.Context) {
		e.doc.Flush()
		out = e.doc.String()
	})
	return out, err
}
