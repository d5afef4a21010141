// Package stats keeps the filter counters and the per-country tally and
// persists them to the shared store.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"countryfilter/internal/database"
	"countryfilter/internal/metrics"
	"countryfilter/internal/models"

	"github.com/rs/zerolog/log"
)

// persistEvery is how many scans may pass between filterStats writes when
// nothing is hidden.
const persistEvery = 10

// Aggregator counts scanner events. Persistence failures are logged and
// never interrupt a scan.
type Aggregator struct {
	store  database.Store
	origin string

	mu       sync.Mutex
	stats    models.Stats
	detected models.DetectedCountries
	onHidden func(hidden uint64)
}

// New creates an aggregator writing to store on behalf of origin.
func New(store database.Store, origin string) *Aggregator {
	return &Aggregator{
		store:    store,
		origin:   origin,
		detected: models.DetectedCountries{},
	}
}

// OnHidden registers a hook called with the new hidden count after every
// hide and after Reset.
func (a *Aggregator) OnHidden(fn func(hidden uint64)) {
	a.mu.Lock()
	a.onHidden = fn
	a.mu.Unlock()
}

// Load restores both records from the store. Absent or unreadable values
// leave zero defaults in place.
func (a *Aggregator) Load(ctx context.Context) error {
	var st models.Stats
	if err := a.load(ctx, database.KeyFilterStats, &st); err != nil {
		return err
	}
	detected := models.DetectedCountries{}
	if err := a.load(ctx, database.KeyDetectedCountries, &detected); err != nil {
		return err
	}
	if detected == nil {
		detected = models.DetectedCountries{}
	}

	a.mu.Lock()
	a.stats = st
	a.detected = detected
	a.mu.Unlock()
	return nil
}

func (a *Aggregator) load(ctx context.Context, key string, v any) error {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("stats: ignoring unreadable stored value")
	}
	return nil
}

// RecordScan counts one newly scanned item.
func (a *Aggregator) RecordScan(ctx context.Context) {
	a.mu.Lock()
	a.stats.TotalScanned++
	due := a.stats.TotalScanned%persistEvery == 0
	st := a.stats
	a.mu.Unlock()

	metrics.ItemsScannedTotal.Inc()
	if due {
		a.persistStats(ctx, st)
	}
}

// RecordLocationFound counts an item whose author location resolved to
// country and persists the tally right away.
func (a *Aggregator) RecordLocationFound(ctx context.Context, country string) {
	a.mu.Lock()
	a.stats.WithLocation++
	a.detected[country]++
	detected := a.detected.Clone()
	a.mu.Unlock()

	metrics.LocationsDetectedTotal.WithLabelValues(country).Inc()
	a.persist(ctx, database.KeyDetectedCountries, detected)
}

// RecordHidden counts a newly hidden item, persists the counters and
// fires the hidden hook.
func (a *Aggregator) RecordHidden(ctx context.Context, kind models.ReasonKind) {
	a.mu.Lock()
	a.stats.Hidden++
	st := a.stats
	hook := a.onHidden
	a.mu.Unlock()

	metrics.ItemsHiddenTotal.WithLabelValues(string(kind)).Inc()
	a.persistStats(ctx, st)
	if hook != nil {
		hook(st.Hidden)
	}
}

// Reset zeroes the counters. The per-country tally is kept.
func (a *Aggregator) Reset(ctx context.Context) error {
	a.mu.Lock()
	a.stats = models.Stats{}
	hook := a.onHidden
	a.mu.Unlock()

	if err := a.write(ctx, database.KeyFilterStats, models.Stats{}); err != nil {
		return err
	}
	if hook != nil {
		hook(0)
	}
	return nil
}

// ClearHidden zeroes the hidden counter only, persists the counters and
// fires the hidden hook with 0.
func (a *Aggregator) ClearHidden(ctx context.Context) {
	a.mu.Lock()
	a.stats.Hidden = 0
	st := a.stats
	hook := a.onHidden
	a.mu.Unlock()

	a.persistStats(ctx, st)
	if hook != nil {
		hook(0)
	}
}

// Adopt replaces the counters with a value written by another surface.
func (a *Aggregator) Adopt(st models.Stats) {
	a.mu.Lock()
	a.stats = st
	a.mu.Unlock()
}

// Stats returns a copy of the counters.
func (a *Aggregator) Stats() models.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Snapshot returns copies of the counters and the per-country tally.
func (a *Aggregator) Snapshot() (models.Stats, models.DetectedCountries) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats, a.detected.Clone()
}

func (a *Aggregator) persistStats(ctx context.Context, st models.Stats) {
	a.persist(ctx, database.KeyFilterStats, st)
}

func (a *Aggregator) persist(ctx context.Context, key string, v any) {
	if err := a.write(ctx, key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("stats: failed to persist")
	}
}

func (a *Aggregator) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.store.Set(ctx, a.origin, key, data); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
