// Package settings loads, saves and watches the shared rule configuration.
// Every save bumps Settings.Version inside the store transaction so that
// surfaces can drop notifications older than what they already hold.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"countryfilter/internal/classifier"
	"countryfilter/internal/database"
	"countryfilter/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrVersionConflict is returned by SaveIfVersion when another surface
// saved in between.
var ErrVersionConflict = errors.New("settings: version conflict")

// errPresent aborts a bootstrap update when the key already exists
var errPresent = errors.New("value present")

// Store wraps the KV store with settings encoding and versioning.
type Store struct {
	db     database.Store
	origin string
	now    func() time.Time
}

// New returns a settings store writing on behalf of origin.
func New(db database.Store, origin string) *Store {
	return &Store{db: db, origin: origin, now: time.Now}
}

// Origin is the writer identity used for this store's saves.
func (s *Store) Origin() string { return s.origin }

// Decode merges a stored JSON value over the defaults. Unknown filter
// modes fall back to dimmed.
func Decode(data []byte) (models.Settings, error) {
	out := models.DefaultSettings()
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return models.DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	if _, err := models.ParseFilterMode(string(out.FilterMode)); err != nil {
		out.FilterMode = models.FilterModeDimmed
	}
	return out.Clone(), nil
}

// Load returns the persisted settings, or the defaults when nothing
// usable is stored.
func (s *Store) Load(ctx context.Context) (models.Settings, error) {
	data, err := s.db.Get(ctx, database.KeySettings)
	if err != nil {
		return models.DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	settings, err := Decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("settings: stored value unreadable, using defaults")
	}
	return settings, nil
}

// Save persists settings with the next version and returns what was stored.
func (s *Store) Save(ctx context.Context, settings models.Settings) (models.Settings, error) {
	return s.save(ctx, settings, nil)
}

// SaveIfVersion saves only if the stored version still equals expected.
func (s *Store) SaveIfVersion(ctx context.Context, settings models.Settings, expected uint64) (models.Settings, error) {
	return s.save(ctx, settings, &expected)
}

func (s *Store) save(ctx context.Context, settings models.Settings, expected *uint64) (models.Settings, error) {
	if _, err := models.ParseFilterMode(string(settings.FilterMode)); err != nil {
		return models.Settings{}, err
	}
	next := settings.Clone()

	data, err := s.db.Update(ctx, s.origin, database.KeySettings, func(old []byte) ([]byte, error) {
		var current uint64
		if old != nil {
			// an unreadable record still contributes its version if it has one
			prev, _ := Decode(old)
			current = prev.Version
		}
		if expected != nil && current != *expected {
			return nil, fmt.Errorf("%w: stored %d, expected %d", ErrVersionConflict, current, *expected)
		}
		next.Version = current + 1
		next.UpdatedAt = s.now().UTC()
		return json.Marshal(next)
	})
	if err != nil {
		return models.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	log.Debug().
		Uint64("version", next.Version).
		Str("origin", s.origin).
		Int("len", len(data)).
		Msg("settings: saved")
	return next, nil
}

// Bootstrap seeds default settings and zero counters when absent.
// It reports whether anything was written.
func (s *Store) Bootstrap(ctx context.Context) (bool, error) {
	defaults := models.DefaultSettings()
	defaults.Version = 1
	defaults.UpdatedAt = s.now().UTC()

	wrote := false
	seeds := []struct {
		key   string
		value any
	}{
		{database.KeySettings, defaults},
		{database.KeyFilterStats, models.Stats{}},
	}
	for _, seed := range seeds {
		_, err := s.db.Update(ctx, s.origin, seed.key, func(old []byte) ([]byte, error) {
			if old != nil {
				return nil, errPresent
			}
			return json.Marshal(seed.value)
		})
		switch {
		case errors.Is(err, errPresent):
		case err != nil:
			return wrote, fmt.Errorf("bootstrap %s: %w", seed.key, err)
		default:
			wrote = true
		}
	}
	if wrote {
		log.Info().Msg("settings: defaults installed")
	}
	return wrote, nil
}

// Normalize trims and de-duplicates the user and keyword lists, drops
// empty entries and forgets countries the catalog does not offer.
func Normalize(s models.Settings) models.Settings {
	out := s.Clone()
	out.BlockedUsers = normalizeList(out.BlockedUsers, func(v string) string {
		return strings.TrimPrefix(v, "@")
	})
	out.BlockedKeywords = normalizeList(out.BlockedKeywords, nil)
	for country := range out.BlockedCountries {
		if !classifier.InCatalog(country) {
			delete(out.BlockedCountries, country)
		}
	}
	return out
}

func normalizeList(in []string, clean func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if clean != nil {
			v = clean(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// BlockAll toggles every catalog country on.
func BlockAll(s models.Settings) models.Settings {
	return setAll(s, true)
}

// ClearCountries toggles every catalog country off.
func ClearCountries(s models.Settings) models.Settings {
	return setAll(s, false)
}

func setAll(s models.Settings, blocked bool) models.Settings {
	out := s.Clone()
	for _, country := range classifier.Catalog() {
		out.BlockedCountries[country] = blocked
	}
	return out
}
