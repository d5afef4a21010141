package models

import (
	"errors"
	"maps"
	"slices"
	"time"
)

var ErrInvalidFilterMode = errors.New("filter mode must be dimmed or removed")

// FilterMode selects the visual treatment applied to blocked items.
type FilterMode string

const (
	FilterModeDimmed  FilterMode = "dimmed"
	FilterModeRemoved FilterMode = "removed"
)

// ParseFilterMode converts user input into a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case FilterModeDimmed, FilterModeRemoved:
		return FilterMode(s), nil
	}
	return "", ErrInvalidFilterMode
}

// Settings is the rule configuration shared by every surface.
// Version is bumped by the settings store on each save and orders
// concurrent writes; surfaces ignore notifications that are not newer
// than the copy they hold.
type Settings struct {
	Enabled          bool            `json:"enabled"`
	FilterMode       FilterMode      `json:"filterMode"`
	BlockedCountries map[string]bool `json:"blockedCountries"`
	BlockedUsers     []string        `json:"blockedUsers"`
	BlockedKeywords  []string        `json:"blockedKeywords"`
	Version          uint64          `json:"version"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// DefaultSettings returns the documented first-run settings.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		FilterMode:       FilterModeDimmed,
		BlockedCountries: make(map[string]bool),
		BlockedUsers:     []string{},
		BlockedKeywords:  []string{},
	}
}

// Clone returns a deep copy so that surfaces never share map or slice backing storage.
func (s Settings) Clone() Settings {
	out := s
	out.BlockedCountries = maps.Clone(s.BlockedCountries)
	if out.BlockedCountries == nil {
		out.BlockedCountries = make(map[string]bool)
	}
	out.BlockedUsers = slices.Clone(s.BlockedUsers)
	if out.BlockedUsers == nil {
		out.BlockedUsers = []string{}
	}
	out.BlockedKeywords = slices.Clone(s.BlockedKeywords)
	if out.BlockedKeywords == nil {
		out.BlockedKeywords = []string{}
	}
	return out
}

// IsCountryBlocked reports whether country is toggled on.
func (s Settings) IsCountryBlocked(country string) bool {
	return country != "" && s.BlockedCountries[country]
}

// Stats holds the running filter counters.
// JSON keys match the persisted filterStats record.
type Stats struct {
	TotalScanned uint64 `json:"totalTweetsScanned"`
	Hidden       uint64 `json:"tweetsHidden"`
	WithLocation uint64 `json:"accountsWithLocation"`
}

// DetectedCountries counts items per recognized country.
type DetectedCountries map[string]uint64

// Clone returns a copy of the map.
func (d DetectedCountries) Clone() DetectedCountries {
	out := make(DetectedCountries, len(d))
	maps.Copy(out, d)
	return out
}

// Verdict is the classifier output for a single item.
type Verdict struct {
	MatchedCountry   string `json:"matchedCountry,omitempty"`
	MatchedByUser    bool   `json:"matchedByUser"`
	MatchedByKeyword bool   `json:"matchedByKeyword"`
	MatchedUser      string `json:"matchedUser,omitempty"`
	MatchedKeyword   string `json:"matchedKeyword,omitempty"`
}

// Blocked reports whether the verdict hides the item under s.
// User and keyword rules apply independently of the country toggles.
func (v Verdict) Blocked(s Settings) bool {
	if !s.Enabled {
		return false
	}
	return s.IsCountryBlocked(v.MatchedCountry) || v.MatchedByUser || v.MatchedByKeyword
}

// Reason returns why the item is blocked, preferring country over user
// over keyword. The second return is false when nothing blocks it.
func (v Verdict) Reason(s Settings) (Reason, bool) {
	if !v.Blocked(s) {
		return Reason{}, false
	}
	switch {
	case s.IsCountryBlocked(v.MatchedCountry):
		return Reason{Kind: ReasonCountry, Value: v.MatchedCountry}, true
	case v.MatchedByUser:
		return Reason{Kind: ReasonUser, Value: v.MatchedUser}, true
	default:
		return Reason{Kind: ReasonKeyword, Value: v.MatchedKeyword}, true
	}
}

// ReasonKind identifies which rule matched.
type ReasonKind string

const (
	ReasonCountry ReasonKind = "country"
	ReasonUser    ReasonKind = "user"
	ReasonKeyword ReasonKind = "keyword"
)

// Reason is stamped on filtered items for later inspection.
type Reason struct {
	Kind  ReasonKind `json:"kind"`
	Value string     `json:"value"`
}

// String renders the reason the way banners display it.
func (r Reason) String() string {
	switch r.Kind {
	case ReasonUser:
		return "@" + r.Value
	case ReasonKeyword:
		return "\"" + r.Value + "\""
	default:
		return r.Value
	}
}
