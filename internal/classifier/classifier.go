// Package classifier maps item text to a country and evaluates the user
// and keyword block rules. Everything here is pure; the only state is a
// memo cache of country lookups.
package classifier

import (
	"strings"

	"countryfilter/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoised country lookups.
const DefaultCacheSize = 4096

// Fields is the text extracted from one content item, in lookup priority order.
type Fields struct {
	Bio      string
	Location string
	NameLine string
	Text     string
	// Handle is the author handle, with or without a leading "@".
	Handle string
}

// Classifier evaluates block rules against item fields.
type Classifier struct {
	cache *lru.Cache[string, string]
}

// New creates a classifier memoising up to cacheSize lookups.
// A non-positive size disables the cache.
func New(cacheSize int) *Classifier {
	c := &Classifier{}
	if cacheSize > 0 {
		// lru.New only fails for non-positive sizes
		c.cache, _ = lru.New[string, string](cacheSize)
	}
	return c
}

// Country returns the first country in table order whose pattern matches text.
func (c *Classifier) Country(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	if c.cache != nil {
		if country, ok := c.cache.Get(text); ok {
			return country, country != ""
		}
	}

	country := matchCountry(text)
	if c.cache != nil {
		c.cache.Add(text, country)
	}
	return country, country != ""
}

func matchCountry(text string) string {
	for _, p := range countryTable {
		if p.re.MatchString(text) && IsCanonical(p.country) {
			return p.country
		}
	}
	return ""
}

// CountryFromFields tries bio, location, name line and full text in that
// order; the first field yielding a country wins.
func (c *Classifier) CountryFromFields(f Fields) (string, bool) {
	for _, text := range []string{f.Bio, f.Location, f.NameLine, f.Text} {
		if country, ok := c.Country(text); ok {
			return country, true
		}
	}
	return "", false
}

// Classify produces the verdict for an item under s.
func (c *Classifier) Classify(f Fields, s models.Settings) models.Verdict {
	var v models.Verdict
	v.MatchedCountry, _ = c.CountryFromFields(f)

	if user, ok := MatchUser(f.Handle, s.BlockedUsers); ok {
		v.MatchedByUser = true
		v.MatchedUser = user
	}
	if kw, ok := MatchKeyword(f.Text, s.BlockedKeywords); ok {
		v.MatchedByKeyword = true
		v.MatchedKeyword = kw
	}
	return v
}

// MatchUser strips one leading "@" from handle and reports exact,
// case-sensitive membership in blocked.
func MatchUser(handle string, blocked []string) (string, bool) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", false
	}
	for _, u := range blocked {
		if u == handle {
			return handle, true
		}
	}
	return "", false
}

// MatchKeyword returns the first keyword contained in text, ignoring case.
// Empty keywords never match.
func MatchKeyword(text string, keywords []string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
