package classifier

import (
	"testing"

	"countryfilter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountry(t *testing.T) {
	c := New(0)

	tests := []struct {
		text string
		want string
	}{
		{"Proud Texan, USA 🇺🇸", "United States"},
		{"Made in the U.S.A.", "United States"},
		{"Toronto, Canada", "Canada"},
		{"London, England", "United Kingdom"},
		{"Berlin, Deutschland", "Germany"},
		{"Moscow, Russian Federation", "Russia"},
		{"Chinese food enthusiast", "China"},
		{"Manila PH", "Philippines"},
		// several countries named: table order decides
		{"India and USA", "United States"},
		{"Lagos Nigeria / London UK", "United Kingdom"},
		// short codes are whole-word and case-insensitive
		{"moving to fra next week", "France"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := c.Country(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountry_NoMatch(t *testing.T) {
	c := New(0)

	for _, text := range []string{
		"",
		"Hello world, lovely weather today",
		"Indiana Jones",
		"Ukraine",
		"Americana",
	} {
		got, ok := c.Country(text)
		assert.False(t, ok, text)
		assert.Empty(t, got, text)
	}
}

func TestCountry_ResultIsCanonical(t *testing.T) {
	c := New(0)
	for _, p := range countryTable {
		require.True(t, IsCanonical(p.country), p.country)
		got, ok := c.Country(p.country)
		require.True(t, ok)
		assert.True(t, IsCanonical(got))
	}
}

func TestCountry_Cache(t *testing.T) {
	c := New(8)

	got, ok := c.Country("Tokyo, Japan")
	require.True(t, ok)
	assert.Equal(t, "Japan", got)

	got, ok = c.Country("Tokyo, Japan")
	require.True(t, ok)
	assert.Equal(t, "Japan", got)

	_, ok = c.Country("Hello world")
	assert.False(t, ok)
	_, ok = c.Country("Hello world")
	assert.False(t, ok)

	assert.Equal(t, 2, c.cache.Len())
}

func TestCountryFromFields(t *testing.T) {
	c := New(DefaultCacheSize)

	t.Run("bio wins over location", func(t *testing.T) {
		got, ok := c.CountryFromFields(Fields{
			Bio:      "Tokyo, Japan",
			Location: "Paris, France",
		})
		require.True(t, ok)
		assert.Equal(t, "Japan", got)
	})

	t.Run("falls through unmatched fields", func(t *testing.T) {
		got, ok := c.CountryFromFields(Fields{
			Bio:      "coffee lover",
			Location: "Paris, France",
		})
		require.True(t, ok)
		assert.Equal(t, "France", got)
	})

	t.Run("name line", func(t *testing.T) {
		got, ok := c.CountryFromFields(Fields{NameLine: "Jane 🇲🇽 Mexico @jane"})
		require.True(t, ok)
		assert.Equal(t, "Mexico", got)
	})

	t.Run("full text last", func(t *testing.T) {
		got, ok := c.CountryFromFields(Fields{
			NameLine: "Jane @jane",
			Text:     "Jane @jane greetings from Brazil",
		})
		require.True(t, ok)
		assert.Equal(t, "Brazil", got)
	})

	t.Run("nothing", func(t *testing.T) {
		_, ok := c.CountryFromFields(Fields{})
		assert.False(t, ok)
	})
}

func TestMatchUser(t *testing.T) {
	blocked := []string{"spammer", "Bot_42"}

	got, ok := MatchUser("@spammer", blocked)
	require.True(t, ok)
	assert.Equal(t, "spammer", got)

	_, ok = MatchUser("spammer", blocked)
	assert.True(t, ok)

	_, ok = MatchUser("@Spammer", blocked)
	assert.False(t, ok, "handles are case-sensitive")

	_, ok = MatchUser("@spammer2", blocked)
	assert.False(t, ok)

	_, ok = MatchUser("", blocked)
	assert.False(t, ok)

	_, ok = MatchUser("@", []string{""})
	assert.False(t, ok)
}

func TestMatchKeyword(t *testing.T) {
	got, ok := MatchKeyword("Buy CRYPTO now!", []string{"giveaway", "crypto"})
	require.True(t, ok)
	assert.Equal(t, "crypto", got)

	_, ok = MatchKeyword("nothing to see", []string{"crypto"})
	assert.False(t, ok)

	_, ok = MatchKeyword("anything", []string{""})
	assert.False(t, ok)

	_, ok = MatchKeyword("", []string{"crypto"})
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	c := New(DefaultCacheSize)
	s := models.DefaultSettings()
	s.BlockedUsers = []string{"spammer"}
	s.BlockedKeywords = []string{"giveaway"}

	v := c.Classify(Fields{
		Location: "Toronto, Canada",
		Handle:   "@spammer",
		Text:     "Huge GIVEAWAY tonight",
	}, s)

	assert.Equal(t, "Canada", v.MatchedCountry)
	assert.True(t, v.MatchedByUser)
	assert.Equal(t, "spammer", v.MatchedUser)
	assert.True(t, v.MatchedByKeyword)
	assert.Equal(t, "giveaway", v.MatchedKeyword)

	v = c.Classify(Fields{Handle: "@friend", Text: "hello"}, s)
	assert.Empty(t, v.MatchedCountry)
	assert.False(t, v.MatchedByUser)
	assert.False(t, v.MatchedByKeyword)
}

func TestCatalog(t *testing.T) {
	cat := Catalog()
	assert.Len(t, cat, 208)

	for _, name := range CanonicalCountries {
		assert.True(t, InCatalog(name), name)
	}
	assert.True(t, InCatalog("São Tomé and Príncipe"))
	assert.True(t, InCatalog("Curaçao"))
	assert.False(t, InCatalog("Atlantis"))

	cat[0] = "changed"
	assert.Equal(t, "United States", Catalog()[0])
}

func TestSearchCatalog(t *testing.T) {
	assert.Equal(t,
		[]string{"Guinea", "Guinea-Bissau", "Papua New Guinea"},
		SearchCatalog("guinea"))
	assert.Len(t, SearchCatalog("  "), 208)
	assert.Empty(t, SearchCatalog("atlantis"))
}
