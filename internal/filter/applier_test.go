package filter

import (
	"testing"

	"countryfilter/internal/models"
	"countryfilter/internal/tree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const page = `<!DOCTYPE html><html><head></head><body>` +
	`<article id="plain"><p>hello</p></article>` +
	`<article id="styled" style="color: blue"><p>hi</p></article>` +
	`</body></html>`

var india = models.Reason{Kind: models.ReasonCountry, Value: "India"}

func setup(t *testing.T) (*tree.Document, *Applier) {
	t.Helper()
	doc, err := tree.ParseString(page)
	require.NoError(t, err)
	return doc, New(doc)
}

func item(t *testing.T, doc *tree.Document, id string) *html.Node {
	t.Helper()
	nodes := doc.Query("#" + id)
	require.Len(t, nodes, 1)
	return nodes[0]
}

func TestApply_Dimmed(t *testing.T) {
	doc, a := setup(t)
	n := item(t, doc, "plain")

	a.Apply(n, models.FilterModeDimmed, india)

	style, _ := tree.Attr(n, "style")
	assert.Equal(t, "opacity: 0.4; background: #fff3f3; border: 2px solid #ff4444; padding: 8px; "+
		"margin: 4px 0; border-radius: 8px; position: relative;", style)

	banners := tree.Find(n, "."+tree.BannerClass)
	require.Len(t, banners, 1)
	assert.Equal(t, n.FirstChild, banners[0])
	assert.Equal(t, "🚫 HIDDEN - From: India", tree.Text(banners[0], nil))

	assert.True(t, a.IsProcessed(n))
	assert.True(t, a.IsFiltered(n))
	m, _ := a.Markers().Lookup(n)
	assert.Equal(t, india, m.Reason)
}

func TestApply_Idempotent(t *testing.T) {
	doc, a := setup(t)
	n := item(t, doc, "plain")

	a.Apply(n, models.FilterModeDimmed, india)
	first := doc.String()
	a.Apply(n, models.FilterModeDimmed, india)

	assert.Equal(t, first, doc.String())
	assert.Len(t, tree.Find(n, "."+tree.BannerClass), 1)
}

func TestApply_Removed(t *testing.T) {
	doc, a := setup(t)
	n := item(t, doc, "styled")

	a.Apply(n, models.FilterModeRemoved, models.Reason{Kind: models.ReasonUser, Value: "spammer"})

	style, _ := tree.Attr(n, "style")
	assert.Equal(t, "color: blue; display: none;", style)
	assert.Empty(t, tree.Find(n, "."+tree.BannerClass))
}

func TestApply_KeepsExistingBanner(t *testing.T) {
	doc, err := tree.ParseString(`<body><article id="x"><div class="country-filter-indicator">old</div></article></body>`)
	require.NoError(t, err)
	a := New(doc)
	n := item(t, doc, "x")

	before := doc.String()
	a.Apply(n, models.FilterModeDimmed, india)
	banners := tree.Find(n, "."+tree.BannerClass)
	require.Len(t, banners, 1)
	assert.Equal(t, "old", tree.Text(banners[0], nil))

	// the banner belongs to the content, so revert leaves it
	require.True(t, a.Revert(n))
	assert.Equal(t, before, doc.String())
}

func TestRevert_RoundTrip(t *testing.T) {
	for _, mode := range models.FilterModes {
		for _, id := range []string{"plain", "styled"} {
			t.Run(string(mode)+"/"+id, func(t *testing.T) {
				doc, a := setup(t)
				before := doc.String()
				n := item(t, doc, id)

				a.Apply(n, mode, india)
				assert.NotEqual(t, before, doc.String())

				assert.True(t, a.Revert(n))
				assert.Equal(t, before, doc.String())
				assert.False(t, a.IsProcessed(n))
				assert.False(t, a.IsFiltered(n))
			})
		}
	}
}

func TestRevert_Unfiltered(t *testing.T) {
	doc, a := setup(t)
	n := item(t, doc, "plain")

	assert.False(t, a.Revert(n))

	a.MarkScanned(n)
	assert.True(t, a.IsProcessed(n))
	assert.False(t, a.Revert(n))
	assert.False(t, a.IsProcessed(n))
}

func TestRevert_KeepsCountedFlags(t *testing.T) {
	doc, a := setup(t)
	n := item(t, doc, "plain")

	m := a.Markers().Get(n)
	m.CountedScan = true
	m.CountedHidden = true
	a.Apply(n, models.FilterModeDimmed, india)
	a.Revert(n)

	m, ok := a.Markers().Lookup(n)
	require.True(t, ok)
	assert.True(t, m.CountedScan)
	assert.True(t, m.CountedHidden)
}

func TestRevertAll(t *testing.T) {
	doc, a := setup(t)
	before := doc.String()
	plain := item(t, doc, "plain")
	styled := item(t, doc, "styled")

	a.Apply(plain, models.FilterModeDimmed, india)
	a.MarkScanned(styled)
	assert.Equal(t, []*html.Node{plain}, a.Filtered())

	assert.Equal(t, 1, a.RevertAll())
	assert.Equal(t, before, doc.String())
	assert.False(t, a.IsProcessed(styled))
	assert.Empty(t, a.Filtered())
}

func TestForget(t *testing.T) {
	doc, a := setup(t)
	plain := item(t, doc, "plain")
	a.Apply(plain, models.FilterModeDimmed, india)
	a.MarkScanned(item(t, doc, "styled"))
	require.Equal(t, 2, a.Markers().Len())

	require.NoError(t, doc.Remove(plain))
	a.Forget(plain)
	assert.Equal(t, 1, a.Markers().Len())
	assert.Empty(t, a.Filtered())

	// the detached node is back to its original look
	_, hasStyle := tree.Attr(plain, "style")
	assert.False(t, hasStyle)
	assert.Empty(t, tree.Find(plain, "."+tree.BannerClass))
}

func TestForget_KeepsCountedFlags(t *testing.T) {
	doc, a := setup(t)
	plain := item(t, doc, "plain")
	m := a.Markers().Get(plain)
	m.CountedScan = true
	m.CountedHidden = true
	a.Apply(plain, models.FilterModeDimmed, india)

	require.NoError(t, doc.Remove(plain))
	a.Forget(plain)
	_, ok := a.Markers().Lookup(plain)
	require.False(t, ok)

	m = a.Markers().Get(plain)
	assert.True(t, m.CountedScan)
	assert.True(t, m.CountedHidden)
	assert.False(t, m.CountedLocation)
	assert.False(t, m.Processed)
}

func TestMarkers_UncountHidden(t *testing.T) {
	doc, a := setup(t)
	plain, styled := item(t, doc, "plain"), item(t, doc, "styled")
	a.Markers().Get(plain).CountedHidden = true
	m := a.Markers().Get(styled)
	m.CountedHidden = true
	m.CountedScan = true

	require.NoError(t, doc.Remove(styled))
	a.Forget(styled)
	a.Markers().UncountHidden()

	assert.False(t, a.Markers().Get(plain).CountedHidden)
	m = a.Markers().Get(styled)
	assert.False(t, m.CountedHidden)
	assert.True(t, m.CountedScan)
}

func TestStyleHelpers(t *testing.T) {
	decls := parseStyle(" Color : red ;bogus; ;margin:0")
	assert.Equal(t, []declaration{{"color", "red"}, {"margin", "0"}}, decls)
	assert.Equal(t, "color: red; margin: 1px; display: none;",
		formatStyle(withProps(decls, []declaration{{"margin", "1px"}, {"display", "none"}})))
	assert.Empty(t, formatStyle(nil))
}
