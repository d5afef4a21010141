package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const timeline = `<!DOCTYPE html><html><head></head><body>
<div id="timeline">
  <article id="a1">
    <div data-testid="tweet" id="t1">
      <div data-testid="User-Name"><span>Jane Doe</span><span>@janedoe</span></div>
      <div data-testid="UserLocation">Austin, Texas</div>
      <div data-testid="UserBio">Proud Texan, USA</div>
      <div data-testid="tweetText">good morning</div>
    </div>
  </article>
  <article id="a2"><p>plain article</p></article>
</div>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := ParseString(s)
	require.NoError(t, err)
	return d
}

func id(n *html.Node) string {
	v, _ := Attr(n, "id")
	return v
}

func ids(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, id(n))
	}
	return out
}

func TestNew(t *testing.T) {
	d := New()
	require.NotNil(t, d.Body())
	assert.Contains(t, d.String(), "<body></body>")
}

func TestQueryAndItems(t *testing.T) {
	d := mustParse(t, timeline)

	assert.Equal(t, []string{"a1", "t1", "a2"}, ids(d.Items()))
	assert.Empty(t, d.Query("[[invalid"))
}

func TestItemFor(t *testing.T) {
	d := mustParse(t, timeline)

	loc := d.Query(LocationSelector)[0]
	assert.Equal(t, "t1", id(ItemFor(loc)), "tweet preferred over article")

	p := d.Query("#a2 p")[0]
	assert.Equal(t, "a2", id(ItemFor(p)))

	timelineDiv := d.Query("#timeline")[0]
	assert.Nil(t, ItemFor(timelineDiv))
	assert.Equal(t, []string{"a1", "t1", "a2"}, ids(ItemsFor(timelineDiv)))

	assert.Nil(t, ItemsFor(&html.Node{Type: html.TextNode, Data: "x"}))
}

func TestExtractFields(t *testing.T) {
	d := mustParse(t, timeline)
	item := d.Query("#t1")[0]

	f := ExtractFields(item)
	assert.Equal(t, "Proud Texan, USA", f.Bio)
	assert.Equal(t, "Austin, Texas", f.Location)
	assert.Equal(t, "Jane Doe@janedoe", f.NameLine)
	assert.Equal(t, "janedoe", f.Handle)
	assert.Contains(t, f.Text, "good morning")
}

func TestExtractFields_SkipsBanner(t *testing.T) {
	d := mustParse(t, `<body><article id="x"><div class="country-filter-indicator">🚫 HIDDEN - From: India</div><p>hello</p></article></body>`)
	f := ExtractFields(d.Query("#x")[0])
	assert.Equal(t, "hello", f.Text)
	assert.Empty(t, f.Handle)
}

func TestAttrs(t *testing.T) {
	d := mustParse(t, `<body><div id="n" style="color: red"></div></body>`)
	n := d.Query("#n")[0]

	v, ok := Attr(n, "style")
	require.True(t, ok)
	assert.Equal(t, "color: red", v)

	SetAttr(n, "style", "display: none")
	v, _ = Attr(n, "style")
	assert.Equal(t, "display: none", v)
	assert.Len(t, n.Attr, 2)

	RemoveAttr(n, "style")
	_, ok = Attr(n, "style")
	assert.False(t, ok)

	SetAttr(n, "class", "a country-filter-indicator")
	assert.True(t, HasClass(n, BannerClass))
	assert.False(t, HasClass(n, "country"))
}

func TestMutationsAndFlush(t *testing.T) {
	d := New()

	var batches [][]Mutation
	cancel := d.Observe(func(ms []Mutation) { batches = append(batches, ms) })

	added, err := d.AppendHTML(d.Body(), `<article id="n1"></article><article id="n2"></article>`)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, 1, d.Pending())

	assert.Equal(t, 1, d.Flush())
	require.Len(t, batches, 1)
	assert.Equal(t, d.Body(), batches[0][0].Target)
	assert.Equal(t, []string{"n1", "n2"}, ids(batches[0][0].Added))

	require.NoError(t, d.Remove(added[0]))
	assert.Equal(t, 1, d.Flush())
	assert.Equal(t, []string{"n1"}, ids(batches[1][0].Removed))
	assert.ErrorIs(t, d.Remove(added[0]), ErrDetached)

	cancel()
	_, err = d.AppendHTML(d.Body(), `<p></p>`)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Flush(), "records are drained without observers")
	assert.Len(t, batches, 2)
}

func TestFlush_ObserverMutations(t *testing.T) {
	d := New()

	seen := 0
	d.Observe(func(ms []Mutation) {
		for _, m := range ms {
			for _, n := range m.Added {
				seen++
				if id(n) == "first" {
					d.Prepend(n, &html.Node{Type: html.ElementNode, Data: "span"})
				}
			}
		}
	})

	_, err := d.AppendHTML(d.Body(), `<div id="first"></div>`)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Flush())
	assert.Equal(t, 2, seen)
	assert.Zero(t, d.Pending())
}

func TestPrependAndRender(t *testing.T) {
	d := mustParse(t, `<body><div id="p"><b>x</b></div></body>`)
	p := d.Query("#p")[0]

	d.Prepend(p, &html.Node{Type: html.TextNode, Data: "<hi>"})
	assert.True(t, strings.Contains(d.String(), `<div id="p">&lt;hi&gt;<b>x</b></div>`))
	assert.Equal(t, `<div id="p">&lt;hi&gt;<b>x</b></div>`, RenderNode(p))
}

func TestTextAndContains(t *testing.T) {
	d := mustParse(t, `<body><div id="o">a<span class="skip">b</span><i>c</i></div></body>`)
	o := d.Query("#o")[0]

	assert.Equal(t, "abc", Text(o, nil))
	assert.Equal(t, "ac", Text(o, func(n *html.Node) bool { return HasClass(n, "skip") }))
	assert.True(t, Contains(d.Body(), o))
	assert.False(t, Contains(o, d.Body()))

	count := 0
	Walk(o, func(*html.Node) { count++ })
	assert.Equal(t, 6, count)
}
