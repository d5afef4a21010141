// Package filter applies and reverts the visual treatment of blocked items.
package filter

import (
	"countryfilter/internal/models"
	"countryfilter/internal/tree"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	removedProps = []declaration{{"display", "none"}}
	dimmedProps  = []declaration{
		{"opacity", "0.4"},
		{"background", "#fff3f3"},
		{"border", "2px solid #ff4444"},
		{"padding", "8px"},
		{"margin", "4px 0"},
		{"border-radius", "8px"},
		{"position", "relative"},
	}
)

const bannerStyle = "padding: 6px 10px; background: #ff4444; color: white; font-size: 12px; " +
	"border-radius: 6px; margin-bottom: 8px; font-weight: bold;"

// Applier mutates items in a document and tracks them in a side table.
type Applier struct {
	doc     *tree.Document
	markers *Markers
}

// New creates an applier for doc.
func New(doc *tree.Document) *Applier {
	return &Applier{doc: doc, markers: NewMarkers()}
}

// Markers exposes the side table.
func (a *Applier) Markers() *Markers { return a.markers }

// IsProcessed reports whether item was already run through the pipeline.
func (a *Applier) IsProcessed(item *html.Node) bool {
	m, ok := a.markers.Lookup(item)
	return ok && m.Processed
}

// IsFiltered reports whether item currently carries the filter treatment.
func (a *Applier) IsFiltered(item *html.Node) bool {
	m, ok := a.markers.Lookup(item)
	return ok && m.Filtered
}

// MarkScanned records item as processed and not blocked.
func (a *Applier) MarkScanned(item *html.Node) {
	a.markers.Get(item).Processed = true
}

// Apply hides item according to mode. Applying to an already filtered
// item only refreshes the recorded reason.
func (a *Applier) Apply(item *html.Node, mode models.FilterMode, reason models.Reason) {
	m := a.markers.Get(item)
	m.Processed = true
	m.Reason = reason
	if m.Filtered {
		return
	}
	m.Filtered = true
	m.style, m.hasStyle = tree.Attr(item, "style")

	props := dimmedProps
	if mode == models.FilterModeRemoved {
		props = removedProps
	}
	tree.SetAttr(item, "style", formatStyle(withProps(parseStyle(m.style), props)))

	if mode != models.FilterModeRemoved && tree.FindFirst(item, "."+tree.BannerClass) == nil {
		m.banner = newBanner(reason)
		a.doc.Prepend(item, m.banner)
	}
}

func newBanner(reason models.Reason) *html.Node {
	div := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "class", Val: tree.BannerClass},
			{Key: "style", Val: bannerStyle},
		},
	}
	div.AppendChild(&html.Node{Type: html.TextNode, Data: "🚫 HIDDEN - From: " + reason.String()})
	return div
}

// Revert restores item to how it looked before Apply and clears its
// processed state. It reports whether the item had been filtered.
func (a *Applier) Revert(item *html.Node) bool {
	m, ok := a.markers.Lookup(item)
	if !ok {
		return false
	}
	wasFiltered := m.Filtered
	if wasFiltered {
		a.restore(item, m, func(b *html.Node) { _ = a.doc.Remove(b) })
	}

	m.Processed = false
	m.Filtered = false
	m.Reason = models.Reason{}
	return wasFiltered
}

// restore puts back the original style and takes out the banner Apply
// inserted. Banners that were already in the content stay.
func (a *Applier) restore(item *html.Node, m *Marker, remove func(*html.Node)) {
	if m.hasStyle {
		tree.SetAttr(item, "style", m.style)
	} else {
		tree.RemoveAttr(item, "style")
	}
	if m.banner != nil && m.banner.Parent == item {
		remove(m.banner)
	}
	m.style, m.hasStyle, m.banner = "", false, nil
}

// RevertAll reverts every tracked item and returns how many had been
// filtered.
func (a *Applier) RevertAll() int {
	n := 0
	for item, m := range a.markers.m {
		if !m.Processed && !m.Filtered {
			continue
		}
		if a.Revert(item) {
			n++
		}
	}
	return n
}

// Forget drops side-table entries for the detached subtree n. Filtered
// items are restored first so a reattached node carries no stale
// treatment, and counted flags are kept aside for the same reason.
func (a *Applier) Forget(n *html.Node) {
	tree.Walk(n, func(item *html.Node) {
		if m, ok := a.markers.Lookup(item); ok && m.Filtered {
			// the subtree is out of the document, nothing to notify
			a.restore(item, m, func(b *html.Node) { item.RemoveChild(b) })
		}
		a.markers.retire(item)
	})
}

// Filtered lists the currently filtered items in document order.
func (a *Applier) Filtered() []*html.Node {
	var out []*html.Node
	tree.Walk(a.doc.Root(), func(n *html.Node) {
		if m, ok := a.markers.Lookup(n); ok && m.Filtered {
			out = append(out, n)
		}
	})
	return out
}
