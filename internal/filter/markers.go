package filter

import (
	"countryfilter/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"
)

// retiredSize bounds how many detached items keep their counted flags.
const retiredSize = 4096

// Marker is the per-item state kept beside the tree. Items are keyed by
// node identity so page scripts rewriting attributes cannot confuse it.
type Marker struct {
	Processed bool
	Filtered  bool
	Reason    models.Reason

	// Counted flags survive a revert so a rescan does not count the same
	// item twice in the statistics.
	CountedScan     bool
	CountedLocation bool
	CountedHidden   bool

	style    string
	hasStyle bool
	// banner is the node Apply inserted, nil when it inserted none.
	banner *html.Node
}

// counted is what a detached item remembers in case it is reattached.
type counted struct {
	scan, location, hidden bool
}

// Markers is the side table. The zero value is not usable; use NewMarkers.
type Markers struct {
	m       map[*html.Node]*Marker
	retired *lru.Cache[*html.Node, counted]
}

// NewMarkers creates an empty side table.
func NewMarkers() *Markers {
	retired, _ := lru.New[*html.Node, counted](retiredSize)
	return &Markers{m: make(map[*html.Node]*Marker), retired: retired}
}

// Get returns the marker for n, creating it on first use. A node that was
// retired gets its counted flags back.
func (ms *Markers) Get(n *html.Node) *Marker {
	m, ok := ms.m[n]
	if !ok {
		m = &Marker{}
		if c, ok := ms.retired.Get(n); ok {
			m.CountedScan, m.CountedLocation, m.CountedHidden = c.scan, c.location, c.hidden
			ms.retired.Remove(n)
		}
		ms.m[n] = m
	}
	return m
}

// Lookup returns the marker for n without creating one.
func (ms *Markers) Lookup(n *html.Node) (*Marker, bool) {
	m, ok := ms.m[n]
	return m, ok
}

// retire drops n from the table, remembering its counted flags.
func (ms *Markers) retire(n *html.Node) {
	m, ok := ms.m[n]
	if !ok {
		return
	}
	delete(ms.m, n)
	if m.CountedScan || m.CountedLocation || m.CountedHidden {
		ms.retired.Add(n, counted{scan: m.CountedScan, location: m.CountedLocation, hidden: m.CountedHidden})
	}
}

// UncountHidden clears CountedHidden everywhere, retired nodes included,
// so items hidden again later are counted again.
func (ms *Markers) UncountHidden() {
	for _, m := range ms.m {
		m.CountedHidden = false
	}
	for _, n := range ms.retired.Keys() {
		if c, ok := ms.retired.Peek(n); ok && c.hidden {
			c.hidden = false
			ms.retired.Add(n, c)
		}
	}
}

// Len is the number of tracked nodes.
func (ms *Markers) Len() int {
	return len(ms.m)
}
