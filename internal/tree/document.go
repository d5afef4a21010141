// Package tree holds the live content tree: an in-memory HTML document
// that records child-list mutations and hands them to observers when
// flushed.
package tree

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when a mutation targets a node without a parent.
var ErrDetached = errors.New("tree: node is not attached")

// Mutation is one child-list change under Target.
type Mutation struct {
	Target  *html.Node
	Added   []*html.Node
	Removed []*html.Node
}

type observer struct {
	id int
	fn func([]Mutation)
}

// Document is not safe for concurrent use. The engine owns it from a
// single goroutine.
type Document struct {
	root *html.Node
	body *html.Node

	observers []observer
	nextID    int
	queue     []Mutation
}

// New returns an empty document with a body.
func New() *Document {
	doc, _ := ParseString("<!DOCTYPE html><html><head></head><body></body></html>")
	return doc
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("tree: parse: %w", err)
	}
	d := &Document{root: root}
	d.body = findBody(root)
	if d.body == nil {
		// html.Parse always synthesises a body, so this is only reachable
		// for hand-built roots.
		return nil, errors.New("tree: document has no body")
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element.
func (d *Document) Body() *html.Node { return d.body }

// Query returns all elements in the document matching selector, in
// document order. An invalid selector matches nothing.
func (d *Document) Query(selector string) []*html.Node {
	return goquery.NewDocumentFromNode(d.root).Find(selector).Nodes
}

// Find returns descendants of n matching selector.
func Find(n *html.Node, selector string) []*html.Node {
	if n == nil {
		return nil
	}
	return goquery.NewDocumentFromNode(n).Find(selector).Nodes
}

// FindFirst returns the first descendant of n matching selector, or nil.
func FindFirst(n *html.Node, selector string) *html.Node {
	nodes := Find(n, selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Closest returns the nearest ancestor-or-self of n matching the first
// selector that matches anything, trying selectors in order.
func Closest(n *html.Node, selectors ...string) *html.Node {
	if n == nil {
		return nil
	}
	sel := goquery.NewDocumentFromNode(n).Selection
	for _, s := range selectors {
		if c := sel.Closest(s); c.Length() > 0 {
			return c.Nodes[0]
		}
	}
	return nil
}

// Contains reports whether n is ancestor-or-self of other.
func Contains(n, other *html.Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Walk calls fn for n and every node below it, depth first.
func Walk(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// Text concatenates the text below n the way DOM textContent does.
// Subtrees rooted at elements for which skip returns true are left out.
func Text(n *html.Node, skip func(*html.Node) bool) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skip != nil && skip(n) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return b.String()
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key on n, replacing an existing value in place.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}

// HasClass reports whether n carries class in its class attribute.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// AppendHTML parses fragment in the context of parent and appends the
// resulting nodes to it.
func (d *Document) AppendHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return nil, fmt.Errorf("tree: parse fragment: %w", err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.record(Mutation{Target: parent, Added: nodes})
	return nodes, nil
}

// Append attaches a detached node as the last child of parent.
func (d *Document) Append(parent, child *html.Node) {
	parent.AppendChild(child)
	d.record(Mutation{Target: parent, Added: []*html.Node{child}})
}

// Prepend attaches a detached node as the first child of parent.
func (d *Document) Prepend(parent, child *html.Node) {
	if parent.FirstChild == nil {
		parent.AppendChild(child)
	} else {
		parent.InsertBefore(child, parent.FirstChild)
	}
	d.record(Mutation{Target: parent, Added: []*html.Node{child}})
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) error {
	parent := n.Parent
	if parent == nil {
		return ErrDetached
	}
	parent.RemoveChild(n)
	d.record(Mutation{Target: parent, Removed: []*html.Node{n}})
	return nil
}

func (d *Document) record(m Mutation) {
	d.queue = append(d.queue, m)
}

// Pending returns the number of queued mutation records.
func (d *Document) Pending() int { return len(d.queue) }

// Observe registers fn for mutation batches. The returned func
// unregisters it.
func (d *Document) Observe(fn func([]Mutation)) (cancel func()) {
	d.nextID++
	id := d.nextID
	d.observers = append(d.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// Flush delivers queued records to every observer and returns how many
// were delivered. Records produced by observers during the flush are
// delivered in later batches of the same call.
func (d *Document) Flush() int {
	delivered := 0
	for len(d.queue) > 0 {
		batch := d.queue
		d.queue = nil
		for _, o := range append([]observer(nil), d.observers...) {
			o.fn(batch)
		}
		delivered += len(batch)
	}
	return delivered
}

// Render serialises the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// RenderNode serialises n and its subtree.
func RenderNode(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}
