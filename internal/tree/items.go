package tree

import (
	"regexp"

	"countryfilter/internal/classifier"

	"golang.org/x/net/html"
)

// Selectors for the page structures the filter understands
const (
	TweetSelector    = `[data-testid="tweet"]`
	ArticleSelector  = "article"
	ItemSelector     = TweetSelector + ", " + ArticleSelector
	BioSelector      = `[data-testid="UserBio"], [data-testid="UserDescription"]`
	LocationSelector = `[data-testid="UserLocation"]`
	NameSelector     = `[data-testid="User-Name"]`

	// BannerClass marks the visible indicator prepended to dimmed items.
	BannerClass = "country-filter-indicator"
)

var handleRe = regexp.MustCompile(`@(\w{1,15})`)

// Items returns every content item in the document.
func (d *Document) Items() []*html.Node {
	return d.Query(ItemSelector)
}

// ItemFor resolves n to its enclosing content item, preferring a tweet
// element over an article. Nil when n is not inside an item.
func ItemFor(n *html.Node) *html.Node {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return Closest(n, TweetSelector, ArticleSelector)
}

// ItemsFor resolves an added node to the items it affects: its enclosing
// item if any, otherwise the items inside it.
func ItemsFor(n *html.Node) []*html.Node {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if item := ItemFor(n); item != nil {
		return []*html.Node{item}
	}
	return Find(n, ItemSelector)
}

// IsBanner reports whether n is a filter indicator.
func IsBanner(n *html.Node) bool {
	return n.Type == html.ElementNode && HasClass(n, BannerClass)
}

// ExtractFields pulls the classifier inputs out of an item. Text inside
// filter banners is ignored so that a dimmed item classifies the same way
// it did before it was dimmed.
func ExtractFields(item *html.Node) classifier.Fields {
	var f classifier.Fields
	if item == nil {
		return f
	}

	if n := FindFirst(item, BioSelector); n != nil {
		f.Bio = Text(n, IsBanner)
	}
	if n := FindFirst(item, LocationSelector); n != nil {
		f.Location = Text(n, IsBanner)
	}
	if n := FindFirst(item, NameSelector); n != nil {
		f.NameLine = Text(n, IsBanner)
		if m := handleRe.FindStringSubmatch(f.NameLine); m != nil {
			f.Handle = m[1]
		}
	}
	f.Text = Text(item, IsBanner)
	return f
}
