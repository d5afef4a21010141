// Package scanner runs content items through the classify and filter
// pipeline, both for full scans and for nodes reported by the tree.
package scanner

import (
	"context"
	"time"

	"countryfilter/internal/classifier"
	"countryfilter/internal/filter"
	"countryfilter/internal/metrics"
	"countryfilter/internal/models"
	"countryfilter/internal/stats"
	"countryfilter/internal/tree"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Scanner is driven from a single goroutine together with its document.
type Scanner struct {
	doc        *tree.Document
	applier    *filter.Applier
	classifier *classifier.Classifier
	stats      *stats.Aggregator

	settings models.Settings
}

func New(doc *tree.Document, applier *filter.Applier, cls *classifier.Classifier, agg *stats.Aggregator) *Scanner {
	return &Scanner{
		doc:        doc,
		applier:    applier,
		classifier: cls,
		stats:      agg,
		settings:   models.DefaultSettings(),
	}
}

// SetSettings replaces the rules used for subsequent processing. It does
// not touch items already processed; callers follow up with RevertAll and
// ScanAll.
func (s *Scanner) SetSettings(settings models.Settings) {
	s.settings = settings.Clone()
}

// Settings returns the rules currently in use.
func (s *Scanner) Settings() models.Settings {
	return s.settings.Clone()
}

// ScanAll processes every item in the document and returns how many were
// visited. Nothing happens while filtering is disabled.
func (s *Scanner) ScanAll(ctx context.Context) int {
	if !s.settings.Enabled {
		return 0
	}
	start := time.Now()
	items := s.doc.Items()
	for _, item := range items {
		s.Process(ctx, item)
	}
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	log.Debug().Int("items", len(items)).Msg("scanner: scanned document")
	return len(items)
}

// Observe subscribes the scanner to tree mutations.
func (s *Scanner) Observe(ctx context.Context) (cancel func()) {
	return s.doc.Observe(func(batch []tree.Mutation) {
		for _, m := range batch {
			for _, n := range m.Removed {
				s.applier.Forget(n)
			}
		}
		if !s.settings.Enabled {
			return
		}
		for _, m := range batch {
			for _, n := range m.Added {
				for _, item := range tree.ItemsFor(n) {
					s.Process(ctx, item)
				}
			}
		}
	})
}

// Process runs one node through the pipeline. The node is resolved to its
// enclosing item; items already processed are left alone.
func (s *Scanner) Process(ctx context.Context, n *html.Node) {
	if !s.settings.Enabled {
		if item := s.filteredAncestor(n); item != nil {
			s.applier.Revert(item)
		}
		return
	}

	item := tree.ItemFor(n)
	if item == nil || s.applier.IsProcessed(item) {
		return
	}

	m := s.applier.Markers().Get(item)
	if !m.CountedScan {
		m.CountedScan = true
		s.stats.RecordScan(ctx)
	}

	verdict := s.classifier.Classify(tree.ExtractFields(item), s.settings)
	if verdict.MatchedCountry != "" && !m.CountedLocation {
		m.CountedLocation = true
		s.stats.RecordLocationFound(ctx, verdict.MatchedCountry)
	}

	reason, blocked := verdict.Reason(s.settings)
	if !blocked {
		s.applier.MarkScanned(item)
		return
	}

	s.applier.Apply(item, s.settings.FilterMode, reason)
	log.Debug().
		Str("reason", reason.String()).
		Str("kind", string(reason.Kind)).
		Str("mode", string(s.settings.FilterMode)).
		Msg("scanner: filtered item")
	if !m.CountedHidden {
		m.CountedHidden = true
		s.stats.RecordHidden(ctx, reason.Kind)
	}
}

// UncountHidden makes every item count as hidden again the next time it
// is filtered. It pairs with zeroing the hidden counter.
func (s *Scanner) UncountHidden() {
	s.applier.Markers().UncountHidden()
}

func (s *Scanner) filteredAncestor(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if s.applier.IsFiltered(p) {
			return p
		}
	}
	return nil
}

// RevertAll undoes every filter treatment and clears processed markers.
// It returns how many filtered items were reverted.
func (s *Scanner) RevertAll() int {
	return s.applier.RevertAll()
}

// FilteredCount is the number of items currently filtered.
func (s *Scanner) FilteredCount() int {
	return len(s.applier.Filtered())
}
