// Package feed aggregates the community news feed from live sources.
package feed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/civic-events/internal/clock"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/logger"
	"github.com/pfrederiksen/civic-events/internal/metrics"
)

// DefaultMaxItems caps a feed response. It is also the largest MaxItems
// accepted by New.
const DefaultMaxItems = 5

// Source produces news items from one upstream. Implementations absorb their
// own failures and report them as no items.
type Source interface {
	Name() event.SourceName
	FetchItems(ctx context.Context) []event.NewsItem
}

// Result is one aggregation outcome.
type Result struct {
	Items     []event.NewsItem `json:"items"`
	Source    event.Provenance `json:"source"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// Config tunes an Aggregator. Zero values select defaults.
type Config struct {
	MaxItems int
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}

// Aggregator runs every source concurrently and merges their items in the
// configured source order. It holds no mutable state, so one Aggregator can
// serve concurrent runs.
type Aggregator struct {
	sources  []Source
	fallback []event.NewsItem
	maxItems int
	clock    clock.Clock
	metrics  *metrics.Metrics
}

// New creates an Aggregator. fallback must be non-empty; it is what Run
// returns whenever no source yields anything.
func New(sources []Source, fallback []event.NewsItem, cfg Config) (*Aggregator, error) {
	if len(fallback) == 0 {
		return nil, fmt.Errorf("feed fallback must not be empty")
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.MaxItems > DefaultMaxItems {
		return nil, fmt.Errorf("feed max items %d exceeds the limit of %d", cfg.MaxItems, DefaultMaxItems)
	}
	if len(fallback) > cfg.MaxItems {
		return nil, fmt.Errorf("feed fallback has %d items, more than the %d allowed", len(fallback), cfg.MaxItems)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}

	fb := make([]event.NewsItem, len(fallback))
	copy(fb, fallback)

	return &Aggregator{
		sources:  sources,
		fallback: fb,
		maxItems: cfg.MaxItems,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
	}, nil
}

// Run fetches all sources and returns at most MaxItems live items, or the
// fallback items when the live result is empty. It never fails.
//
// Fetches are bounded only by their own timeouts: cancelling ctx does not cut
// a run short, so a departed caller cannot turn a healthy run into a fallback.
func (a *Aggregator) Run(ctx context.Context) Result {
	ctx = context.WithoutCancel(ctx)
	perSource := make([][]event.NewsItem, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			perSource[i] = collect(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var items []event.NewsItem
	for _, batch := range perSource {
		items = append(items, batch...)
	}

	res := Result{FetchedAt: a.clock.Now().UTC()}
	if len(items) > 0 {
		if len(items) > a.maxItems {
			items = items[:a.maxItems]
		}
		res.Items = items
		res.Source = event.ProvenanceLive
	} else {
		res.Items = make([]event.NewsItem, len(a.fallback))
		copy(res.Items, a.fallback)
		res.Source = event.ProvenanceFallback
	}

	a.metrics.IncFeedRun(string(res.Source))
	fields := logger.Fields{
		"provenance": res.Source,
		"items":      len(res.Items),
	}
	for i, src := range a.sources {
		fields["source_"+string(src.Name())] = len(perSource[i])
	}
	if res.Source == event.ProvenanceFallback {
		logger.Warn("community feed fell back to curated items", fields, nil)
	} else {
		logger.Info("community feed aggregated", fields)
	}

	return res
}

// collect runs one source and turns a panic into an empty result.
func collect(ctx context.Context, src Source) (items []event.NewsItem) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("source panicked", logger.Fields{
				"source": src.Name(),
				"panic":  fmt.Sprint(r),
			}, nil)
			items = nil
		}
	}()
	return src.FetchItems(ctx)
}
