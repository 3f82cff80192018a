package feed

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/civic-events/internal/clock"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/metrics"
	"github.com/pfrederiksen/civic-events/internal/scraper"
)

var fixedNow = time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)

type stubSource struct {
	name  event.SourceName
	items []event.NewsItem
	delay time.Duration
	panic bool
}

func (s stubSource) Name() event.SourceName { return s.name }

func (s stubSource) FetchItems(ctx context.Context) []event.NewsItem {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panic {
		panic("boom")
	}
	return s.items
}

func items(source event.SourceName, n int) []event.NewsItem {
	out := make([]event.NewsItem, n)
	for i := range out {
		out[i] = event.NewsItem{
			ID:        fmt.Sprintf("%s-%d", source, i),
			Title:     fmt.Sprintf("%s council meeting %d", source, i),
			Source:    source,
			SourceURL: "https://example.org",
			Category:  event.CategoryMeeting,
		}
	}
	return out
}

func fallbackItems() []event.NewsItem {
	return []event.NewsItem{
		{ID: "fb-1", Title: "Board meets monthly", Source: event.SourceISD, SourceURL: "https://isd.example.org", Category: event.CategoryMeeting},
		{ID: "fb-2", Title: "Sign up for city alerts", Source: event.SourceCity, SourceURL: "https://city.example.gov", Category: event.CategoryAlert},
	}
}

func newAggregator(t *testing.T, sources ...Source) *Aggregator {
	t.Helper()
	agg, err := New(sources, fallbackItems(), Config{Clock: clock.Fixed(fixedNow), Metrics: metrics.NewRegistry()})
	require.NoError(t, err)
	return agg
}

func TestRunLiveKeepsSourceOrder(t *testing.T) {
	// City answers first but ISD items still lead.
	agg := newAggregator(t,
		stubSource{name: event.SourceISD, items: items(event.SourceISD, 2), delay: 30 * time.Millisecond},
		stubSource{name: event.SourceCity, items: items(event.SourceCity, 2)},
	)

	res := agg.Run(context.Background())

	require.Equal(t, event.ProvenanceLive, res.Source)
	require.Equal(t, fixedNow, res.FetchedAt)
	require.Len(t, res.Items, 4)
	require.Equal(t, []string{"ISD-0", "ISD-1", "City-0", "City-1"},
		[]string{res.Items[0].ID, res.Items[1].ID, res.Items[2].ID, res.Items[3].ID})
}

func TestRunTruncatesToMaxItems(t *testing.T) {
	agg := newAggregator(t,
		stubSource{name: event.SourceISD, items: items(event.SourceISD, 4)},
		stubSource{name: event.SourceCity, items: items(event.SourceCity, 4)},
	)

	res := agg.Run(context.Background())

	require.Equal(t, event.ProvenanceLive, res.Source)
	require.Len(t, res.Items, DefaultMaxItems)
	require.Equal(t, "City-0", res.Items[4].ID)
}

func TestRunFallsBackWhenEmpty(t *testing.T) {
	agg := newAggregator(t,
		stubSource{name: event.SourceISD},
		stubSource{name: event.SourceCity, items: []event.NewsItem{}},
	)

	res := agg.Run(context.Background())

	require.Equal(t, event.ProvenanceFallback, res.Source)
	require.Equal(t, fallbackItems(), res.Items)
}

func TestRunOneSourceSuffices(t *testing.T) {
	agg := newAggregator(t,
		stubSource{name: event.SourceISD},
		stubSource{name: event.SourceCity, items: items(event.SourceCity, 1)},
	)

	res := agg.Run(context.Background())

	require.Equal(t, event.ProvenanceLive, res.Source)
	require.Len(t, res.Items, 1)
}

func TestRunAbsorbsSourcePanic(t *testing.T) {
	agg := newAggregator(t,
		stubSource{name: event.SourceISD, panic: true},
		stubSource{name: event.SourceCity, items: items(event.SourceCity, 2)},
	)

	res := agg.Run(context.Background())

	require.Equal(t, event.ProvenanceLive, res.Source)
	require.Len(t, res.Items, 2)
}

func TestRunSourcesConcurrently(t *testing.T) {
	agg := newAggregator(t,
		stubSource{name: event.SourceISD, delay: 200 * time.Millisecond},
		stubSource{name: event.SourceCity, delay: 200 * time.Millisecond},
	)

	start := time.Now()
	agg.Run(context.Background())
	require.Less(t, time.Since(start), 390*time.Millisecond)
}

func TestRunCountAndProvenanceProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		isd, city := rng.Intn(8), rng.Intn(8)
		agg := newAggregator(t,
			stubSource{name: event.SourceISD, items: items(event.SourceISD, isd)},
			stubSource{name: event.SourceCity, items: items(event.SourceCity, city)},
		)

		res := agg.Run(context.Background())

		require.LessOrEqual(t, len(res.Items), DefaultMaxItems)
		require.NotEmpty(t, res.Items)
		if isd+city == 0 {
			require.Equal(t, event.ProvenanceFallback, res.Source, "round %d", round)
		} else {
			require.Equal(t, event.ProvenanceLive, res.Source, "round %d", round)
		}
	}
}

func TestRunBothSourcesTimeOut(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	isd := scraper.New(scraper.Config{Name: event.SourceISD, Tag: "isd", URL: slow.URL, Timeout: 50 * time.Millisecond}, nil)
	city := scraper.New(scraper.Config{Name: event.SourceCity, Tag: "city", URL: slow.URL, Timeout: 50 * time.Millisecond}, nil)
	agg := newAggregator(t, isd, city)

	start := time.Now()
	res := agg.Run(context.Background())

	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, event.ProvenanceFallback, res.Source)
	require.Equal(t, fallbackItems(), res.Items)
}

func TestRunIgnoresCallerCancellation(t *testing.T) {
	page, err := os.ReadFile("../../testdata/fixtures/isd_events.html")
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.Write(page)
	}))
	defer upstream.Close()

	isd := scraper.New(scraper.Config{Name: event.SourceISD, Tag: "isd", URL: upstream.URL, Timeout: 2 * time.Second}, nil)
	agg := newAggregator(t, isd)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := agg.Run(ctx)

	require.Equal(t, event.ProvenanceLive, res.Source)
	require.NotEmpty(t, res.Items)
}

func TestRunDoesNotShareFallback(t *testing.T) {
	agg := newAggregator(t, stubSource{name: event.SourceISD})

	res := agg.Run(context.Background())
	res.Items[0].Title = "changed"

	again := agg.Run(context.Background())
	require.Equal(t, "Board meets monthly", again.Items[0].Title)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil, Config{})
	require.Error(t, err)

	tooMany := append(fallbackItems(), fallbackItems()...)
	_, err = New(nil, tooMany, Config{MaxItems: 3})
	require.Error(t, err)

	_, err = New(nil, fallbackItems(), Config{MaxItems: DefaultMaxItems + 1})
	require.Error(t, err)

	agg, err := New(nil, fallbackItems(), Config{})
	require.NoError(t, err)
	require.Equal(t, DefaultMaxItems, agg.maxItems)
}
