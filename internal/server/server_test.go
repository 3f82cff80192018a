package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/civic-events/internal/cache"
	"github.com/pfrederiksen/civic-events/internal/calendar"
	"github.com/pfrederiksen/civic-events/internal/clock"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/feed"
	"github.com/pfrederiksen/civic-events/internal/filter"
	"github.com/pfrederiksen/civic-events/internal/metrics"
	"github.com/pfrederiksen/civic-events/internal/scraper"
	"github.com/pfrederiksen/civic-events/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	feedPolicy   = cache.Policy{MaxAge: 6 * time.Hour, StaleWhileRevalidate: 24 * time.Hour}
	eventsPolicy = cache.Policy{MaxAge: time.Hour, StaleWhileRevalidate: 24 * time.Hour}
)

type stubFeed struct {
	calls int32
	panic bool
}

func (f *stubFeed) Run(context.Context) feed.Result {
	atomic.AddInt32(&f.calls, 1)
	if f.panic {
		panic("aggregation exploded")
	}
	return feed.Result{
		Items: []event.NewsItem{{
			ID:        "isd-0-1a2b3c4d",
			Title:     "Board of Trustees Regular Meeting",
			Source:    event.SourceISD,
			SourceURL: "https://isd.lakeview.example.org/board",
			Category:  event.CategoryMeeting,
		}},
		Source:    event.ProvenanceLive,
		FetchedAt: fixedNow,
	}
}

type failingRepo struct{}

func (failingRepo) Load(context.Context) (event.Collection, error) {
	return event.Collection{}, errors.New("connection refused")
}

func newTestServer(t *testing.T, runner FeedRunner, withCache bool) (*Server, *metrics.Metrics) {
	t.Helper()

	files, err := store.NewFile("", "")
	require.NoError(t, err)
	snap, err := store.LoadSnapshot(context.Background(), files, files)
	require.NoError(t, err)

	m := metrics.NewRegistry()
	deps := Deps{
		Feed:         runner,
		Events:       snap,
		Encoder:      calendar.NewEncoder(calendar.Config{}, clock.Fixed(fixedNow)),
		Metrics:      m,
		FeedPolicy:   feedPolicy,
		EventsPolicy: eventsPolicy,
	}
	if withCache {
		deps.Cache = cache.NewRevalidator(cache.NewMemory(clock.Fixed(fixedNow)), clock.Fixed(fixedNow), m)
	}
	return New(deps), m
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCommunityFeed(t *testing.T) {
	runner := &stubFeed{}
	srv, _ := newTestServer(t, runner, true)

	rec := get(t, srv.Handler(), RouteCommunityFeed)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "public, s-maxage=21600, stale-while-revalidate=86400", rec.Header().Get("Cache-Control"))

	var res feed.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, event.ProvenanceLive, res.Source)
	require.Len(t, res.Items, 1)
	require.True(t, fixedNow.Equal(res.FetchedAt))
	require.Contains(t, rec.Body.String(), `"sourceUrl":"https://isd.lakeview.example.org/board"`)
}

func TestCommunityFeedServedFromCache(t *testing.T) {
	runner := &stubFeed{}
	srv, _ := newTestServer(t, runner, true)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(t, srv.Handler(), RouteCommunityFeed).Code)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&runner.calls))
}

func TestCommunityFeedWithoutCache(t *testing.T) {
	runner := &stubFeed{}
	srv, _ := newTestServer(t, runner, false)

	get(t, srv.Handler(), RouteCommunityFeed)
	get(t, srv.Handler(), RouteCommunityFeed)
	require.EqualValues(t, 2, atomic.LoadInt32(&runner.calls))
}

func TestCommunityFeedPanicRecovered(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{panic: true}, false)

	rec := get(t, srv.Handler(), RouteCommunityFeed)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEvents(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
		wantLen int
	}{
		{name: "no filters", query: "", wantLen: 9},
		{name: "single type", query: "?type=debate", wantIDs: []string{"lv-2026-hd12-debate"}},
		{name: "city is case-insensitive", query: "?city=harbor%20city", wantIDs: []string{"lv-2026-hd12-debate"}},
		{name: "multi-value type", query: "?type=debate,town_hall", wantLen: 2},
		{name: "unverified", query: "?verified=false", wantLen: 3},
		{name: "date window", query: "?from=2026-03-01&to=2026-03-10", wantLen: 3},
		{name: "unknown type matches nothing", query: "?type=parade", wantLen: 0},
		{name: "malformed verified matches nothing", query: "?verified=maybe", wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv.Handler(), RouteEvents+tt.query)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "public, s-maxage=3600, stale-while-revalidate=86400", rec.Header().Get("Cache-Control"))

			var res filter.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.NotNil(t, res.Events)
			require.Equal(t, len(res.Events), res.TotalCount)
			require.Equal(t, "2026.03.1", res.Metadata.Version)
			require.Equal(t, 9, res.Metadata.TotalEvents)

			if tt.wantIDs != nil {
				ids := make([]string, len(res.Events))
				for i, e := range res.Events {
					ids[i] = e.ID
				}
				require.Equal(t, tt.wantIDs, ids)
			} else {
				require.Len(t, res.Events, tt.wantLen)
			}
		})
	}
}

func TestEventsEmptyListIsArray(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	rec := get(t, srv.Handler(), RouteEvents+"?party=green")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"events":[]`)
	require.Contains(t, rec.Body.String(), `"totalCount":0`)
}

func TestEventsStoreFailureStillAnswers(t *testing.T) {
	srv := New(Deps{
		Feed:    &stubFeed{},
		Events:  failingRepo{},
		Encoder: calendar.NewEncoder(calendar.Config{}, clock.Fixed(fixedNow)),
	})

	rec := get(t, srv.Handler(), RouteEvents)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"events":[]`)

	rec = get(t, srv.Handler(), RouteHealth)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventsICS(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	rec := get(t, srv.Handler(), RouteEventsICS)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="civic-events.ics"`, rec.Header().Get("Content-Disposition"))
	require.NotEmpty(t, rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
	require.True(t, strings.HasSuffix(body, "END:VCALENDAR\r\n"))
	require.Equal(t, 9, strings.Count(body, "BEGIN:VEVENT\r\n"))
	require.Less(t, strings.Index(body, "UID:lv-2026-early-voting@"), strings.Index(body, "UID:lv-2026-voter-reg-drive@"))
}

func TestEventsICSFiltered(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	rec := get(t, srv.Handler(), RouteEventsICS+"?type=debate")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	rec := get(t, srv.Handler(), RouteHealth)
	require.Equal(t, http.StatusOK, rec.Code)

	var res healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "ok", res.Status)
	require.Equal(t, "2026.03.1", res.Version)
	require.Equal(t, 9, res.TotalEvents)
}

func TestMetricsRecordRoutes(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, true)

	get(t, srv.Handler(), RouteEvents+"?type=debate")
	get(t, srv.Handler(), RouteCommunityFeed)
	require.Equal(t, http.StatusNotFound, get(t, srv.Handler(), "/api/nope").Code)

	body := get(t, srv.Handler(), RouteMetrics).Body.String()
	require.Contains(t, body, `civic_events_http_requests_total{route="/api/events",status="200"} 1`)
	require.Contains(t, body, `civic_events_http_requests_total{route="/api/community-feed",status="200"} 1`)
	require.Contains(t, body, `civic_events_cache_lookups_total{result="miss"} 1`)
}

func TestOnlyGET(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, RouteEvents, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCacheControl(t *testing.T) {
	require.Equal(t, "public, s-maxage=21600, stale-while-revalidate=86400", cacheControl(feedPolicy))
	require.Equal(t, "public, s-maxage=0, stale-while-revalidate=0", cacheControl(cache.Policy{}))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, &stubFeed{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCommunityFeedCachesLiveResultWhenFirstClientLeaves(t *testing.T) {
	page, err := os.ReadFile("../../testdata/fixtures/isd_events.html")
	require.NoError(t, err)

	var hits int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.Write(page)
	}))
	defer upstream.Close()

	isd := scraper.New(scraper.Config{Name: event.SourceISD, Tag: "isd", URL: upstream.URL, Timeout: 2 * time.Second}, nil)
	agg, err := feed.New([]feed.Source{isd}, []event.NewsItem{{
		ID:        "fallback-isd-board",
		Title:     "Board meets monthly",
		Source:    event.SourceISD,
		SourceURL: "https://isd.lakeview.example.org/board",
		Category:  event.CategoryMeeting,
	}}, feed.Config{Clock: clock.Fixed(fixedNow)})
	require.NoError(t, err)

	srv, _ := newTestServer(t, agg, true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RouteCommunityFeed, nil).WithContext(ctx))

	second := get(t, srv.Handler(), RouteCommunityFeed)
	require.Equal(t, http.StatusOK, second.Code)

	var res feed.Result
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &res))
	require.Equal(t, event.ProvenanceLive, res.Source)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
