// Package server exposes the community feed, the canonical events and their
// calendar export over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pfrederiksen/civic-events/internal/cache"
	"github.com/pfrederiksen/civic-events/internal/calendar"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/feed"
	"github.com/pfrederiksen/civic-events/internal/filter"
	"github.com/pfrederiksen/civic-events/internal/logger"
	"github.com/pfrederiksen/civic-events/internal/metrics"
	"github.com/pfrederiksen/civic-events/internal/store"
)

// Routes served by Handler.
const (
	RouteCommunityFeed = "/api/community-feed"
	RouteEvents        = "/api/events"
	RouteEventsICS     = "/api/events/ics"
	RouteHealth        = "/health"
	RouteMetrics       = "/metrics"
)

const (
	feedCacheKey   = "community-feed"
	icsFilename    = "civic-events.ics"
	contentTypeICS = "text/calendar; charset=utf-8"
)

// FeedRunner produces one community feed.
type FeedRunner interface {
	Run(ctx context.Context) feed.Result
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Feed    FeedRunner
	Events  store.Repository
	Encoder *calendar.Encoder
	Cache   *cache.Revalidator
	Metrics *metrics.Metrics

	FeedPolicy   cache.Policy
	EventsPolicy cache.Policy
}

// Server holds the routes and their collaborators.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router. A nil Cache runs the feed on every request.
func New(deps Deps) *Server {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get(RouteHealth, s.handleHealth)
	r.Method(http.MethodGet, RouteMetrics, deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/community-feed", s.handleCommunityFeed)
		r.Get("/events", s.handleEvents)
		r.Get("/events/ics", s.handleEventsICS)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", logger.Fields{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	TotalEvents int    `json:"totalEvents"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Events.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     c.Metadata.Version,
		LastUpdated: c.Metadata.LastUpdated,
		TotalEvents: c.Metadata.TotalEvents,
	})
}

func (s *Server) handleCommunityFeed(w http.ResponseWriter, r *http.Request) {
	compute := func(ctx context.Context) (cache.Entry, error) {
		body, err := json.Marshal(s.deps.Feed.Run(ctx))
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Body: body, ContentType: "application/json"}, nil
	}

	var (
		entry cache.Entry
		err   error
	)
	if s.deps.Cache != nil {
		entry, err = s.deps.Cache.Get(r.Context(), feedCacheKey, s.deps.FeedPolicy, compute)
	} else {
		entry, err = compute(context.WithoutCancel(r.Context()))
	}
	if err != nil {
		// The feed itself never fails; only encoding can.
		logger.Error("community feed render failed", nil, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "feed unavailable"})
		return
	}

	w.Header().Set("Cache-Control", cacheControl(s.deps.FeedPolicy))
	w.Header().Set("Content-Type", entry.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Body)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	c := s.loadEvents(r.Context())
	result := filter.Query(c, filter.ParseQuery(r.URL.Query()))

	w.Header().Set("Cache-Control", cacheControl(s.deps.EventsPolicy))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	c := s.loadEvents(r.Context())
	result := filter.QuerySorted(c, filter.ParseQuery(r.URL.Query()), filter.SortByDate)

	w.Header().Set("Cache-Control", cacheControl(s.deps.EventsPolicy))
	w.Header().Set("Content-Type", contentTypeICS)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", icsFilename))
	w.WriteHeader(http.StatusOK)
	if _, err := s.deps.Encoder.WriteTo(w, result.Events); err != nil {
		logger.Warn("writing calendar failed", logger.Fields{"events": len(result.Events)}, err)
	}
}

// loadEvents degrades to an empty collection so event routes always answer.
func (s *Server) loadEvents(ctx context.Context) event.Collection {
	c, err := s.deps.Events.Load(ctx)
	if err != nil {
		logger.Error("loading events failed", nil, err)
		return event.NewCollection(nil, event.Metadata{Sources: []string{}})
	}
	return c
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			s.deps.Metrics.IncHTTP(route, strconv.Itoa(status))

			logger.Info("http request", logger.Fields{
				"method":      r.Method,
				"route":       route,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			})
		}()

		next.ServeHTTP(ww, r)
	})
}

func cacheControl(p cache.Policy) string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		int(p.MaxAge.Seconds()), int(p.StaleWhileRevalidate.Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encoding response failed", nil, err)
	}
}
