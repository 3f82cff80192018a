package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pfrederiksen/civic-events/internal/cache"
	"github.com/pfrederiksen/civic-events/internal/calendar"
	"github.com/pfrederiksen/civic-events/internal/clock"
	"github.com/pfrederiksen/civic-events/internal/config"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/feed"
	"github.com/pfrederiksen/civic-events/internal/metrics"
	"github.com/pfrederiksen/civic-events/internal/scraper"
	"github.com/pfrederiksen/civic-events/internal/store"
)

// app is the collaborator graph shared by every subcommand.
type app struct {
	cfg      *config.Config
	clock    clock.Clock
	metrics  *metrics.Metrics
	snapshot *store.Snapshot
	closers  []io.Closer
}

// newApp loads the canonical and fallback datasets from the configured store.
// m may be nil for one-shot commands that never expose metrics.
func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, clock: clock.Real{}, metrics: m}

	var (
		repo store.Repository
		fb   store.FallbackSource
	)
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := store.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		pg := store.NewPostgres(db)
		repo, fb = pg, pg
	default:
		files, err := store.NewFile(cfg.Store.EventsPath, cfg.Store.FallbackPath)
		if err != nil {
			return nil, err
		}
		repo, fb = files, files
	}

	snap, err := store.LoadSnapshot(ctx, repo, fb)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.snapshot = snap
	return a, nil
}

// Close releases database and cache connections.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *app) sources() []feed.Source {
	src := a.cfg.Sources
	return []feed.Source{
		scraper.New(scraper.Config{
			Name:      event.SourceISD,
			Tag:       "isd",
			URL:       src.ISDURL,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.metrics),
		scraper.New(scraper.Config{
			Name:      event.SourceCity,
			Tag:       "city",
			URL:       src.CityURL,
			Timeout:   src.Timeout,
			UserAgent: src.UserAgent,
		}, a.metrics),
	}
}

func (a *app) aggregator() (*feed.Aggregator, error) {
	return feed.New(a.sources(), a.snapshot.FallbackItems(), feed.Config{
		MaxItems: a.cfg.Feed.MaxItems,
		Clock:    a.clock,
		Metrics:  a.metrics,
	})
}

func (a *app) encoder() *calendar.Encoder {
	cal := a.cfg.Calendar
	return calendar.NewEncoder(calendar.Config{
		ProdID:       cal.ProdID,
		CalendarName: cal.Name,
		Domain:       cal.Domain,
		TZID:         cal.TZID,
	}, a.clock)
}

func (a *app) revalidator(ctx context.Context) (*cache.Revalidator, error) {
	var backend cache.Store
	switch a.cfg.Cache.Driver {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting cache: %w", err)
		}
		a.closers = append(a.closers, client)
		backend = cache.NewRedis(client, a.cfg.Cache.RedisPrefix)
	default:
		backend = cache.NewMemory(a.clock)
	}
	return cache.NewRevalidator(backend, a.clock, a.metrics), nil
}

// serverMetrics registers collectors with the default Prometheus registry so
// /metrics also carries the Go runtime and process collectors.
func serverMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func cachePolicy(maxAge, swr time.Duration) cache.Policy {
	return cache.Policy{MaxAge: maxAge, StaleWhileRevalidate: swr}
}
