package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pfrederiksen/civic-events/internal/clock"
	"github.com/pfrederiksen/civic-events/internal/logger"
	"github.com/pfrederiksen/civic-events/internal/metrics"
)

// Lookup results reported to metrics.
const (
	ResultHit   = "hit"
	ResultStale = "stale"
	ResultMiss  = "miss"
)

// ComputeFunc renders a fresh entry.
type ComputeFunc func(ctx context.Context) (Entry, error)

// Policy is a stale-while-revalidate window.
type Policy struct {
	// MaxAge is how long an entry is served without recomputing.
	MaxAge time.Duration
	// StaleWhileRevalidate is how long past MaxAge an entry may still be
	// served while one background refresh runs.
	StaleWhileRevalidate time.Duration
}

// Revalidator serves cached entries and recomputes them at most once per key
// at a time.
type Revalidator struct {
	store   Store
	clock   clock.Clock
	metrics *metrics.Metrics
	group   singleflight.Group

	// refreshTimeout bounds a background refresh detached from its request.
	refreshTimeout time.Duration
}

// NewRevalidator wraps store. A nil clock reads the system time.
func NewRevalidator(store Store, c clock.Clock, m *metrics.Metrics) *Revalidator {
	if c == nil {
		c = clock.Real{}
	}
	return &Revalidator{store: store, clock: c, metrics: m, refreshTimeout: time.Minute}
}

// Get returns a fresh or still-revalidatable entry for key, computing one when
// neither exists. Store failures degrade to computing on every call.
func (r *Revalidator) Get(ctx context.Context, key string, p Policy, compute ComputeFunc) (Entry, error) {
	e, err := r.store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrMiss) {
		logger.Warn("cache read failed", logger.Fields{"key": key}, err)
	}

	if err == nil {
		age := r.clock.Now().Sub(e.StoredAt)
		switch {
		case age < p.MaxAge:
			r.metrics.IncCache(ResultHit)
			return e, nil
		case age < p.MaxAge+p.StaleWhileRevalidate:
			r.metrics.IncCache(ResultStale)
			r.refreshAsync(ctx, key, p, compute)
			return e, nil
		}
	}

	r.metrics.IncCache(ResultMiss)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// Waiters share this result, so one caller going away must not
		// cancel it for the rest or get its failure cached.
		bg, cancel := r.detach(ctx)
		defer cancel()
		return r.refresh(bg, key, p, compute)
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (r *Revalidator) refreshAsync(ctx context.Context, key string, p Policy, compute ComputeFunc) {
	bg, cancel := r.detach(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.refresh(bg, key, p, compute)
	})
	go func() {
		defer cancel()
		if res := <-ch; res.Err != nil {
			logger.Warn("background refresh failed", logger.Fields{"key": key}, res.Err)
		}
	}()
}

// detach keeps ctx values but drops its cancellation, bounding the compute by
// refreshTimeout instead.
func (r *Revalidator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.refreshTimeout)
}

func (r *Revalidator) refresh(ctx context.Context, key string, p Policy, compute ComputeFunc) (Entry, error) {
	e, err := compute(ctx)
	if err != nil {
		return Entry{}, err
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = r.clock.Now()
	}
	if err := r.store.Set(ctx, key, e, p.MaxAge+p.StaleWhileRevalidate); err != nil {
		logger.Warn("cache write failed", logger.Fields{"key": key}, err)
	}
	return e, nil
}
