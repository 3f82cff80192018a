// Package store loads the curated datasets the pipeline reads: the canonical
// event collection and the community feed fallback items.
//
// Both datasets are authored out-of-band and treated as immutable snapshots.
// They can live in YAML/JSON files (FileRepository, with built-in defaults)
// or in PostgreSQL (PostgresRepository). Every load is validated; unknown
// enum values reject the whole dataset.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/civic-events/internal/event"
)

// MaxFallbackItems bounds the curated fallback so it never exceeds a live feed.
const MaxFallbackItems = 5

var (
	// ErrInvalidEvent wraps validation failures of the canonical dataset.
	ErrInvalidEvent = errors.New("invalid canonical event")
	// ErrInvalidFallback wraps validation failures of the fallback items.
	ErrInvalidFallback = errors.New("invalid fallback items")
)

// Repository supplies the canonical event collection.
type Repository interface {
	Load(ctx context.Context) (event.Collection, error)
}

// FallbackSource supplies the curated community feed fallback.
type FallbackSource interface {
	Fallback(ctx context.Context) ([]event.NewsItem, error)
}

// Dataset is the on-disk shape of a canonical event file.
type Dataset struct {
	Metadata event.Metadata         `json:"metadata" yaml:"metadata"`
	Events   []event.CanonicalEvent `json:"events" yaml:"events"`
}

// FallbackDataset is the on-disk shape of a fallback file.
type FallbackDataset struct {
	Items []event.NewsItem `json:"items" yaml:"items"`
}

// collect validates a dataset and builds the immutable collection.
func collect(ds Dataset) (event.Collection, error) {
	if err := event.ValidateAll(ds.Events); err != nil {
		return event.Collection{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return event.NewCollection(ds.Events, ds.Metadata), nil
}

func checkFallback(items []event.NewsItem) ([]event.NewsItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidFallback)
	}
	if len(items) > MaxFallbackItems {
		return nil, fmt.Errorf("%w: %d items, at most %d allowed", ErrInvalidFallback, len(items), MaxFallbackItems)
	}
	if err := event.ValidateNewsItems(items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFallback, err)
	}
	return items, nil
}

// Snapshot is a loaded, validated pair of datasets held in memory for the
// lifetime of one deployment.
type Snapshot struct {
	Events   event.Collection
	Fallback []event.NewsItem
}

// LoadSnapshot reads both datasets once.
func LoadSnapshot(ctx context.Context, repo Repository, fb FallbackSource) (*Snapshot, error) {
	events, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	items, err := fb.Fallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading fallback: %w", err)
	}
	return &Snapshot{Events: events, Fallback: items}, nil
}

// Load returns the in-memory collection.
func (s *Snapshot) Load(context.Context) (event.Collection, error) {
	return s.Events, nil
}

// FallbackItems returns a copy of the fallback items.
func (s *Snapshot) FallbackItems() []event.NewsItem {
	out := make([]event.NewsItem, len(s.Fallback))
	copy(out, s.Fallback)
	return out
}
