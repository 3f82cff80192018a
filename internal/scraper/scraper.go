package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/logger"
	"github.com/pfrederiksen/civic-events/internal/metrics"
)

const (
	DefaultTimeout   = 8 * time.Second
	DefaultUserAgent = "civic-events/1.0 (github.com/pfrederiksen/civic-events)"

	// MaxItemsPerSource caps the items one page can contribute.
	MaxItemsPerSource = 5

	// minTitleLength is the longest title that is still discarded.
	minTitleLength = 5

	maxBodyBytes = 2 << 20
)

// Config describes one upstream page.
type Config struct {
	Name      event.SourceName
	Tag       string
	URL       string
	Strategy  Strategy
	Timeout   time.Duration
	UserAgent string
}

// Scraper fetches one upstream page and turns it into news items.
// It never returns an error: every failure degrades to no items.
type Scraper struct {
	name      event.SourceName
	tag       string
	url       string
	client    *http.Client
	strategy  Strategy
	timeout   time.Duration
	userAgent string
	metrics   *metrics.Metrics
}

// New creates a new Scraper instance
func New(cfg Config, m *metrics.Metrics) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = StrategyFor(cfg.Name)
	}
	return &Scraper{
		name: cfg.Name,
		tag:  cfg.Tag,
		url:  cfg.URL,
		client: &http.Client{
			Timeout: timeout,
		},
		strategy:  strategy,
		timeout:   timeout,
		userAgent: ua,
		metrics:   m,
	}
}

// Name returns the source label stamped on every item.
func (s *Scraper) Name() event.SourceName {
	return s.name
}

// FetchItems fetches the page and extracts at most MaxItemsPerSource items in
// document order. Transport, status and parse failures all yield nil.
func (s *Scraper) FetchItems(ctx context.Context) (items []event.NewsItem) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ObserveFetch(string(s.name), metrics.OutcomePanic, 0)
			logger.Warn("extraction panicked", logger.Fields{
				"source": s.name,
				"url":    s.url,
				"panic":  fmt.Sprint(r),
			}, nil)
			items = nil
		}
	}()

	body := s.fetch(ctx)
	if len(body) == 0 {
		return nil
	}

	items, err := s.parseItems(bytes.NewReader(body), s.url)
	if err != nil {
		logger.Warn("extraction failed", logger.Fields{
			"source": s.name,
			"url":    s.url,
		}, err)
		return nil
	}

	s.metrics.AddItems(string(s.name), len(items))
	logger.Debug("source extracted", logger.Fields{
		"source": s.name,
		"items":  len(items),
	})
	return items
}

// parseItems extracts, filters, classifies and caps items from HTML
func (s *Scraper) parseItems(r io.Reader, sourceURL string) ([]event.NewsItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	base, _ := url.Parse(sourceURL)

	items := make([]event.NewsItem, 0, MaxItemsPerSource)
	for _, frag := range s.strategy.Extract(doc) {
		if utf8.RuneCountInString(frag.Title) <= minTitleLength {
			continue
		}
		if !IsRelevant(frag.Title) {
			continue
		}

		items = append(items, event.NewsItem{
			ID:        event.NewsItemID(s.tag, frag.Index, sourceURL, frag.Title, frag.Date),
			Title:     frag.Title,
			Date:      frag.Date,
			Source:    s.name,
			SourceURL: resolveLink(base, frag.Link, sourceURL),
			Category:  Classify(frag.Title),
		})
		if len(items) == MaxItemsPerSource {
			break
		}
	}

	return items, nil
}

// resolveLink makes a fragment's href absolute against the page URL, falling
// back to the page itself.
func resolveLink(base *url.URL, href, fallback string) string {
	if href == "" || base == nil {
		return fallback
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return fallback
	}
	return resolved.String()
}
