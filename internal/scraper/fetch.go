package scraper

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pfrederiksen/civic-events/internal/logger"
	"github.com/pfrederiksen/civic-events/internal/metrics"
)

// fetch issues exactly one GET under the scraper's timeout. It returns nil on
// any failure; the cause is only logged and counted.
func (s *Scraper) fetch(ctx context.Context) []byte {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields := logger.Fields{"source": s.name, "url": s.url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.metrics.ObserveFetch(string(s.name), metrics.OutcomeError, time.Since(start))
		logger.Warn("creating request", fields, err)
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.ObserveFetch(string(s.name), fetchOutcome(err), time.Since(start))
		logger.Warn("fetching page", fields, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.metrics.ObserveFetch(string(s.name), metrics.OutcomeStatus, time.Since(start))
		fields["status"] = resp.StatusCode
		logger.Warn("unexpected status code", fields, nil)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.metrics.ObserveFetch(string(s.name), fetchOutcome(err), time.Since(start))
		logger.Warn("reading body", fields, err)
		return nil
	}

	s.metrics.ObserveFetch(string(s.name), metrics.OutcomeOK, time.Since(start))
	return body
}

func fetchOutcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeError
}
