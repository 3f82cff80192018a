package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/feed"
	"github.com/pfrederiksen/civic-events/internal/filter"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(raw string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(raw)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", raw)
	}
	return format, nil
}

// WriteFeed writes one aggregation result in the specified format
func WriteFeed(w io.Writer, result feed.Result, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeFeedText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteEvents writes a query result in the specified format
func WriteEvents(w io.Writer, result filter.Result, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeEventsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeFeedText(w io.Writer, result feed.Result, verbose bool) error {
	for _, item := range result.Items {
		fmt.Fprintf(w, "[%s] %s: %s\n", item.Category, item.Source, item.Title)
		if verbose {
			fmt.Fprintf(w, "     ID: %s\n", item.ID)
			if item.Date != "" {
				fmt.Fprintf(w, "     Date: %s\n", item.Date)
			}
			fmt.Fprintf(w, "     URL: %s\n", item.SourceURL)
		}
	}

	label := string(result.Source)
	if result.Source == event.ProvenanceFallback {
		label += " (no live items)"
	}
	fmt.Fprintf(w, "\nTotal: %d items, source %s, fetched %s\n",
		len(result.Items), label, result.FetchedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func writeEventsText(w io.Writer, result filter.Result, verbose bool) error {
	if result.TotalCount == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	for _, evt := range result.Events {
		fmt.Fprintf(w, "%s %s  %s (%s)\n", evt.Date, evt.StartTime, evt.Title, evt.Venue.City)
		if verbose {
			fmt.Fprintf(w, "     ID: %s\n", evt.ID)
			fmt.Fprintf(w, "     Type: %s, Office: %s\n", evt.EventType, evt.OfficeLevel)
			if loc := evt.Location(); loc != "" {
				fmt.Fprintf(w, "     Where: %s\n", loc)
			}
			for _, c := range evt.Candidates {
				fmt.Fprintf(w, "     Candidate: %s (%s)\n", c.Name, c.Party)
			}
			if evt.RegistrationURL != "" {
				fmt.Fprintf(w, "     Register: %s\n", evt.RegistrationURL)
			}
		}
	}

	fmt.Fprintf(w, "\nTotal: %d of %d events (dataset %s)\n",
		result.TotalCount, result.Metadata.TotalEvents, result.Metadata.Version)
	return nil
}
