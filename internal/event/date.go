package event

import (
	"strings"
	"time"
)

// ISODate is the layout of canonical event dates.
const ISODate = "2006-01-02"

// dateLayouts are tried in order by ParseDate. All carry a year; yearless
// text is left for the caller to keep verbatim.
var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"1/2/2006",
	"1/2/06",
	"1.2.2006",
	"1.2.06",
	"1-2-2006",
}

// ParseDate attempts to parse free-text date into a time.Time.
// Returns time.Time{} (zero value) if parsing fails.
// Supports formats like "March 3, 2026", "Mar 3 2026", "3/3/2026", "3.3.26".
func ParseDate(dateText string) time.Time {
	text := strings.Join(strings.Fields(dateText), " ")
	if text == "" {
		return time.Time{}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}

	// "Sept" is common on municipal sites but unknown to time.Parse
	if strings.Contains(text, "Sept ") {
		return ParseDate(strings.Replace(text, "Sept ", "Sep ", 1))
	}

	return time.Time{}
}

// NormalizeDate returns text as an ISO date when it parses, the leading
// ISO date when text is an RFC 3339 timestamp, and text unchanged otherwise.
func NormalizeDate(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 10 {
		if _, err := time.Parse(ISODate, text[:10]); err == nil {
			return text[:10]
		}
	}
	if t := ParseDate(text); !t.IsZero() {
		return t.Format(ISODate)
	}
	return text
}
