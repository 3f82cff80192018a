package calendar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/civic-events/internal/clock"
	"github.com/pfrederiksen/civic-events/internal/event"
)

const (
	DefaultProdID       = "-//Civic Events//civic-events//EN"
	DefaultCalendarName = "Civic Events"
	DefaultDomain       = "civic-events.org"
	DefaultTZID         = "America/Chicago"

	// maxLineOctets is the longest content line before folding.
	maxLineOctets = 75
)

// Config holds the fixed document-level values of the calendar.
type Config struct {
	ProdID       string
	CalendarName string
	// Domain is appended to event ids to form UIDs.
	Domain string
	// TZID labels every DTSTART/DTEND and names the emitted VTIMEZONE.
	TZID string
}

// Encoder serializes canonical events into one iCalendar document.
type Encoder struct {
	cfg   Config
	clock clock.Clock
}

// NewEncoder fills empty config values with defaults. A nil clock reads the
// system time.
func NewEncoder(cfg Config, c clock.Clock) *Encoder {
	if cfg.ProdID == "" {
		cfg.ProdID = DefaultProdID
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = DefaultCalendarName
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.TZID == "" {
		cfg.TZID = DefaultTZID
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Encoder{cfg: cfg, clock: c}
}

// Encode renders the events, in the given order, as an iCalendar document.
// It performs no filtering. DTSTAMP is the encoder clock's current time, so
// output is byte-identical across runs only when the clock is fixed.
func (e *Encoder) Encode(events []event.CanonicalEvent) string {
	var ics strings.Builder
	e.encode(&ics, events)
	return ics.String()
}

// WriteTo streams the encoded document to w.
func (e *Encoder) WriteTo(w io.Writer, events []event.CanonicalEvent) (int64, error) {
	n, err := io.WriteString(w, e.Encode(events))
	return int64(n), err
}

// UID returns the stable cross-reference identifier for an event.
func (e *Encoder) UID(evt *event.CanonicalEvent) string {
	return fmt.Sprintf("%s@%s", evt.ID, e.cfg.Domain)
}

func (e *Encoder) encode(ics *strings.Builder, events []event.CanonicalEvent) {
	line := func(s string) {
		ics.WriteString(foldLine(s))
		ics.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:" + e.cfg.ProdID)
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")
	line("X-WR-CALNAME:" + escapeICS(e.cfg.CalendarName))
	line("X-WR-TIMEZONE:" + e.cfg.TZID)

	// One stamp for the whole document.
	now := e.clock.Now()
	stamp := formatICSTime(now)

	e.encodeTimezone(line, events, now.Year())

	for i := range events {
		evt := &events[i]

		line("BEGIN:VEVENT")
		line("UID:" + e.UID(evt))
		line("DTSTAMP:" + stamp)
		line(fmt.Sprintf("DTSTART;TZID=%s:%s", e.cfg.TZID, formatLocal(evt.Date, evt.StartTime)))
		line(fmt.Sprintf("DTEND;TZID=%s:%s", e.cfg.TZID, formatLocal(evt.Date, evt.EndTime)))
		line("SUMMARY:" + escapeICS(evt.Title))
		if evt.Description != "" {
			line("DESCRIPTION:" + escapeICS(evt.Description))
		}
		if loc := evt.Location(); loc != "" {
			line("LOCATION:" + escapeICS(loc))
		}
		if c := evt.Venue.Coordinates; c != nil {
			line(fmt.Sprintf("GEO:%s;%s", formatCoord(c.Lat), formatCoord(c.Lng)))
		}
		line("CATEGORIES:" + escapeICS(string(evt.EventType)))
		if evt.RegistrationURL != "" {
			line("URL:" + evt.RegistrationURL)
		}
		line("STATUS:CONFIRMED")
		line("SEQUENCE:0")
		line("TRANSP:OPAQUE")
		line("END:VEVENT")
	}

	line("END:VCALENDAR")
}

// encodeTimezone writes the VTIMEZONE that DTSTART/DTEND reference. An
// unknown TZID is left to X-WR-TIMEZONE alone.
func (e *Encoder) encodeTimezone(line func(string), events []event.CanonicalEvent, nowYear int) {
	loc, err := time.LoadLocation(e.cfg.TZID)
	if err != nil {
		return
	}

	first, last := yearSpan(events, nowYear)
	line("BEGIN:VTIMEZONE")
	line("TZID:" + e.cfg.TZID)
	for _, o := range zoneObservances(loc, first, last) {
		kind := "STANDARD"
		if o.daylight {
			kind = "DAYLIGHT"
		}
		line("BEGIN:" + kind)
		line("DTSTART:" + o.onset)
		line("TZOFFSETFROM:" + formatOffset(o.offsetFrom))
		line("TZOFFSETTO:" + formatOffset(o.offsetTo))
		if o.name != "" {
			line("TZNAME:" + o.name)
		}
		line("END:" + kind)
	}
	line("END:VTIMEZONE")
}

// formatICSTime formats a time.Time as a UTC iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// formatLocal joins an ISO date and an HH:MM time into the compact floating
// form used with a TZID parameter, e.g. 20260315T190000.
func formatLocal(date, hhmm string) string {
	return strings.ReplaceAll(date, "-", "") + "T" + strings.ReplaceAll(hhmm, ":", "") + "00"
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// escapeICS escapes special characters for iCalendar TEXT values
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// foldLine splits a content line into physical lines of at most 75 octets,
// each continuation starting with a single space. Multi-byte characters are
// never split.
func foldLine(s string) string {
	if len(s) <= maxLineOctets {
		return s
	}

	var b strings.Builder
	limit := maxLineOctets
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		b.WriteString(s[:cut])
		b.WriteString("\r\n ")
		s = s[cut:]
		// The leading space counts toward the next line.
		limit = maxLineOctets - 1
	}
	b.WriteString(s)
	return b.String()
}
