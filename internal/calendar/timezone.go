package calendar

import (
	"fmt"
	"time"

	// Embedded zone data so VTIMEZONE output does not depend on the host.
	_ "time/tzdata"

	"github.com/pfrederiksen/civic-events/internal/event"
)

// observance is one STANDARD or DAYLIGHT sub-component of a VTIMEZONE.
type observance struct {
	daylight   bool
	onset      string // local wall time in the offset being left
	offsetFrom int
	offsetTo   int
	name       string
}

// zoneObservances lists the offset changes of loc needed to resolve local
// times in the years [first, last]. The list opens with the last change
// before first, or with a fixed baseline when the zone had none.
func zoneObservances(loc *time.Location, first, last int) []observance {
	start := time.Date(first, time.January, 1, 0, 0, 0, 0, loc)

	var prior []observance
	if first > 1 {
		prior = yearObservances(loc, first-1)
	}

	var out []observance
	if n := len(prior); n > 0 {
		out = append(out, prior[n-1])
	} else {
		name, off := start.Zone()
		out = append(out, observance{
			daylight:   start.IsDST(),
			onset:      "19700101T000000",
			offsetFrom: off,
			offsetTo:   off,
			name:       name,
		})
	}
	for year := first; year <= last; year++ {
		out = append(out, yearObservances(loc, year)...)
	}
	return out
}

// yearObservances scans one year a day at a time and narrows each offset
// change to the second.
func yearObservances(loc *time.Location, year int) []observance {
	var out []observance
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := t.AddDate(1, 0, 0)
	for t.Before(end) {
		next := t.Add(24 * time.Hour)
		if offsetAt(t) != offsetAt(next) {
			out = append(out, transitionBetween(t, next))
		}
		t = next
	}
	return out
}

func transitionBetween(before, after time.Time) observance {
	lo, hi := before.Unix(), after.Unix()
	from := offsetAt(before)
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if offsetAt(time.Unix(mid, 0).In(before.Location())) == from {
			lo = mid
		} else {
			hi = mid
		}
	}

	onset := time.Unix(hi, 0).In(before.Location())
	name, to := onset.Zone()
	return observance{
		daylight:   onset.IsDST(),
		onset:      onset.In(time.FixedZone("", from)).Format("20060102T150405"),
		offsetFrom: from,
		offsetTo:   to,
		name:       name,
	}
}

func offsetAt(t time.Time) int {
	_, off := t.Zone()
	return off
}

// formatOffset renders seconds east of UTC as the iCalendar UTC-OFFSET form,
// e.g. -0600.
func formatOffset(secs int) string {
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("%c%02d%02d", sign, secs/3600, (secs%3600)/60)
}

// yearSpan returns the first and last years among the event dates, or
// fallback for both when no date parses.
func yearSpan(events []event.CanonicalEvent, fallback int) (int, int) {
	first, last := 0, 0
	for i := range events {
		d, err := time.Parse("2006-01-02", events[i].Date)
		if err != nil {
			continue
		}
		y := d.Year()
		if first == 0 || y < first {
			first = y
		}
		if y > last {
			last = y
		}
	}
	if first == 0 {
		return fallback, fallback
	}
	return first, last
}
