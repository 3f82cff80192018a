package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/civic-events/internal/event"
)

// Query parameter names accepted by ParseQuery.
const (
	ParamType     = "type"
	ParamOffice   = "office"
	ParamParty    = "party"
	ParamCity     = "city"
	ParamFrom     = "from"
	ParamTo       = "to"
	ParamVerified = "verified"
	ParamFeatured = "featured"
)

// ParseQuery builds filters from URL query values. Multi-valued parameters
// accept comma-separated lists and may also repeat. It never fails: unknown
// values are kept and match nothing, and a malformed verified/featured value
// yields a filter that matches no event.
func ParseQuery(values url.Values) *EventFilters {
	f := &EventFilters{
		EventTypes:   splitValues(values[ParamType]),
		OfficeLevels: splitValues(values[ParamOffice]),
		Parties:      splitValues(values[ParamParty]),
		Cities:       splitValues(values[ParamCity]),
		From:         strings.TrimSpace(values.Get(ParamFrom)),
		To:           strings.TrimSpace(values.Get(ParamTo)),
	}

	var ok bool
	if f.Verified, ok = parseFlag(values.Get(ParamVerified)); !ok {
		f.malformed = true
	}
	if f.Featured, ok = parseFlag(values.Get(ParamFeatured)); !ok {
		f.malformed = true
	}

	return f
}

// Values renders the filter back into query parameters.
func (f *EventFilters) Values() url.Values {
	v := url.Values{}
	setList := func(key string, list []string) {
		if len(list) > 0 {
			v.Set(key, strings.Join(list, ","))
		}
	}
	setList(ParamType, f.EventTypes)
	setList(ParamOffice, f.OfficeLevels)
	setList(ParamParty, f.Parties)
	setList(ParamCity, f.Cities)
	if f.From != "" {
		v.Set(ParamFrom, f.From)
	}
	if f.To != "" {
		v.Set(ParamTo, f.To)
	}
	if f.Verified != nil {
		v.Set(ParamVerified, strconv.FormatBool(*f.Verified))
	}
	if f.Featured != nil {
		v.Set(ParamFeatured, strconv.FormatBool(*f.Featured))
	}
	return v
}

// SetFlag parses a verified/featured value the way ParseQuery does. An empty
// value leaves the flag unset.
func (f *EventFilters) SetFlag(name, value string) error {
	b, ok := parseFlag(value)
	if !ok {
		return fmt.Errorf("invalid %s value %q: want true or false", name, value)
	}
	switch name {
	case ParamVerified:
		f.Verified = b
	case ParamFeatured:
		f.Featured = b
	default:
		return fmt.Errorf("unknown flag %q", name)
	}
	return nil
}

// splitValues flattens repeated and comma-separated values, dropping blanks.
func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseFlag returns (nil, true) for an absent value and (nil, false) for a
// malformed one.
func parseFlag(raw string) (*bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &b, true
}

var (
	monthNames = `(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)`

	sameMonthRange  = regexp.MustCompile(`(?i)^` + monthNames + `\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthRange = regexp.MustCompile(`(?i)^` + monthNames + `\s+(\d{1,2})\s*-\s*` + monthNames + `\s+(\d{1,2})$`)
	wholeMonth      = regexp.MustCompile(`(?i)^` + monthNames + `$`)
)

// ParseDateRange turns a human date range into inclusive ISO bounds.
//
// Supported formats:
//   - "Mar 1-15" or "March 1-15" - Same month, different days
//   - "March 1 - April 15" - Different months
//   - "March" - Entire month
//
// The year is inferred from now: a month already past this year means next
// year, and for cross-month ranges an end month before the start month rolls
// into the following year.
func ParseDateRange(input string, now time.Time) (from, to string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", fmt.Errorf("date range cannot be empty")
	}

	if m := sameMonthRange.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		day1, err := parseDay(m[2])
		if err != nil {
			return "", "", err
		}
		day2, err := parseDay(m[3])
		if err != nil {
			return "", "", err
		}
		year := yearForMonth(month, now)
		return isoRange(time.Date(year, month, day1, 0, 0, 0, 0, time.UTC), time.Date(year, month, day2, 0, 0, 0, 0, time.UTC))
	}

	if m := crossMonthRange.FindStringSubmatch(input); m != nil {
		month1 := parseMonth(m[1])
		day1, err := parseDay(m[2])
		if err != nil {
			return "", "", err
		}
		month2 := parseMonth(m[3])
		day2, err := parseDay(m[4])
		if err != nil {
			return "", "", err
		}
		year1 := yearForMonth(month1, now)
		year2 := year1
		if month2 < month1 {
			year2++
		}
		return isoRange(time.Date(year1, month1, day1, 0, 0, 0, 0, time.UTC), time.Date(year2, month2, day2, 0, 0, 0, 0, time.UTC))
	}

	if m := wholeMonth.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year := yearForMonth(month, now)
		// Day 0 of the next month is the last day of this one.
		return isoRange(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
	}

	return "", "", fmt.Errorf("invalid date range format. Use 'Mar 1-15', 'March 1 - April 15', or 'March'")
}

func isoRange(from, to time.Time) (string, string, error) {
	if from.After(to) {
		return "", "", fmt.Errorf("start date must be before end date")
	}
	return from.Format(event.ISODate), to.Format(event.ISODate), nil
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid day: %s", s)
	}
	return day, nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name[:3]) {
			return m
		}
	}
	return 0
}

// yearForMonth returns now's year, or the next one if month has passed.
func yearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}
