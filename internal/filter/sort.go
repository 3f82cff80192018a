package filter

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/civic-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByCity  SortOrder = "city"
	SortByTitle SortOrder = "title"
)

// Sort orders events in place. Every order falls back to date, and date
// order is a plain string comparison on the ISO date, then start time, then
// id, so the result does not depend on the input permutation.
func Sort(events []event.CanonicalEvent, order SortOrder) {
	switch order {
	case SortByCity:
		sort.SliceStable(events, func(i, j int) bool {
			ci, cj := strings.ToLower(events[i].Venue.City), strings.ToLower(events[j].Venue.City)
			if ci != cj {
				return ci < cj
			}
			return compareByDate(&events[i], &events[j])
		})
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			ti, tj := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(&events[i], &events[j])
		})
	default:
		sort.SliceStable(events, func(i, j int) bool {
			return compareByDate(&events[i], &events[j])
		})
	}
}

// compareByDate reports whether i should come before j.
func compareByDate(i, j *event.CanonicalEvent) bool {
	if i.Date != j.Date {
		return i.Date < j.Date
	}
	if i.StartTime != j.StartTime {
		return i.StartTime < j.StartTime
	}
	return i.ID < j.ID
}
