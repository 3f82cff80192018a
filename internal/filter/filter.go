// Package filter selects and orders canonical events.
//
// An EventFilters value is a conjunction of optional predicates:
//   - Event types, office levels, parties, cities (set membership, case-insensitive)
//   - Date range (inclusive, lexicographic on ISO dates)
//   - Verified / featured flags (exact match)
//
// Parsing is permissive. Unknown enum values are kept and simply match no
// event; a malformed boolean flag makes the whole filter match nothing.
//
// Example usage:
//
//	f := filter.ParseQuery(r.URL.Query())
//	res := filter.Query(collection, f)
package filter

import (
	"fmt"
	"strings"

	"github.com/pfrederiksen/civic-events/internal/event"
)

// EventFilters represents event filtering criteria
type EventFilters struct {
	EventTypes   []string `json:"eventTypes,omitempty"`
	OfficeLevels []string `json:"officeLevels,omitempty"`
	// Parties match when any candidate at the event belongs to one of them.
	Parties []string `json:"parties,omitempty"`
	Cities  []string `json:"cities,omitempty"`

	// Inclusive bounds compared against the event's ISO date as strings.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	Verified *bool `json:"verified,omitempty"`
	Featured *bool `json:"featured,omitempty"`

	// malformed is set when a flag value could not be parsed.
	malformed bool
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all events until criteria are added.
func NewFilter() *EventFilters {
	return &EventFilters{}
}

// IsEmpty checks if the filter has any active criteria.
// Returns true if the filter would match all events.
func (f *EventFilters) IsEmpty() bool {
	return f == nil || (len(f.EventTypes) == 0 &&
		len(f.OfficeLevels) == 0 &&
		len(f.Parties) == 0 &&
		len(f.Cities) == 0 &&
		f.From == "" &&
		f.To == "" &&
		f.Verified == nil &&
		f.Featured == nil &&
		!f.malformed)
}

// Matches checks if an event matches all active filter criteria.
// An empty filter matches all events.
func (f *EventFilters) Matches(evt *event.CanonicalEvent) bool {
	if f.IsEmpty() {
		return true
	}
	if f.malformed {
		return false
	}

	if len(f.EventTypes) > 0 && !containsFold(f.EventTypes, string(evt.EventType)) {
		return false
	}

	if len(f.OfficeLevels) > 0 && !containsFold(f.OfficeLevels, string(evt.OfficeLevel)) {
		return false
	}

	if len(f.Parties) > 0 {
		matched := false
		for _, party := range f.Parties {
			if evt.HasParty(party) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.Cities) > 0 && !containsFold(f.Cities, evt.Venue.City) {
		return false
	}

	// Check date range
	if f.From != "" && evt.Date < f.From {
		return false
	}
	if f.To != "" && evt.Date > f.To {
		return false
	}

	if f.Verified != nil && evt.Verified != *f.Verified {
		return false
	}
	if f.Featured != nil && evt.Featured != *f.Featured {
		return false
	}

	return true
}

// Apply returns the events that match all criteria in their original order.
// The result never aliases the input slice.
func (f *EventFilters) Apply(events []event.CanonicalEvent) []event.CanonicalEvent {
	filtered := make([]event.CanonicalEvent, 0, len(events))
	for i := range events {
		if f.Matches(&events[i]) {
			filtered = append(filtered, events[i])
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "Types: debate | From: 2026-03-01 | Verified: true"
func (f *EventFilters) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if len(f.EventTypes) > 0 {
		parts = append(parts, fmt.Sprintf("Types: %s", strings.Join(f.EventTypes, ", ")))
	}
	if len(f.OfficeLevels) > 0 {
		parts = append(parts, fmt.Sprintf("Offices: %s", strings.Join(f.OfficeLevels, ", ")))
	}
	if len(f.Parties) > 0 {
		parts = append(parts, fmt.Sprintf("Parties: %s", strings.Join(f.Parties, ", ")))
	}
	if len(f.Cities) > 0 {
		parts = append(parts, fmt.Sprintf("Cities: %s", strings.Join(f.Cities, ", ")))
	}
	if f.From != "" {
		parts = append(parts, fmt.Sprintf("From: %s", f.From))
	}
	if f.To != "" {
		parts = append(parts, fmt.Sprintf("To: %s", f.To))
	}
	if f.Verified != nil {
		parts = append(parts, fmt.Sprintf("Verified: %t", *f.Verified))
	}
	if f.Featured != nil {
		parts = append(parts, fmt.Sprintf("Featured: %t", *f.Featured))
	}
	if f.malformed {
		parts = append(parts, "Malformed flag")
	}

	return strings.Join(parts, " | ")
}

// Clone creates a deep copy of the filter.
func (f *EventFilters) Clone() *EventFilters {
	clone := &EventFilters{
		EventTypes:   cloneStrings(f.EventTypes),
		OfficeLevels: cloneStrings(f.OfficeLevels),
		Parties:      cloneStrings(f.Parties),
		Cities:       cloneStrings(f.Cities),
		From:         f.From,
		To:           f.To,
		malformed:    f.malformed,
	}
	if f.Verified != nil {
		v := *f.Verified
		clone.Verified = &v
	}
	if f.Featured != nil {
		v := *f.Featured
		clone.Featured = &v
	}
	return clone
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
