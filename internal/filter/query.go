package filter

import "github.com/pfrederiksen/civic-events/internal/event"

// Result is the body of an events query.
type Result struct {
	Events     []event.CanonicalEvent `json:"events"`
	TotalCount int                    `json:"totalCount"`
	Metadata   event.Metadata         `json:"metadata"`
}

// Query filters the collection and sorts the survivors by ascending date.
// The collection itself is never modified.
func Query(c event.Collection, f *EventFilters) Result {
	return QuerySorted(c, f, SortByDate)
}

// QuerySorted is Query with a caller-chosen order.
func QuerySorted(c event.Collection, f *EventFilters, order SortOrder) Result {
	events := f.Apply(c.Events)
	Sort(events, order)
	return Result{
		Events:     events,
		TotalCount: len(events),
		Metadata:   c.Metadata,
	}
}
