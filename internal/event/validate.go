package event

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrDuplicateID is returned when two events in one collection share an id.
var ErrDuplicateID = errors.New("duplicate event id")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return IsEventType(fl.Field().String())
	})
	_ = v.RegisterValidation("party", func(fl validator.FieldLevel) bool {
		return IsParty(fl.Field().String())
	})
	v.RegisterStructValidation(validateTimes, CanonicalEvent{})
	return v
}

// validateTimes enforces zero-padded HH:MM values with start strictly before end.
func validateTimes(sl validator.StructLevel) {
	e := sl.Current().Interface().(CanonicalEvent)
	if len(e.StartTime) != 5 {
		sl.ReportError(e.StartTime, "StartTime", "startTime", "padded", "")
	}
	if len(e.EndTime) != 5 {
		sl.ReportError(e.EndTime, "EndTime", "endTime", "padded", "")
	}
	if e.StartTime >= e.EndTime {
		sl.ReportError(e.EndTime, "EndTime", "endTime", "after_start", e.StartTime)
	}
}

// IsEventType reports whether s names a known EventType.
func IsEventType(s string) bool {
	for _, t := range EventTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// IsOfficeLevel reports whether s names a known OfficeLevel.
func IsOfficeLevel(s string) bool {
	switch OfficeLevel(s) {
	case LevelLocal, LevelCounty, LevelState, LevelFederal:
		return true
	}
	return false
}

// IsParty reports whether s names a known Party.
func IsParty(s string) bool {
	switch Party(s) {
	case PartyDemocratic, PartyRepublican, PartyLibertarian, PartyGreen, PartyIndependent, PartyNonpartisan:
		return true
	}
	return false
}

// Validate checks a single event against the canonical invariants.
func Validate(e *CanonicalEvent) error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("event %q: %w", e.ID, err)
	}
	return nil
}

// ValidateAll checks every event and that ids are unique across the set.
func ValidateAll(events []CanonicalEvent) error {
	seen := make(map[string]bool, len(events))
	var errs []string
	for i := range events {
		if err := Validate(&events[i]); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if seen[events[i].ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, events[i].ID)
		}
		seen[events[i].ID] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid events: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateNewsItems checks a curated item list such as the feed fallback.
func ValidateNewsItems(items []NewsItem) error {
	seen := make(map[string]bool, len(items))
	for i := range items {
		if err := validate.Struct(&items[i]); err != nil {
			return fmt.Errorf("news item %d: %w", i, err)
		}
		if seen[items[i].ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, items[i].ID)
		}
		seen[items[i].ID] = true
	}
	return nil
}
