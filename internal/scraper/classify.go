package scraper

import (
	"strings"

	"github.com/pfrederiksen/civic-events/internal/event"
)

// relevanceKeywords is the allow-list a title must hit to be kept at all.
var relevanceKeywords = []string{
	"meeting",
	"board",
	"council",
	"election",
	"public hearing",
	"hearing",
	"agenda",
	"vote",
	"voting",
	"ballot",
	"trustee",
	"commission",
	"budget",
	"session",
	"closed",
	"closure",
	"alert",
	"emergency",
}

// classificationRule maps title terms to a category; rules apply in order
// and the first hit wins.
type classificationRule struct {
	terms    []string
	category event.Category
}

var classificationRules = []classificationRule{
	{terms: []string{"meeting", "board", "council", "hearing"}, category: event.CategoryMeeting},
	{terms: []string{"closed", "alert", "emergency"}, category: event.CategoryAlert},
	{terms: []string{"election", "vote"}, category: event.CategoryMeeting},
}

// IsRelevant reports whether title contains any allow-listed keyword,
// case-insensitively.
func IsRelevant(title string) bool {
	return containsAny(strings.ToLower(title), relevanceKeywords)
}

// Classify assigns exactly one category to a title. It depends only on the
// title text.
func Classify(title string) event.Category {
	lower := strings.ToLower(title)
	for _, rule := range classificationRules {
		if containsAny(lower, rule.terms) {
			return rule.category
		}
	}
	return event.CategoryAnnouncement
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
