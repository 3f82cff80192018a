package scraper

import "regexp"

var (
	// "Mar 3", "March 3rd, 2026", "Sept. 8 2026"
	monthNameDate = regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`)
	// "2026-03-03"
	isoDate = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	// "02/15/26" or "2/15/2026"
	slashDate = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	// "4.4.26" or "04.04.2026"
	dotDate = regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{2,4}\b`)

	ordinalSuffix = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)

	datePatterns = []*regexp.Regexp{monthNameDate, isoDate, slashDate, dotDate}
)

// extractDate attempts to extract date text from free text.
// Looks for patterns like "March 3, 2026", "2026-03-03", "02/15/26", "4.4.26".
// Ordinal suffixes are stripped from the match.
func extractDate(text string) string {
	for _, p := range datePatterns {
		if match := p.FindString(text); match != "" {
			return ordinalSuffix.ReplaceAllString(match, "$1")
		}
	}
	return ""
}
