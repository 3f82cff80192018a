package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/civic-events/internal/event"
)

// Fragment is one candidate event mention found in a page.
type Fragment struct {
	Index int    // position among the page's candidates
	Title string // whitespace-collapsed title text
	Date  string // ISO date when recognisable, raw date text otherwise
	Link  string // href of the candidate's first link, unresolved
}

// Strategy finds candidate fragments in a parsed page. Each upstream site
// gets its own Strategy; adding a source means adding a Strategy, not
// branching inside a shared extractor.
type Strategy interface {
	Extract(doc *goquery.Document) []Fragment
}

// SelectorStrategy is a Strategy driven by CSS selectors.
type SelectorStrategy struct {
	// Candidates are tried in priority order; the first selector that
	// matches anything supplies every candidate for the page.
	Candidates []string
	// Titles selects title-like descendants; the first non-empty one wins.
	Titles string
}

// ISDStrategy targets school district sites, which usually render events
// as elements with event/calendar classes.
var ISDStrategy = SelectorStrategy{
	Candidates: []string{
		".event, .event-item, .calendar-event, [class*='event-list'] li",
		"[class*='calendar'] li, [class*='calendar'] article",
		"[class*='news'] article, .news-item",
		"article",
		"tbody tr",
	},
	Titles: "h1, h2, h3, h4, h5, .title, [class*='title'], a",
}

// CityStrategy targets municipal CMS sites, where agendas and notices are
// list items inside a content view.
var CityStrategy = SelectorStrategy{
	Candidates: []string{
		".view-content li, .view-content .views-row",
		"[class*='calendar'] [class*='item'], [class*='event'] [class*='item']",
		"[class*='event']",
		"article",
		"tbody tr",
	},
	Titles: "a, h2, h3, h4, .title, [class*='title']",
}

// StrategyFor returns the built-in strategy for a source.
func StrategyFor(name event.SourceName) Strategy {
	if name == event.SourceCity {
		return CityStrategy
	}
	return ISDStrategy
}

// Extract returns one fragment per candidate in document order.
func (st SelectorStrategy) Extract(doc *goquery.Document) []Fragment {
	candidates := st.candidates(doc)
	if candidates == nil {
		return nil
	}

	frags := make([]Fragment, 0, candidates.Length())
	candidates.Each(func(i int, sel *goquery.Selection) {
		title := st.title(sel)
		if title == "" {
			return
		}
		link, _ := sel.Find("a[href]").First().Attr("href")
		if link == "" && goquery.NodeName(sel) == "a" {
			link, _ = sel.Attr("href")
		}
		frags = append(frags, Fragment{
			Index: i,
			Title: title,
			Date:  fragmentDate(sel),
			Link:  strings.TrimSpace(link),
		})
	})
	return frags
}

// candidates applies the first selector with matches. Matches that contain
// another match are dropped so wrapper containers do not shadow their items.
func (st SelectorStrategy) candidates(doc *goquery.Document) *goquery.Selection {
	for _, pattern := range st.Candidates {
		sel := doc.Find(pattern)
		if sel.Length() == 0 {
			continue
		}
		return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find(pattern).Length() == 0
		})
	}
	return nil
}

func (st SelectorStrategy) title(sel *goquery.Selection) string {
	var title string
	sel.Find(st.Titles).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title = collapse(s.Text())
		return title == ""
	})
	if title == "" {
		title = collapse(sel.Text())
	}
	return title
}

// fragmentDate prefers a machine-readable datetime attribute and falls back
// to scanning the visible text.
func fragmentDate(sel *goquery.Selection) string {
	if dt, ok := sel.Find("[datetime]").First().Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return event.NormalizeDate(dt)
	}
	if dt, ok := sel.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return event.NormalizeDate(dt)
	}
	if raw := extractDate(collapse(sel.Text())); raw != "" {
		return event.NormalizeDate(raw)
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
