package scraper

import (
	"os"
	"strings"
	"testing"

	"github.com/pfrederiksen/civic-events/internal/event"
)

func TestParseItems_ISDFixture(t *testing.T) {
	// Load test fixture
	data, err := os.ReadFile("../../testdata/fixtures/isd_events.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	s := New(Config{Name: event.SourceISD, Tag: "isd"}, nil)
	items, err := s.parseItems(strings.NewReader(string(data)), "https://isd.example.org/events")
	if err != nil {
		t.Fatalf("parseItems failed: %v", err)
	}

	want := []struct {
		title    string
		date     string
		category event.Category
		url      string
	}{
		{"Board of Trustees Regular Meeting", "2026-03-10", event.CategoryMeeting, "https://isd.example.org/events/board-regular-meeting"},
		{"School closed due to weather", "2026-02-09", event.CategoryAlert, "https://isd.example.org/events"},
		{"Budget Workshop for Families", "2026-03-24", event.CategoryAnnouncement, "https://isd.example.org/events"},
		{"May 2 Bond Election Information", "May 2", event.CategoryMeeting, "https://isd.example.org/events"},
		{"Public Hearing on Attendance Zones", "2026-04-14", event.CategoryMeeting, "https://isd.example.org/events"},
	}

	if len(items) != len(want) {
		for _, it := range items {
			t.Logf("got item: %+v", it)
		}
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}

	for i, w := range want {
		got := items[i]
		if got.Title != w.title {
			t.Errorf("item %d title = %q, want %q", i, got.Title, w.title)
		}
		if got.Date != w.date {
			t.Errorf("item %d date = %q, want %q", i, got.Date, w.date)
		}
		if got.Category != w.category {
			t.Errorf("item %d category = %q, want %q", i, got.Category, w.category)
		}
		if got.SourceURL != w.url {
			t.Errorf("item %d sourceUrl = %q, want %q", i, got.SourceURL, w.url)
		}
		if got.Source != event.SourceISD {
			t.Errorf("item %d source = %q, want ISD", i, got.Source)
		}
		if !strings.HasPrefix(got.ID, "isd-") {
			t.Errorf("item %d id = %q, want isd- prefix", i, got.ID)
		}
	}
}

func TestParseItems_CityFixture(t *testing.T) {
	data, err := os.ReadFile("../../testdata/fixtures/city_calendar.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	s := New(Config{Name: event.SourceCity, Tag: "city"}, nil)
	items, err := s.parseItems(strings.NewReader(string(data)), "https://city.example.gov/calendar")
	if err != nil {
		t.Fatalf("parseItems failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}

	if items[0].Title != "City Council Regular Meeting" || items[0].Category != event.CategoryMeeting {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[0].Date != "2026-03-03" {
		t.Errorf("item 0 date = %q, want 2026-03-03", items[0].Date)
	}
	if items[0].SourceURL != "https://city.example.gov/agenda/cc-2026-03-03" {
		t.Errorf("item 0 sourceUrl = %q", items[0].SourceURL)
	}

	if items[1].Title != "Boil Water Alert Lifted" || items[1].Category != event.CategoryAlert {
		t.Errorf("item 1 = %+v", items[1])
	}
	if items[1].SourceURL != "https://city.example.gov/alerts/boil-water" {
		t.Errorf("item 1 sourceUrl = %q", items[1].SourceURL)
	}

	if items[2].Title != "March 3 Primary Election — Polls Open" || items[2].Category != event.CategoryMeeting {
		t.Errorf("item 2 = %+v", items[2])
	}

	for _, it := range items {
		if strings.Contains(it.Title, "Ribbon") {
			t.Errorf("non-civic item kept: %q", it.Title)
		}
		if it.Source != event.SourceCity {
			t.Errorf("source = %q, want City", it.Source)
		}
	}
}
