package filter

import (
	"net/url"
	"reflect"
	"testing"
	"time"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantTypes     []string
		wantParties   []string
		wantCities    []string
		wantFrom      string
		wantTo        string
		wantVerified  *bool
		wantMalformed bool
	}{
		{
			name:  "no parameters",
			query: "",
		},
		{
			name:      "comma separated types",
			query:     "type=debate,town_hall",
			wantTypes: []string{"debate", "town_hall"},
		},
		{
			name:      "repeated and comma separated combine",
			query:     "type=debate&type=town_hall,%20candidate_forum",
			wantTypes: []string{"debate", "town_hall", "candidate_forum"},
		},
		{
			name:      "blank entries dropped",
			query:     "type=,debate,,",
			wantTypes: []string{"debate"},
		},
		{
			name:        "party and city",
			query:       "party=democratic&city=Lakeview,Harbor%20City",
			wantParties: []string{"democratic"},
			wantCities:  []string{"Lakeview", "Harbor City"},
		},
		{
			name:         "date range and verified",
			query:        "from=2026-03-01&to=2026-03-31&verified=true",
			wantFrom:     "2026-03-01",
			wantTo:       "2026-03-31",
			wantVerified: boolPtr(true),
		},
		{
			name:         "verified false",
			query:        "verified=false",
			wantVerified: boolPtr(false),
		},
		{
			name:          "malformed verified",
			query:         "verified=yes",
			wantMalformed: true,
		},
		{
			name:          "malformed featured",
			query:         "featured=maybe",
			wantMalformed: true,
		},
		{
			name:      "unknown values are kept",
			query:     "type=parade",
			wantTypes: []string{"parade"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("url.ParseQuery: %v", err)
			}
			f := ParseQuery(values)

			if !reflect.DeepEqual(f.EventTypes, tt.wantTypes) {
				t.Errorf("EventTypes = %v, want %v", f.EventTypes, tt.wantTypes)
			}
			if !reflect.DeepEqual(f.Parties, tt.wantParties) {
				t.Errorf("Parties = %v, want %v", f.Parties, tt.wantParties)
			}
			if !reflect.DeepEqual(f.Cities, tt.wantCities) {
				t.Errorf("Cities = %v, want %v", f.Cities, tt.wantCities)
			}
			if f.From != tt.wantFrom || f.To != tt.wantTo {
				t.Errorf("range = %q..%q, want %q..%q", f.From, f.To, tt.wantFrom, tt.wantTo)
			}
			if (f.Verified == nil) != (tt.wantVerified == nil) ||
				(f.Verified != nil && *f.Verified != *tt.wantVerified) {
				t.Errorf("Verified = %v, want %v", f.Verified, tt.wantVerified)
			}
			if f.malformed != tt.wantMalformed {
				t.Errorf("malformed = %v, want %v", f.malformed, tt.wantMalformed)
			}
		})
	}
}

func TestValues_RoundTrip(t *testing.T) {
	f := &EventFilters{
		EventTypes: []string{"debate", "town_hall"},
		Cities:     []string{"Lakeview"},
		From:       "2026-03-01",
		Verified:   boolPtr(true),
	}

	got := ParseQuery(f.Values())
	if !reflect.DeepEqual(got, f) {
		t.Errorf("ParseQuery(Values()) = %+v, want %+v", got, f)
	}
}

func TestSetFlag(t *testing.T) {
	f := NewFilter()
	if err := f.SetFlag(ParamVerified, "true"); err != nil {
		t.Fatalf("SetFlag() error: %v", err)
	}
	if f.Verified == nil || !*f.Verified {
		t.Errorf("Verified = %v, want true", f.Verified)
	}
	if err := f.SetFlag(ParamFeatured, "nope"); err == nil {
		t.Error("SetFlag() expected error for malformed value")
	}
	if err := f.SetFlag("pinned", "true"); err == nil {
		t.Error("SetFlag() expected error for unknown flag")
	}
	if err := f.SetFlag(ParamFeatured, ""); err != nil || f.Featured != nil {
		t.Errorf("SetFlag() with empty value = %v, featured %v", err, f.Featured)
	}
}

func TestParseDateRange(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{
			name:     "same month short name",
			input:    "Mar 1-15",
			wantFrom: "2026-03-01",
			wantTo:   "2026-03-15",
		},
		{
			name:     "same month full name with spaces",
			input:    "March 1 - 15",
			wantFrom: "2026-03-01",
			wantTo:   "2026-03-15",
		},
		{
			name:     "cross month",
			input:    "March 20 - April 5",
			wantFrom: "2026-03-20",
			wantTo:   "2026-04-05",
		},
		{
			name:     "cross year",
			input:    "Dec 20 - Jan 5",
			wantFrom: "2026-12-20",
			wantTo:   "2027-01-05",
		},
		{
			name:     "whole month",
			input:    "February",
			wantFrom: "2026-02-01",
			wantTo:   "2026-02-28",
		},
		{
			name:     "past month rolls to next year",
			input:    "Jan",
			wantFrom: "2027-01-01",
			wantTo:   "2027-01-31",
		},
		{
			name:    "reversed days",
			input:   "Mar 15-1",
			wantErr: true,
		},
		{
			name:    "invalid day",
			input:   "Mar 0-15",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "  ",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "next week",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseDateRange(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDateRange(%q) expected error, got %s..%s", tt.input, from, to)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateRange(%q) unexpected error: %v", tt.input, err)
			}
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("ParseDateRange(%q) = %s..%s, want %s..%s", tt.input, from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input string
		want  time.Month
	}{
		{"jan", time.January},
		{"January", time.January},
		{"Sept", time.September},
		{"DEC", time.December},
		{"ja", 0},
		{"foo", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseMonth(tt.input); got != tt.want {
				t.Errorf("parseMonth(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
