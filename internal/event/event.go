package event

import (
	"strings"
	"time"
)

// EventType is the closed set of canonical event kinds.
type EventType string

const (
	TypeTownHall          EventType = "town_hall"
	TypeDebate            EventType = "debate"
	TypeCandidateForum    EventType = "candidate_forum"
	TypeMeetAndGreet      EventType = "meet_and_greet"
	TypeCouncilMeeting    EventType = "council_meeting"
	TypeSchoolBoard       EventType = "school_board"
	TypePublicHearing     EventType = "public_hearing"
	TypeVoterRegistration EventType = "voter_registration"
	TypeEarlyVoting       EventType = "early_voting"
	TypeElectionDay       EventType = "election_day"
)

// EventTypes lists every accepted EventType in display order.
var EventTypes = []EventType{
	TypeTownHall,
	TypeDebate,
	TypeCandidateForum,
	TypeMeetAndGreet,
	TypeCouncilMeeting,
	TypeSchoolBoard,
	TypePublicHearing,
	TypeVoterRegistration,
	TypeEarlyVoting,
	TypeElectionDay,
}

// OfficeLevel is the level of government an event concerns.
type OfficeLevel string

const (
	LevelLocal   OfficeLevel = "local"
	LevelCounty  OfficeLevel = "county"
	LevelState   OfficeLevel = "state"
	LevelFederal OfficeLevel = "federal"
)

// Party is a candidate's party affiliation.
type Party string

const (
	PartyDemocratic  Party = "democratic"
	PartyRepublican  Party = "republican"
	PartyLibertarian Party = "libertarian"
	PartyGreen       Party = "green"
	PartyIndependent Party = "independent"
	PartyNonpartisan Party = "nonpartisan"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Venue describes where an event takes place.
type Venue struct {
	Name        string       `json:"name" yaml:"name" validate:"required"`
	Address     string       `json:"address" yaml:"address"`
	City        string       `json:"city" yaml:"city" validate:"required"`
	State       string       `json:"state" yaml:"state" validate:"required,len=2"`
	Zip         string       `json:"zip" yaml:"zip"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// Candidate is a person appearing at an event.
type Candidate struct {
	Name      string `json:"name" yaml:"name" validate:"required"`
	Party     Party  `json:"party" yaml:"party" validate:"required,party"`
	Incumbent bool   `json:"incumbent" yaml:"incumbent"`
}

// CanonicalEvent is a curated civic event. Dates are ISO 8601 calendar dates
// and times are zero-padded 24-hour clock values, so both order correctly
// under plain string comparison.
type CanonicalEvent struct {
	ID              string      `json:"id" yaml:"id" validate:"required"`
	Title           string      `json:"title" yaml:"title" validate:"required"`
	Date            string      `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string      `json:"startTime" yaml:"startTime" validate:"required,datetime=15:04"`
	EndTime         string      `json:"endTime" yaml:"endTime" validate:"required,datetime=15:04"`
	Timezone        string      `json:"timezone" yaml:"timezone" validate:"required"`
	Venue           Venue       `json:"venue" yaml:"venue"`
	EventType       EventType   `json:"eventType" yaml:"eventType" validate:"required,eventtype"`
	Office          string      `json:"office" yaml:"office"`
	OfficeLevel     OfficeLevel `json:"officeLevel" yaml:"officeLevel" validate:"required,oneof=local county state federal"`
	Candidates      []Candidate `json:"candidates" yaml:"candidates" validate:"dive"`
	Description     string      `json:"description" yaml:"description"`
	SourceURL       string      `json:"sourceUrl" yaml:"sourceUrl" validate:"omitempty,url"`
	RegistrationURL string      `json:"registrationUrl,omitempty" yaml:"registrationUrl,omitempty" validate:"omitempty,url"`
	Featured        bool        `json:"featured" yaml:"featured"`
	Verified        bool        `json:"verified" yaml:"verified"`
	CreatedAt       time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt" yaml:"updatedAt"`
}

// HasParty reports whether any candidate at the event belongs to party.
func (e *CanonicalEvent) HasParty(party string) bool {
	for _, c := range e.Candidates {
		if strings.EqualFold(string(c.Party), party) {
			return true
		}
	}
	return false
}

// Location renders the venue as a single line.
func (e *CanonicalEvent) Location() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{e.Venue.Name, e.Venue.Address, e.Venue.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	stateZip := strings.TrimSpace(e.Venue.State + " " + e.Venue.Zip)
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

// Metadata describes one curated snapshot of the canonical store.
type Metadata struct {
	Version      string         `json:"version" yaml:"version"`
	LastUpdated  string         `json:"lastUpdated" yaml:"lastUpdated"`
	Sources      []string       `json:"sources" yaml:"sources"`
	TotalEvents  int            `json:"totalEvents" yaml:"-"`
	CountsByType map[string]int `json:"countsByType" yaml:"-"`
}

// Collection is an immutable snapshot of canonical events.
type Collection struct {
	Events   []CanonicalEvent
	Metadata Metadata
}

// NewCollection fills in the derived metadata counts.
func NewCollection(events []CanonicalEvent, meta Metadata) Collection {
	meta.TotalEvents = len(events)
	meta.CountsByType = make(map[string]int)
	for _, e := range events {
		meta.CountsByType[string(e.EventType)]++
	}
	return Collection{Events: events, Metadata: meta}
}
