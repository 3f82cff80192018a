package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pfrederiksen/civic-events/internal/event"
)

//go:embed schema.sql
var schema string

// OpenPostgres returns a pooled, pinged PostgreSQL handle.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresRepository reads the curated datasets from PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgres constructs the repository.
func NewPostgres(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type eventRow struct {
	ID              string          `db:"id"`
	Title           string          `db:"title"`
	Date            string          `db:"event_date"`
	StartTime       string          `db:"start_time"`
	EndTime         string          `db:"end_time"`
	Timezone        string          `db:"timezone"`
	VenueName       string          `db:"venue_name"`
	VenueAddress    string          `db:"venue_address"`
	VenueCity       string          `db:"venue_city"`
	VenueState      string          `db:"venue_state"`
	VenueZip        string          `db:"venue_zip"`
	VenueLat        sql.NullFloat64 `db:"venue_lat"`
	VenueLng        sql.NullFloat64 `db:"venue_lng"`
	EventType       string          `db:"event_type"`
	Office          string          `db:"office"`
	OfficeLevel     string          `db:"office_level"`
	Candidates      []byte          `db:"candidates"`
	Description     string          `db:"description"`
	SourceURL       string          `db:"source_url"`
	RegistrationURL sql.NullString  `db:"registration_url"`
	Featured        bool            `db:"featured"`
	Verified        bool            `db:"verified"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type snapshotRow struct {
	Version     string         `db:"version"`
	LastUpdated string         `db:"last_updated"`
	Sources     pq.StringArray `db:"sources"`
}

type fallbackRow struct {
	Position  int    `db:"position"`
	ID        string `db:"id"`
	Title     string `db:"title"`
	Date      string `db:"item_date"`
	Source    string `db:"source"`
	SourceURL string `db:"source_url"`
	Category  string `db:"category"`
}

// Migrate creates the tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Load reads every canonical event and the latest snapshot metadata.
func (r *PostgresRepository) Load(ctx context.Context) (event.Collection, error) {
	const query = `SELECT id, title, to_char(event_date, 'YYYY-MM-DD') AS event_date,
       to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, timezone,
       venue_name, venue_address, venue_city, venue_state, venue_zip, venue_lat, venue_lng,
       event_type, office, office_level, candidates, description, source_url, registration_url,
       featured, verified, created_at, updated_at
	FROM civic_events ORDER BY event_date, start_time, id`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return event.Collection{}, fmt.Errorf("list civic events: %w", err)
	}

	events := make([]event.CanonicalEvent, 0, len(rows))
	for _, row := range rows {
		evt, err := row.toEvent()
		if err != nil {
			return event.Collection{}, err
		}
		events = append(events, evt)
	}

	meta, err := r.latestSnapshot(ctx)
	if err != nil {
		return event.Collection{}, err
	}

	return collect(Dataset{Metadata: meta, Events: events})
}

func (r *PostgresRepository) latestSnapshot(ctx context.Context) (event.Metadata, error) {
	const query = `SELECT version, to_char(last_updated, 'YYYY-MM-DD') AS last_updated, sources
	FROM civic_event_snapshots ORDER BY last_updated DESC, version DESC LIMIT 1`

	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Metadata{Sources: []string{}}, nil
		}
		return event.Metadata{}, fmt.Errorf("get snapshot metadata: %w", err)
	}
	return event.Metadata{
		Version:     row.Version,
		LastUpdated: row.LastUpdated,
		Sources:     []string(row.Sources),
	}, nil
}

// Fallback reads the curated fallback items in position order.
func (r *PostgresRepository) Fallback(ctx context.Context) ([]event.NewsItem, error) {
	const query = `SELECT position, id, title, COALESCE(item_date, '') AS item_date, source, source_url, category
	FROM civic_fallback_items ORDER BY position`

	var rows []fallbackRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list fallback items: %w", err)
	}

	items := make([]event.NewsItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, event.NewsItem{
			ID:        row.ID,
			Title:     row.Title,
			Date:      row.Date,
			Source:    event.SourceName(row.Source),
			SourceURL: row.SourceURL,
			Category:  event.Category(row.Category),
		})
	}
	return checkFallback(items)
}

// Save replaces the stored datasets in one transaction. The collection is
// validated first so the database only ever holds loadable data.
func (r *PostgresRepository) Save(ctx context.Context, c event.Collection, fallback []event.NewsItem) error {
	if _, err := collect(Dataset{Metadata: c.Metadata, Events: c.Events}); err != nil {
		return err
	}
	if _, err := checkFallback(fallback); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM civic_events`); err != nil {
		return fmt.Errorf("clear civic events: %w", err)
	}

	const insertEvent = `INSERT INTO civic_events
	(id, title, event_date, start_time, end_time, timezone, venue_name, venue_address, venue_city, venue_state, venue_zip,
	 venue_lat, venue_lng, event_type, office, office_level, candidates, description, source_url, registration_url,
	 featured, verified, created_at, updated_at)
	VALUES (:id, :title, :event_date, :start_time, :end_time, :timezone, :venue_name, :venue_address, :venue_city, :venue_state, :venue_zip,
	 :venue_lat, :venue_lng, :event_type, :office, :office_level, :candidates, :description, :source_url, :registration_url,
	 :featured, :verified, :created_at, :updated_at)`
	for i := range c.Events {
		row, err := newEventRow(&c.Events[i])
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertEvent, row); err != nil {
			return fmt.Errorf("insert civic event %s: %w", row.ID, err)
		}
	}

	const insertSnapshot = `INSERT INTO civic_event_snapshots (version, last_updated, sources)
	VALUES ($1, $2, $3)
	ON CONFLICT (version) DO UPDATE SET last_updated = EXCLUDED.last_updated, sources = EXCLUDED.sources`
	if _, err := tx.ExecContext(ctx, insertSnapshot, c.Metadata.Version, c.Metadata.LastUpdated, pq.Array(c.Metadata.Sources)); err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", c.Metadata.Version, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM civic_fallback_items`); err != nil {
		return fmt.Errorf("clear fallback items: %w", err)
	}
	const insertFallback = `INSERT INTO civic_fallback_items (position, id, title, item_date, source, source_url, category)
	VALUES (:position, :id, :title, NULLIF(:item_date, ''), :source, :source_url, :category)`
	for i, it := range fallback {
		row := fallbackRow{
			Position:  i,
			ID:        it.ID,
			Title:     it.Title,
			Date:      it.Date,
			Source:    string(it.Source),
			SourceURL: it.SourceURL,
			Category:  string(it.Category),
		}
		if _, err := tx.NamedExecContext(ctx, insertFallback, row); err != nil {
			return fmt.Errorf("insert fallback item %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (row eventRow) toEvent() (event.CanonicalEvent, error) {
	candidates := []event.Candidate{}
	if len(row.Candidates) > 0 {
		if err := json.Unmarshal(row.Candidates, &candidates); err != nil {
			return event.CanonicalEvent{}, fmt.Errorf("decode candidates of %s: %w", row.ID, err)
		}
	}

	evt := event.CanonicalEvent{
		ID:        row.ID,
		Title:     row.Title,
		Date:      row.Date,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Timezone:  row.Timezone,
		Venue: event.Venue{
			Name:    row.VenueName,
			Address: row.VenueAddress,
			City:    row.VenueCity,
			State:   row.VenueState,
			Zip:     row.VenueZip,
		},
		EventType:       event.EventType(row.EventType),
		Office:          row.Office,
		OfficeLevel:     event.OfficeLevel(row.OfficeLevel),
		Candidates:      candidates,
		Description:     row.Description,
		SourceURL:       row.SourceURL,
		RegistrationURL: row.RegistrationURL.String,
		Featured:        row.Featured,
		Verified:        row.Verified,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.VenueLat.Valid && row.VenueLng.Valid {
		evt.Venue.Coordinates = &event.Coordinates{Lat: row.VenueLat.Float64, Lng: row.VenueLng.Float64}
	}
	return evt, nil
}

func newEventRow(evt *event.CanonicalEvent) (eventRow, error) {
	candidates := evt.Candidates
	if candidates == nil {
		candidates = []event.Candidate{}
	}
	payload, err := json.Marshal(candidates)
	if err != nil {
		return eventRow{}, fmt.Errorf("encode candidates of %s: %w", evt.ID, err)
	}

	row := eventRow{
		ID:              evt.ID,
		Title:           evt.Title,
		Date:            evt.Date,
		StartTime:       evt.StartTime,
		EndTime:         evt.EndTime,
		Timezone:        evt.Timezone,
		VenueName:       evt.Venue.Name,
		VenueAddress:    evt.Venue.Address,
		VenueCity:       evt.Venue.City,
		VenueState:      evt.Venue.State,
		VenueZip:        evt.Venue.Zip,
		EventType:       string(evt.EventType),
		Office:          evt.Office,
		OfficeLevel:     string(evt.OfficeLevel),
		Candidates:      payload,
		Description:     evt.Description,
		SourceURL:       evt.SourceURL,
		RegistrationURL: sql.NullString{String: evt.RegistrationURL, Valid: evt.RegistrationURL != ""},
		Featured:        evt.Featured,
		Verified:        evt.Verified,
		CreatedAt:       evt.CreatedAt,
		UpdatedAt:       evt.UpdatedAt,
	}
	if c := evt.Venue.Coordinates; c != nil {
		row.VenueLat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		row.VenueLng = sql.NullFloat64{Float64: c.Lng, Valid: true}
	}
	return row, nil
}
