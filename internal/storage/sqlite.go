package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/matsen/wikisync/internal/citation"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectRecordFields contains the standard field list for SELECT queries.
const selectRecordFields = `key, type, title, creators_json, date, venue,
	publisher, volume, issue, pages, doi, isbn, url, tags_json, note`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Create schema if needed
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	// Keys are not unique: deduplication happens before insertion.
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			creators_json TEXT NOT NULL,
			date TEXT,
			venue TEXT,
			publisher TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			doi TEXT,
			isbn TEXT,
			url TEXT,
			tags_json TEXT NOT NULL,
			note TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_records_key ON records(key);
	`

	_, err := db.Exec(schema)
	return err
}

// Insert appends a record.
func (d *DB) Insert(ctx context.Context, rec citation.Record) error {
	creatorsJSON, err := json.Marshal(nonNilCreators(rec.Creators))
	if err != nil {
		return fmt.Errorf("marshaling creators for %s: %w", rec.Key, err)
	}
	tagsJSON, err := json.Marshal(nonNilStrings(rec.Tags))
	if err != nil {
		return fmt.Errorf("marshaling tags for %s: %w", rec.Key, err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO records (
			key, type, title, creators_json, date, venue,
			publisher, volume, issue, pages, doi, isbn, url, tags_json, note
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, string(rec.Type), rec.Title, string(creatorsJSON),
		nullableStringValue(rec.Date), nullableStringValue(rec.Venue),
		nullableStringValue(rec.Publisher), nullableStringValue(rec.Volume),
		nullableStringValue(rec.Issue), nullableStringValue(rec.Pages),
		nullableStringValue(rec.DOI), nullableStringValue(rec.ISBN),
		nullableStringValue(rec.URL), string(tagsJSON),
		nullableStringValue(rec.ProvenanceNote),
	)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", rec.Key, err)
	}
	return nil
}

// ListAll returns all records in insertion order.
func (d *DB) ListAll(ctx context.Context) ([]citation.Record, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectRecordFields+` FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecord(rows *sql.Rows) (citation.Record, error) {
	var rec citation.Record
	var recType, creatorsJSON, tagsJSON string
	var date, venue, publisher, volume, issue, pages, doi, isbn, url, note sql.NullString

	err := rows.Scan(
		&rec.Key, &recType, &rec.Title, &creatorsJSON, &date, &venue,
		&publisher, &volume, &issue, &pages, &doi, &isbn, &url, &tagsJSON, &note,
	)
	if err != nil {
		return rec, err
	}

	// Handle nullable fields
	rec.Type = citation.RecordType(recType)
	rec.Date = date.String
	rec.Venue = venue.String
	rec.Publisher = publisher.String
	rec.Volume = volume.String
	rec.Issue = issue.String
	rec.Pages = pages.String
	rec.DOI = doi.String
	rec.ISBN = isbn.String
	rec.URL = url.String
	rec.ProvenanceNote = note.String

	// Parse JSON fields
	if err := json.Unmarshal([]byte(creatorsJSON), &rec.Creators); err != nil {
		return rec, fmt.Errorf("parsing creators JSON for %s: %w", rec.Key, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return rec, fmt.Errorf("parsing tags JSON for %s: %w", rec.Key, err)
	}
	if len(rec.Creators) == 0 {
		rec.Creators = nil
	}
	if len(rec.Tags) == 0 {
		rec.Tags = nil
	}

	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]citation.Record, error) {
	var recs []citation.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNilCreators(c []citation.Creator) []citation.Creator {
	if c == nil {
		return []citation.Creator{}
	}
	return c
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
