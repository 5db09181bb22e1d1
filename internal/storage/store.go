package storage

import (
	"context"
	"fmt"

	"github.com/matsen/wikisync/internal/citation"
	"github.com/matsen/wikisync/internal/export"
)

// BibTeXStore keeps records in a flat .bib file. Listing parses the whole
// file; appending writes one entry at the end.
type BibTeXStore struct {
	Path string
}

// NewBibTeXStore returns a store backed by the .bib file at path.
func NewBibTeXStore(path string) *BibTeXStore {
	return &BibTeXStore{Path: path}
}

// List returns every entry in the file as a record.
func (s *BibTeXStore) List(ctx context.Context) ([]citation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return export.ParseBibTeXFile(s.Path)
}

// Append writes rec as a new BibTeX entry.
func (s *BibTeXStore) Append(ctx context.Context, rec citation.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := export.AppendToBibFile(s.Path, export.ToBibTeX(rec)); err != nil {
		return fmt.Errorf("appending %s to %s: %w", rec.Key, s.Path, err)
	}
	return nil
}

// Describe returns a short human description of the store.
func (s *BibTeXStore) Describe() string { return "bibtex:" + s.Path }

// JSONLStore keeps one JSON record per line.
type JSONLStore struct {
	Path string
}

// NewJSONLStore returns a store backed by the JSONL file at path.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{Path: path}
}

// List reads all records.
func (s *JSONLStore) List(ctx context.Context) ([]citation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadAll(s.Path)
}

// Append adds rec at the end of the file.
func (s *JSONLStore) Append(ctx context.Context, rec citation.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Append(s.Path, rec)
}

// Describe returns a short human description of the store.
func (s *JSONLStore) Describe() string { return "jsonl:" + s.Path }

// SQLiteStore keeps records in a SQLite table.
type SQLiteStore struct {
	path string
	db   *DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
// The caller is responsible for calling Close.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{path: path, db: db}, nil
}

// List returns all records in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]citation.Record, error) {
	return s.db.ListAll(ctx)
}

// Append inserts rec.
func (s *SQLiteStore) Append(ctx context.Context, rec citation.Record) error {
	return s.db.Insert(ctx, rec)
}

// Describe returns a short human description of the store.
func (s *SQLiteStore) Describe() string { return "sqlite:" + s.path }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
