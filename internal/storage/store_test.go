package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matsen/wikisync/internal/citation"
)

type listAppender interface {
	List(ctx context.Context) ([]citation.Record, error)
	Append(ctx context.Context, rec citation.Record) error
}

func TestStores_AppendThenList(t *testing.T) {
	dir := t.TempDir()
	sqliteStore, err := OpenSQLiteStore(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	defer sqliteStore.Close()

	stores := map[string]listAppender{
		"bibtex": NewBibTeXStore(filepath.Join(dir, "references.bib")),
		"jsonl":  NewJSONLStore(filepath.Join(dir, "records.jsonl")),
		"sqlite": sqliteStore,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			recs, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List() on empty store error = %v", err)
			}
			if len(recs) != 0 {
				t.Fatalf("List() on empty store returned %d records", len(recs))
			}

			for _, rec := range testRecords() {
				if err := s.Append(ctx, rec); err != nil {
					t.Fatalf("Append(%s) error = %v", rec.Key, err)
				}
			}

			recs, err = s.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(recs) != 3 {
				t.Fatalf("List() returned %d records, want 3", len(recs))
			}
			for i, want := range testRecords() {
				if recs[i].Key != want.Key || recs[i].Title != want.Title {
					t.Errorf("record %d = %s/%q, want %s/%q", i, recs[i].Key, recs[i].Title, want.Key, want.Title)
				}
				if !citation.Exists(want, recs) {
					t.Errorf("Exists(%s) = false after append", want.Key)
				}
			}
		})
	}
}

func TestBibTeXStore_CanceledContext(t *testing.T) {
	s := NewBibTeXStore(filepath.Join(t.TempDir(), "references.bib"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.List(ctx); err == nil {
		t.Error("List() with canceled context should fail")
	}
	if err := s.Append(ctx, testRecords()[0]); err == nil {
		t.Error("Append() with canceled context should fail")
	}
}
