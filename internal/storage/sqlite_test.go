package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// setupTestDB creates a test database seeded with testRecords.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, rec := range testRecords() {
		if err := db.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", rec.Key, err)
		}
	}
	return db
}

func TestOpenDB_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("OpenDB() did not create database file")
	}
}

func TestDB_ListAll_FullRecords(t *testing.T) {
	db := setupTestDB(t)

	recs, err := db.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if !reflect.DeepEqual(recs, testRecords()) {
		t.Errorf("ListAll() =\n %+v\nwant records in insertion order\n %+v", recs, testRecords())
	}
}

func TestDB_ListAll_Empty(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	recs, err := db.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("ListAll() returned %d records, want 0", len(recs))
	}
}

func TestDB_DuplicateKeysAllowed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Insert(ctx, testRecords()[0]); err != nil {
		t.Fatalf("Insert() duplicate key error = %v", err)
	}
	recs, err := db.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("ListAll() returned %d records, want 4", len(recs))
	}
}

func TestDB_Close(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := db.ListAll(context.Background()); err == nil {
		t.Error("Operations after Close() should fail")
	}
}
