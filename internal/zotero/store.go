package zotero

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/wikisync/internal/citation"
)

// Store adapts a Zotero library to the record store interface.
type Store struct {
	client *Client
}

// NewStore returns a store writing through client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// List returns the library's top-level items as records. Standalone notes
// and attachments are not bibliographic and are skipped.
func (s *Store) List(ctx context.Context) ([]citation.Record, error) {
	items, err := s.client.ListTopItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing Zotero items: %w", err)
	}

	recs := make([]citation.Record, 0, len(items))
	for _, item := range items {
		if item.ItemType == "note" || item.ItemType == "attachment" {
			continue
		}
		recs = append(recs, FromItem(item))
	}
	return recs, nil
}

// Append creates rec as a new Zotero item.
func (s *Store) Append(ctx context.Context, rec citation.Record) error {
	if _, err := s.client.CreateItem(ctx, ToItem(rec)); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.ItemKey = rec.Key
		}
		return fmt.Errorf("creating Zotero item %s: %w", rec.Key, err)
	}
	return nil
}

// Describe returns a short human description of the store.
func (s *Store) Describe() string {
	return "zotero:" + s.client.libraryPath()
}
