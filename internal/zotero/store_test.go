package zotero

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/matsen/wikisync/internal/citation"
)

func TestStore_ListSkipsNotesAndAttachments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Total-Results", "3")
		json.NewEncoder(w).Encode([]itemEnvelope{
			{Key: "A", Data: Item{ItemType: ItemTypeBook, Title: "A book"}},
			{Key: "B", Data: Item{ItemType: "note"}},
			{Key: "C", Data: Item{ItemType: "attachment", Title: "paper.pdf"}},
		})
	})

	recs, err := NewStore(c).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "A book" {
		t.Errorf("List() = %+v, want only the book", recs)
	}
}

func TestStore_AppendFailureCarriesKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"failed":{"0":{"code":413,"message":"too large"}}}`))
	})

	err := NewStore(c).Append(context.Background(), citation.Record{Key: "wiki_deadbeef", Title: "x"})
	if err == nil {
		t.Fatal("Append() expected error")
	}
	if got := err.Error(); !strings.Contains(got, "wiki_deadbeef") {
		t.Errorf("Append() error = %q, want it to name the record key", got)
	}
}
