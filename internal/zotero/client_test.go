package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(LibraryUser, "12345",
		WithAPIKey("secret"),
		WithBaseURL(srv.URL),
		WithRateLimit(0),
	)
}

func TestListTopItems_Paginates(t *testing.T) {
	const total = 150
	var requests int

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/users/12345/items/top" {
			t.Errorf("path = %q, want /users/12345/items/top", r.URL.Path)
		}
		if got := r.Header.Get("Zotero-API-Key"); got != "secret" {
			t.Errorf("Zotero-API-Key = %q, want secret", got)
		}
		if got := r.Header.Get("Zotero-API-Version"); got != APIVersion {
			t.Errorf("Zotero-API-Version = %q, want %s", got, APIVersion)
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var page []itemEnvelope
		for i := start; i < start+limit && i < total; i++ {
			page = append(page, itemEnvelope{
				Key:  fmt.Sprintf("K%04d", i),
				Data: Item{ItemType: ItemTypeDocument, Title: fmt.Sprintf("Item %d", i)},
			})
		}

		w.Header().Set("Total-Results", strconv.Itoa(total))
		json.NewEncoder(w).Encode(page)
	})

	items, err := c.ListTopItems(context.Background())
	if err != nil {
		t.Fatalf("ListTopItems() error = %v", err)
	}
	if len(items) != total {
		t.Errorf("ListTopItems() returned %d items, want %d", len(items), total)
	}
	if requests != 2 {
		t.Errorf("made %d requests, want 2", requests)
	}
	if items[120].Key != "K0120" {
		t.Errorf("items[120].Key = %q, want envelope key copied into item", items[120].Key)
	}
}

func TestListTopItems_GroupLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/777/items/top" {
			t.Errorf("path = %q, want /groups/777/items/top", r.URL.Path)
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClient(LibraryGroup, "777", WithBaseURL(srv.URL), WithRateLimit(0))
	items, err := c.ListTopItems(context.Background())
	if err != nil {
		t.Fatalf("ListTopItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("ListTopItems() returned %d items, want 0", len(items))
	}
}

func TestListTopItems_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"forbidden", http.StatusForbidden, IsAuthError},
		{"not found", http.StatusNotFound, IsNotFound},
		{"rate limited", http.StatusTooManyRequests, IsRateLimited},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode == 500 && apiErr.Message == "boom"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("boom"))
			})
			_, err := c.ListTopItems(context.Background())
			if err == nil {
				t.Fatal("ListTopItems() expected error")
			}
			if !tt.check(err) {
				t.Errorf("ListTopItems() error = %v, wrong classification", err)
			}
		})
	}
}

func TestListTopItems_MissingLibraryID(t *testing.T) {
	c := NewClient(LibraryUser, "")
	_, err := c.ListTopItems(context.Background())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("ListTopItems() error = %v, want ErrMissingCredentials", err)
	}
}

func TestCreateItem(t *testing.T) {
	var got []Item
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/12345/items" {
			t.Errorf("request = %s %s, want POST /users/12345/items", r.Method, r.URL.Path)
		}
		if tok := r.Header.Get("Zotero-Write-Token"); len(tok) != 32 {
			t.Errorf("Zotero-Write-Token = %q, want 32 characters", tok)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Write([]byte(`{"success":{"0":"ABCD2345"},"unchanged":{},"failed":{}}`))
	})

	key, err := c.CreateItem(context.Background(), Item{ItemType: ItemTypeWebpage, Title: "A page"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if key != "ABCD2345" {
		t.Errorf("CreateItem() = %q, want ABCD2345", key)
	}
	if len(got) != 1 || got[0].Title != "A page" {
		t.Errorf("server received %+v, want one item", got)
	}
}

func TestCreateItem_Failed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":{},"unchanged":{},"failed":{"0":{"code":400,"message":"'DOI' is not a valid field for type 'webpage'"}}}`))
	})

	_, err := c.CreateItem(context.Background(), Item{ItemType: ItemTypeWebpage})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CreateItem() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "write_failed" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestNewWriteToken_Unique(t *testing.T) {
	a, b := newWriteToken(), newWriteToken()
	if len(a) != 32 || a == b {
		t.Errorf("newWriteToken() = %q, %q; want distinct 32-character tokens", a, b)
	}
}
