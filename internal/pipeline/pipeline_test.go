package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/matsen/wikisync/internal/citation"
	"github.com/matsen/wikisync/internal/config"
)

const (
	pageA = "https://example.org/wiki/A"
	pageB = "https://example.org/wiki/B"
)

const pageAText = `Intro text.
<ref>Hutter (2005) Universal Artificial Intelligence</ref>
{{cite journal |title=Universal Intelligence |author=Shane Legg |journal=Minds and Machines |year=2007}}
See the [https://example.org/aixi AIXI overview page] and [https://example.org/x ok].`

const pageBText = `<ref>Solomonoff (1964) A formal theory of inductive inference</ref>`

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.errs[pageURL]; err != nil {
		return "", err
	}
	return f.pages[pageURL], nil
}

type memStore struct {
	recs      []citation.Record
	listErr   error
	appendErr func(citation.Record) error
	lists     int
}

func (s *memStore) List(ctx context.Context) ([]citation.Record, error) {
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]citation.Record(nil), s.recs...), nil
}

func (s *memStore) Append(ctx context.Context, rec citation.Record) error {
	if s.appendErr != nil {
		if err := s.appendErr(rec); err != nil {
			return err
		}
	}
	s.recs = append(s.recs, rec)
	return nil
}

type recordingExporter struct {
	calls int
	last  []citation.Record
	err   error
}

func (e *recordingExporter) Export(recs []citation.Record) error {
	e.calls++
	e.last = recs
	return e.err
}

func testConfig(pages ...string) config.Config {
	return config.Default().WithPages(pages)
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{pageA: pageAText, pageB: pageBText}}
}

func TestRun_AddsNewCitations(t *testing.T) {
	store := &memStore{}
	p := New(testConfig(pageA, pageB), newFetcher(), store)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Page A: one inline reference, one template, one labelled link (the
	// "ok" label is too short). Page B: one inline reference.
	if res.Found != 4 || res.Added != 4 {
		t.Errorf("Run() found/added = %d/%d, want 4/4", res.Found, res.Added)
	}
	if len(store.recs) != 4 {
		t.Fatalf("store has %d records, want 4", len(store.recs))
	}
	for _, rec := range store.recs {
		if !rec.HasTag(citation.SourceTag) {
			t.Errorf("record %s missing %s tag", rec.Key, citation.SourceTag)
		}
	}
	for _, pr := range res.Pages {
		if pr.Outcome != OutcomeOK {
			t.Errorf("page %s outcome = %s, want ok", pr.Page, pr.Outcome)
		}
	}
	if store.lists != 2 {
		t.Errorf("store listed %d times, want once per page", store.lists)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := &memStore{}
	cfg := testConfig(pageA, pageB)

	if _, err := New(cfg, newFetcher(), store).Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	before := len(store.recs)

	res, err := New(cfg, newFetcher(), store).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if res.Added != 0 {
		t.Errorf("second Run() added %d, want 0", res.Added)
	}
	if res.Existing != res.Found {
		t.Errorf("second Run() existing = %d, want all %d found", res.Existing, res.Found)
	}
	if len(store.recs) != before {
		t.Errorf("store grew from %d to %d on rerun", before, len(store.recs))
	}
}

func TestRun_FetchFailureSkipsPage(t *testing.T) {
	f := newFetcher()
	f.errs = map[string]error{pageA: errors.New("connection refused")}
	store := &memStore{}

	res, err := New(testConfig(pageA, pageB), f, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Pages[0].Outcome != OutcomeSkipped || res.Pages[0].Error == "" {
		t.Errorf("page A = %+v, want skipped with error", res.Pages[0])
	}
	if res.Pages[1].Outcome != OutcomeOK || res.Added != 1 {
		t.Errorf("page B = %+v, added = %d; want page B processed", res.Pages[1], res.Added)
	}
}

func TestRun_StoreListFailureIsFatal(t *testing.T) {
	store := &memStore{listErr: errors.New("disk on fire")}

	res, err := New(testConfig(pageA, pageB), newFetcher(), store).Run(context.Background())
	if !errors.Is(err, ErrStoreList) {
		t.Fatalf("Run() error = %v, want ErrStoreList", err)
	}
	if len(res.Pages) != 1 || res.Pages[0].Outcome != OutcomeFatal {
		t.Errorf("Run() pages = %+v, want a single fatal page", res.Pages)
	}
	if len(store.recs) != 0 {
		t.Errorf("store has %d records after fatal listing", len(store.recs))
	}
}

func TestRun_AppendFailureContinues(t *testing.T) {
	store := &memStore{appendErr: func(rec citation.Record) error {
		if rec.Title == "Universal Intelligence" {
			return errors.New("quota exceeded")
		}
		return nil
	}}

	res, err := New(testConfig(pageA), newFetcher(), store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 1 || res.Added != 2 {
		t.Errorf("Run() failed/added = %d/%d, want 1/2", res.Failed, res.Added)
	}

	var failed *Candidate
	for i, c := range res.Pages[0].Candidates {
		if c.Status == StatusFailed {
			failed = &res.Pages[0].Candidates[i]
		}
	}
	if failed == nil || failed.Kind != citation.KindTemplate || failed.Error == "" {
		t.Errorf("failed candidate = %+v, want the template with an error", failed)
	}
}

func TestRun_DryRun(t *testing.T) {
	store := &memStore{}
	exp := &recordingExporter{}

	res, err := New(testConfig(pageA), newFetcher(), store, WithDryRun(true), WithExporter(exp)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.DryRun || res.WouldAdd != 3 || res.Added != 0 {
		t.Errorf("Run() = %+v, want 3 would_add and nothing added", res)
	}
	if len(store.recs) != 0 {
		t.Errorf("dry run appended %d records", len(store.recs))
	}
	if exp.calls != 0 {
		t.Errorf("dry run exported %d times", exp.calls)
	}
}

func TestRun_Export(t *testing.T) {
	existing := citation.Record{Key: "Manual2020", Type: citation.TypeMisc, Title: "A manual entry about something else"}

	tests := []struct {
		name       string
		pages      []string
		exportErr  error
		wantCalls  int
		wantExport bool
	}{
		{"exports after additions", []string{pageB}, nil, 1, true},
		{"export failure is recorded", []string{pageB}, errors.New("read-only"), 1, false},
		{"no export without additions", nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{recs: []citation.Record{existing}}
			exp := &recordingExporter{err: tt.exportErr}
			cfg := config.Default()
			cfg.Pages = tt.pages

			res, err := New(cfg, newFetcher(), store, WithExporter(exp)).Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if exp.calls != tt.wantCalls {
				t.Errorf("Export() called %d times, want %d", exp.calls, tt.wantCalls)
			}
			if res.Exported != tt.wantExport {
				t.Errorf("Exported = %v, want %v", res.Exported, tt.wantExport)
			}
			if tt.exportErr != nil && res.ExportError == "" {
				t.Error("ExportError empty after failed export")
			}
			if tt.wantCalls > 0 && len(exp.last) != 2 {
				t.Errorf("exported %d records, want the full store of 2", len(exp.last))
			}
		})
	}
}

func TestRun_DedupeWithinRun(t *testing.T) {
	const dupText = `<ref>Hutter (2005) Universal Artificial Intelligence</ref> and again
<ref name="h">Hutter (2005) Universal Artificial Intelligence</ref>`

	tests := []struct {
		dedupe    bool
		wantAdded int
	}{
		{false, 2},
		{true, 1},
	}

	for _, tt := range tests {
		store := &memStore{}
		cfg := testConfig(pageA)
		cfg.DedupeWithinRun = tt.dedupe
		f := &fakeFetcher{pages: map[string]string{pageA: dupText}}

		res, err := New(cfg, f, store).Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Added != tt.wantAdded {
			t.Errorf("DedupeWithinRun=%v: added %d, want %d", tt.dedupe, res.Added, tt.wantAdded)
		}
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(pageA), newFetcher(), &memStore{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
