// Package pipeline runs one reconciliation pass: fetch each page, extract
// its citations, canonicalize them and append the ones the store lacks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/matsen/wikisync/internal/citation"
	"github.com/matsen/wikisync/internal/config"
)

// ErrStoreList is returned when the store snapshot cannot be read. A run
// cannot decide novelty without it, so it stops the run.
var ErrStoreList = errors.New("listing store records")

// Store is a reconciliation target.
type Store interface {
	List(ctx context.Context) ([]citation.Record, error)
	Append(ctx context.Context, rec citation.Record) error
}

// Fetcher returns the markup of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Exporter receives the full store contents after a run that added records.
type Exporter interface {
	Export(recs []citation.Record) error
}

// Outcome is the result of processing one page.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped" // Page could not be fetched
	OutcomeFatal   Outcome = "fatal"   // Store snapshot failed; run stopped
)

// Status is the decision taken for one candidate record.
type Status string

const (
	StatusAdded    Status = "added"
	StatusExists   Status = "exists"
	StatusFailed   Status = "failed"
	StatusWouldAdd Status = "would_add" // Dry run
)

// Candidate reports what happened to one extracted citation.
type Candidate struct {
	Key    string        `json:"key"`
	Kind   citation.Kind `json:"kind"`
	Title  string        `json:"title"`
	Status Status        `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// PageResult reports one page.
type PageResult struct {
	Page       string      `json:"page"`
	Outcome    Outcome     `json:"outcome"`
	Found      int         `json:"found"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Result summarizes a run.
type Result struct {
	Pages       []PageResult `json:"pages"`
	Found       int          `json:"found"`
	Added       int          `json:"added"`
	Existing    int          `json:"existing"`
	Failed      int          `json:"failed"`
	WouldAdd    int          `json:"would_add,omitempty"`
	DryRun      bool         `json:"dry_run,omitempty"`
	Exported    bool         `json:"exported"`
	ExportError string       `json:"export_error,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithExporter sets an exporter run after records were added.
func WithExporter(e Exporter) Option {
	return func(p *Pipeline) {
		p.exporter = e
	}
}

// WithDryRun reports decisions without appending or exporting.
func WithDryRun(dryRun bool) Option {
	return func(p *Pipeline) {
		p.dryRun = dryRun
	}
}

// Pipeline reconciles wiki pages against a store.
type Pipeline struct {
	cfg      config.Config
	fetcher  Fetcher
	store    Store
	exporter Exporter
	logger   *slog.Logger
	dryRun   bool
}

// New creates a pipeline. cfg supplies the pages and dedupe policy.
func New(cfg config.Config, fetcher Fetcher, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes every configured page in order. It returns an error only
// when the run had to stop: a store listing failure or a canceled context.
// The partial Result is returned either way.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{DryRun: p.dryRun}

	for _, page := range p.cfg.Pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		pr, err := p.processPage(ctx, page)
		res.add(pr)
		if err != nil {
			return res, err
		}
	}

	p.logger.Info("sync complete",
		"pages", len(res.Pages), "found", res.Found, "added", res.Added,
		"existing", res.Existing, "failed", res.Failed)

	if res.Added == 0 {
		if !p.dryRun {
			p.logger.Info("no new citations found; store unchanged")
		}
		return res, nil
	}

	if p.exporter != nil {
		if err := p.export(ctx); err != nil {
			p.logger.Error("export failed", "error", err)
			res.ExportError = err.Error()
		} else {
			res.Exported = true
		}
	}

	return res, nil
}

func (p *Pipeline) processPage(ctx context.Context, page string) (PageResult, error) {
	pr := PageResult{Page: page, Outcome: OutcomeOK}
	log := p.logger.With("page", page)
	log.Info("processing page")

	text, err := p.fetcher.Fetch(ctx, page)
	if err != nil {
		log.Warn("fetch failed; skipping page", "error", err)
		pr.Outcome = OutcomeSkipped
		pr.Error = err.Error()
		return pr, nil
	}

	snapshot, err := p.store.List(ctx)
	if err != nil {
		pr.Outcome = OutcomeFatal
		pr.Error = err.Error()
		return pr, fmt.Errorf("%w: %w", ErrStoreList, err)
	}
	log.Debug("store snapshot", "records", len(snapshot))

	raws := citation.Scan(text, page)
	pr.Found = len(raws)
	log.Info("found potential citations", "count", len(raws))

	for _, raw := range raws {
		rec := citation.Canonicalize(raw, nil)
		c := Candidate{Key: rec.Key, Kind: raw.Kind, Title: rec.Title}

		switch {
		case citation.Exists(rec, snapshot):
			c.Status = StatusExists
			log.Debug("citation already exists", "key", rec.Key, "title", rec.Title)
		case p.dryRun:
			c.Status = StatusWouldAdd
			log.Debug("would add citation", "key", rec.Key, "title", rec.Title)
		default:
			if err := p.store.Append(ctx, rec); err != nil {
				c.Status = StatusFailed
				c.Error = err.Error()
				log.Error("append failed", "key", rec.Key, "error", err)
				break
			}
			c.Status = StatusAdded
			log.Info("added citation", "key", rec.Key, "title", rec.Title)
		}

		if p.cfg.DedupeWithinRun && (c.Status == StatusAdded || c.Status == StatusWouldAdd) {
			snapshot = append(snapshot, rec)
		}
		pr.Candidates = append(pr.Candidates, c)
	}

	return pr, nil
}

func (p *Pipeline) export(ctx context.Context) error {
	recs, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreList, err)
	}
	if err := p.exporter.Export(recs); err != nil {
		return fmt.Errorf("exporting %d records: %w", len(recs), err)
	}
	p.logger.Info("exported store", "records", len(recs))
	return nil
}

func (r *Result) add(pr PageResult) {
	r.Pages = append(r.Pages, pr)
	r.Found += pr.Found
	for _, c := range pr.Candidates {
		switch c.Status {
		case StatusAdded:
			r.Added++
		case StatusExists:
			r.Existing++
		case StatusFailed:
			r.Failed++
		case StatusWouldAdd:
			r.WouldAdd++
		}
	}
}
