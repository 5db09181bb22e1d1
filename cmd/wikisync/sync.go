package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/matsen/wikisync/internal/config"
	"github.com/matsen/wikisync/internal/pipeline"
	"github.com/matsen/wikisync/internal/wiki"
	"github.com/spf13/cobra"
)

var (
	syncPages           []string
	syncBackend         string
	syncPath            string
	syncExport          string
	syncDryRun          bool
	syncDedupeWithinRun bool
	syncRaw             bool
)

func init() {
	syncCmd.Flags().StringSliceVar(&syncPages, "page", nil, "Wiki page URL to read (repeatable; replaces configured pages)")
	syncCmd.Flags().StringVar(&syncBackend, "store", "", "Store backend: bibtex, jsonl, sqlite or zotero")
	syncCmd.Flags().StringVar(&syncPath, "path", "", "Store file path (file backends)")
	syncCmd.Flags().StringVar(&syncExport, "export", "", "Write the whole store to this file after additions (BibTeX, or JSONL for .jsonl)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report what would be added without writing")
	syncCmd.Flags().BoolVar(&syncDedupeWithinRun, "dedupe-within-run", false, "Treat citations accepted earlier in a page as existing")
	syncCmd.Flags().BoolVar(&syncRaw, "raw", true, "Fetch wikitext with action=raw (--raw=false fetches rendered HTML)")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Add new citations from wiki pages to the store",
	Long: `Add new citations from wiki pages to the store.

Each page is fetched, its citations extracted and normalized, and every
record not already present in the store is appended. A page that cannot be
fetched is skipped; a store that cannot be listed stops the run.

Examples:
  wikisync sync
  wikisync sync --page https://en.wikiversity.org/wiki/Some_Page
  wikisync sync --store jsonl --path records.jsonl --dry-run
  wikisync sync --store zotero --export library.bib`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

// SyncResponse is the JSON body of a sync run.
type SyncResponse struct {
	Store string `json:"store"`
	pipeline.Result
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := applySyncFlags(cmd, mustLoadConfig())
	mustValidateConfig(cfg)

	store, closeStore := mustOpenStore(cfg)
	defer closeStore()

	fetcher := wiki.NewFetcher(
		wiki.WithUserAgent(cfg.UserAgent),
		wiki.WithRawMarkup(cfg.RawMarkup),
	)

	opts := []pipeline.Option{
		pipeline.WithLogger(slog.Default()),
		pipeline.WithDryRun(syncDryRun),
	}
	if cfg.ExportPath != "" {
		opts = append(opts, pipeline.WithExporter(newExporter(cfg.ExportPath)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.New(cfg, fetcher, store, opts...).Run(ctx)
	if err != nil {
		closeStore()
		fallback := ExitError
		if errors.Is(err, pipeline.ErrStoreList) {
			fallback = ExitDataError
		}
		code, msg := storeFailure(err, fallback)
		exitWithError(code, "%s", msg)
	}

	if humanOutput {
		printSyncHuman(store.Describe(), cfg, res)
		return nil
	}
	return outputJSON(SyncResponse{Store: store.Describe(), Result: res})
}

// applySyncFlags returns cfg with explicitly set flags applied.
func applySyncFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("page") {
		cfg = cfg.WithPages(syncPages)
	}
	if flags.Changed("store") {
		cfg.Store.Backend = syncBackend
	}
	if flags.Changed("path") {
		cfg.Store.Path = config.ExpandPath(syncPath)
	}
	if flags.Changed("export") {
		cfg.ExportPath = config.ExpandPath(syncExport)
	}
	if flags.Changed("dedupe-within-run") {
		cfg.DedupeWithinRun = syncDedupeWithinRun
	}
	if flags.Changed("raw") {
		cfg.RawMarkup = syncRaw
	}
	return cfg
}

func printSyncHuman(storeName string, cfg config.Config, res pipeline.Result) {
	for _, pr := range res.Pages {
		switch pr.Outcome {
		case pipeline.OutcomeSkipped:
			outputHuman("%s: skipped (%s)\n", pr.Page, pr.Error)
			continue
		case pipeline.OutcomeFatal:
			outputHuman("%s: failed (%s)\n", pr.Page, pr.Error)
			continue
		}
		outputHuman("%s: %s found\n", pr.Page, plural(pr.Found, "citation"))
		for _, c := range pr.Candidates {
			if c.Status == pipeline.StatusExists && !verbose {
				continue
			}
			outputHuman("  %-9s %s  %s\n", c.Status, c.Key, truncateString(c.Title, TitleMaxLen))
		}
	}

	outputHuman("\n")
	if res.DryRun {
		outputHuman("Dry run: would add %s to %s (%s already present)\n",
			plural(res.WouldAdd, "citation"), storeName, count(res.Existing))
		return
	}
	if res.Added == 0 {
		outputHuman("No new citations found. %s unchanged.\n", storeName)
	} else {
		outputHuman("Added %s to %s", plural(res.Added, "citation"), storeName)
		if size := fileSize(cfg.Store.Path); size != "" && cfg.Store.Backend != config.BackendZotero {
			outputHuman(" (now %s)", size)
		}
		outputHuman("\n")
	}
	if res.Failed > 0 {
		outputHuman("%s could not be written; see log for details\n", plural(res.Failed, "citation"))
	}
	if res.Exported {
		outputHuman("Exported store to %s\n", cfg.ExportPath)
	} else if res.ExportError != "" {
		outputHuman("Export failed: %s\n", res.ExportError)
	}
}
