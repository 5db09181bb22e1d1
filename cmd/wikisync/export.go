package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/matsen/wikisync/internal/citation"
	"github.com/matsen/wikisync/internal/clipboard"
	"github.com/matsen/wikisync/internal/config"
	"github.com/matsen/wikisync/internal/export"
	"github.com/matsen/wikisync/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportBackend string
	exportPath    string
	exportKeys    string
	exportTag     string
	exportOutput  string
	exportSkipIn  string
	exportCopy    bool
)

func init() {
	exportCmd.Flags().StringVar(&exportBackend, "store", "", "Store backend: bibtex, jsonl, sqlite or zotero")
	exportCmd.Flags().StringVar(&exportPath, "path", "", "Store file path (file backends)")
	exportCmd.Flags().StringVar(&exportKeys, "keys", "", "Export only specified keys (comma-separated)")
	exportCmd.Flags().StringVar(&exportTag, "tag", "", "Export only records carrying this tag (e.g. source:wiki)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this .bib file instead of stdout")
	exportCmd.Flags().StringVar(&exportSkipIn, "skip-in", "", "Leave out entries already in this .bib file (by key or DOI)")
	exportCmd.Flags().BoolVar(&exportCopy, "copy", false, "Also copy the BibTeX to the system clipboard")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the store to BibTeX format",
	Long: `Export the store to BibTeX format.

Examples:
  wikisync export > refs.bib
  wikisync export --store sqlite --path records.db --keys wiki_0a1b2c3d,wiki_9f8e7d6c
  wikisync export --store zotero --skip-in references.bib -o new.bib
  wikisync export --keys wiki_0a1b2c3d --copy
  wikisync export --store jsonl --path records.jsonl --tag wiki:template`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// ExportResponse is the JSON body when exporting to a file.
type ExportResponse struct {
	Status   string `json:"status"`
	Path     string `json:"path"`
	Exported int    `json:"exported"`
	Skipped  int    `json:"skipped"`
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if cmd.Flags().Changed("store") {
		cfg.Store.Backend = exportBackend
	}
	if cmd.Flags().Changed("path") {
		cfg.Store.Path = config.ExpandPath(exportPath)
	}
	mustValidateConfig(cfg)

	store, closeStore := mustOpenStore(cfg)
	defer closeStore()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	recs, err := store.List(ctx)
	if err != nil {
		closeStore()
		code, msg := storeFailure(err, ExitDataError)
		exitWithError(code, "listing %s: %s", store.Describe(), msg)
	}

	recs, err = selectByKeys(recs, exportKeys)
	if err != nil {
		closeStore()
		exitWithError(ExitError, "%v", err)
	}

	recs = selectByTag(recs, exportTag)

	total := len(recs)
	if exportSkipIn != "" {
		existing, err := export.ParseBibTeXFile(config.ExpandPath(exportSkipIn))
		if err != nil {
			closeStore()
			exitWithError(ExitDataError, "reading %s: %v", exportSkipIn, err)
		}
		recs = skipIndexed(recs, export.IndexRecords(existing))
	}

	bibtex := export.ToBibTeXList(recs)
	if exportCopy {
		if err := clipboard.Copy(ctx, bibtex); err != nil {
			slog.Warn("copying to clipboard failed", "error", err)
		} else {
			slog.Info("copied BibTeX to clipboard", "records", len(recs), "tool", clipboard.Tool())
		}
	}

	if exportOutput == "" {
		// BibTeX is always text output, never JSON
		fmt.Print(bibtex)
		return nil
	}

	if err := export.WriteBibFile(exportOutput, recs); err != nil {
		closeStore()
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("Exported %s to %s (%s)\n", plural(len(recs), "record"), exportOutput, fileSize(exportOutput))
		return nil
	}
	return outputJSON(ExportResponse{
		Status:   "exported",
		Path:     exportOutput,
		Exported: len(recs),
		Skipped:  total - len(recs),
	})
}

// selectByKeys returns the records named in the comma-separated keys list,
// in list order. An empty list selects everything.
func selectByKeys(recs []citation.Record, keys string) ([]citation.Record, error) {
	if strings.TrimSpace(keys) == "" {
		return recs, nil
	}

	var out []citation.Record
	for _, key := range strings.Split(keys, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		idx, ok := storage.FindByKey(recs, key)
		if !ok {
			return nil, fmt.Errorf("unknown key: %s", key)
		}
		out = append(out, recs[idx])
	}
	return out, nil
}

// selectByTag returns the records carrying tag. An empty tag selects
// everything.
func selectByTag(recs []citation.Record, tag string) []citation.Record {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return recs
	}
	var out []citation.Record
	for _, rec := range recs {
		if rec.HasTag(tag) {
			out = append(out, rec)
		}
	}
	return out
}

// skipIndexed drops records whose key or DOI is already in idx.
func skipIndexed(recs []citation.Record, idx *export.BibTeXIndex) []citation.Record {
	out := make([]citation.Record, 0, len(recs))
	for _, rec := range recs {
		if idx.HasEntry(rec.Key, rec.DOI) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
