package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/wikisync/internal/config"
	"github.com/matsen/wikisync/internal/export"
	"github.com/matsen/wikisync/internal/pipeline"
	"github.com/matsen/wikisync/internal/storage"
	"github.com/matsen/wikisync/internal/zotero"
)

// recordStore is a pipeline store that can describe itself.
type recordStore interface {
	pipeline.Store
	Describe() string
}

// openStore builds the store selected by cfg. The returned close function
// must be called when done.
func openStore(cfg config.Config) (recordStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendBibTeX:
		return storage.NewBibTeXStore(cfg.Store.Path), noop, nil
	case config.BackendJSONL:
		return storage.NewJSONLStore(cfg.Store.Path), noop, nil
	case config.BackendSQLite:
		s, err := storage.OpenSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendZotero:
		client := zotero.NewClient(cfg.Zotero.LibraryType, cfg.Zotero.LibraryID,
			zotero.WithAPIKey(cfg.Zotero.APIKey),
			zotero.WithRateLimit(cfg.Zotero.RequestsPerSecond),
		)
		return zotero.NewStore(client), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// mustLoadConfig loads the config file named by --config, or the per-user
// default, and applies environment credentials. Exits on error.
func mustLoadConfig() config.Config {
	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg.WithEnv(os.Getenv)
}

// mustValidateConfig runs the pre-flight checks. Exits on error.
func mustValidateConfig(cfg config.Config) {
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
}

// mustOpenStore opens the configured store. Exits on error.
func mustOpenStore(cfg config.Config) (recordStore, func() error) {
	s, closeFn, err := openStore(cfg)
	if err != nil {
		exitWithError(ExitDataError, "opening store: %v", err)
	}
	return s, closeFn
}

// storeFailure picks the exit code and message for a failed store call.
// Zotero credential and library problems are configuration errors; other
// failures exit with fallback.
func storeFailure(err error, fallback int) (int, string) {
	switch {
	case zotero.IsAuthError(err):
		return ExitConfigError, fmt.Sprintf("%v (check %s and the key's library permissions)", err, config.EnvZoteroAPIKey)
	case zotero.IsNotFound(err):
		return ExitConfigError, fmt.Sprintf("%v (check %s and %s)", err, config.EnvZoteroLibraryID, config.EnvZoteroLibraryType)
	case zotero.IsRateLimited(err):
		return ExitError, fmt.Sprintf("%v (lower zotero.requests_per_second)", err)
	default:
		return fallback, err.Error()
	}
}

// newExporter returns the exporter for path: JSONL for .jsonl files,
// BibTeX otherwise.
func newExporter(path string) pipeline.Exporter {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return storage.JSONLExporter{Path: path}
	}
	return export.FileExporter{Path: path}
}
