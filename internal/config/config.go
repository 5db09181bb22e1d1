// Package config handles wikisync configuration: the pages to read, the
// store to reconcile against and the credentials it needs.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendBibTeX = "bibtex"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendZotero = "zotero"
)

// ValidBackends lists the supported store.backend values.
var ValidBackends = []string{BackendBibTeX, BackendJSONL, BackendSQLite, BackendZotero}

// Zotero library types.
const (
	LibraryUser  = "user"
	LibraryGroup = "group"
)

// Defaults.
const (
	DefaultPage        = "https://en.wikiversity.org/wiki/AIXworkbench/Papers/Building-the-Workbench"
	DefaultBackend     = BackendBibTeX
	DefaultStorePath   = "references.bib"
	DefaultZoteroRate  = 1.0
	DefaultLibraryType = LibraryUser
)

// Environment variables that override credentials.
const (
	EnvZoteroAPIKey      = "ZOTERO_API_KEY"
	EnvZoteroLibraryID   = "ZOTERO_LIBRARY_ID"
	EnvZoteroLibraryType = "ZOTERO_LIBRARY_TYPE"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredentials is returned when the zotero backend lacks a library ID or API key.
	ErrMissingCredentials = errors.New("missing Zotero credentials")
)

// StoreConfig selects the reconciliation target.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"` // File backends only
}

// ZoteroConfig holds Zotero Web API settings.
type ZoteroConfig struct {
	LibraryID         string  `yaml:"library_id,omitempty" json:"library_id,omitempty"`
	LibraryType       string  `yaml:"library_type,omitempty" json:"library_type,omitempty"` // user or group
	APIKey            string  `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`
}

// Config is the run configuration. It is built once at startup and passed
// by value; the With* methods return modified copies.
type Config struct {
	Pages           []string     `yaml:"pages" json:"pages"`
	Store           StoreConfig  `yaml:"store" json:"store"`
	Zotero          ZoteroConfig `yaml:"zotero,omitempty" json:"zotero,omitempty"`
	ExportPath      string       `yaml:"export_path,omitempty" json:"export_path,omitempty"`
	RawMarkup       bool         `yaml:"raw_markup" json:"raw_markup"` // Fetch wikitext via action=raw
	DedupeWithinRun bool         `yaml:"dedupe_within_run,omitempty" json:"dedupe_within_run,omitempty"`
	UserAgent       string       `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pages: []string{DefaultPage},
		Store: StoreConfig{
			Backend: DefaultBackend,
			Path:    DefaultStorePath,
		},
		Zotero: ZoteroConfig{
			LibraryType:       DefaultLibraryType,
			RequestsPerSecond: DefaultZoteroRate,
		},
		RawMarkup: true,
	}
}

// Load reads configuration from path, layered over Default. A missing
// file is an error; use LoadDefault for the optional per-user file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// LoadDefault reads the per-user config file, returning Default if it
// does not exist.
func LoadDefault() (Config, error) {
	path := DefaultPath()
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML configuration layered over Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.ExportPath = ExpandPath(cfg.ExportPath)
	return cfg, nil
}

// WithEnv returns a copy of c with credentials overridden from the
// environment, looked up through getenv.
func (c Config) WithEnv(getenv func(string) string) Config {
	if v := getenv(EnvZoteroAPIKey); v != "" {
		c.Zotero.APIKey = v
	}
	if v := getenv(EnvZoteroLibraryID); v != "" {
		c.Zotero.LibraryID = v
	}
	if v := getenv(EnvZoteroLibraryType); v != "" {
		c.Zotero.LibraryType = strings.ToLower(v)
	}
	return c
}

// WithPages returns a copy of c reading pages instead of the configured ones.
func (c Config) WithPages(pages []string) Config {
	c.Pages = append([]string(nil), pages...)
	return c
}

// Validate performs the pre-flight checks that must pass before a run
// touches the network or a store. All problems are reported together.
func (c Config) Validate() error {
	var errs []error

	if len(c.Pages) == 0 {
		errs = append(errs, fmt.Errorf("%w: no pages configured", ErrInvalidConfig))
	}
	for _, p := range c.Pages {
		if err := validatePageURL(p); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Store.Backend {
	case BackendBibTeX, BackendJSONL, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("%w: store.path is required for the %s backend", ErrInvalidConfig, c.Store.Backend))
		}
	case BackendZotero:
		if c.Zotero.LibraryID == "" || c.Zotero.APIKey == "" {
			errs = append(errs, fmt.Errorf("%w: set %s and %s (or zotero.library_id and zotero.api_key)",
				ErrMissingCredentials, EnvZoteroLibraryID, EnvZoteroAPIKey))
		}
		if c.Zotero.LibraryType != LibraryUser && c.Zotero.LibraryType != LibraryGroup {
			errs = append(errs, fmt.Errorf("%w: zotero.library_type must be %q or %q, got %q",
				ErrInvalidConfig, LibraryUser, LibraryGroup, c.Zotero.LibraryType))
		}
		if c.Zotero.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Errorf("%w: zotero.requests_per_second must not be negative", ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: invalid store.backend %q (valid: %v)", ErrInvalidConfig, c.Store.Backend, ValidBackends))
	}

	return errors.Join(errs...)
}

func validatePageURL(p string) error {
	u, err := url.Parse(p)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: page %q is not an http(s) URL", ErrInvalidConfig, p)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
