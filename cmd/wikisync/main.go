// Package main provides the wikisync CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	configPath  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wikisync",
	Short: "Sync citations from wiki pages into a bibliography",
	Long: `wikisync extracts citations from MediaWiki pages and adds the ones
missing from your bibliography.

Citations are recognized in three forms: <ref>...</ref> footnotes,
{{cite ...}} templates and labelled external links. Each is normalized into
a record and compared against the store; only new records are appended, so
repeated runs over unchanged pages add nothing.

Stores: a BibTeX file (default references.bib), a JSONL file, a SQLite
database, or a Zotero library (ZOTERO_API_KEY, ZOTERO_LIBRARY_ID).

All commands output JSON by default. Use --human for readable output.
Logs go to stderr.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger())
	},
}

func init() {
	// Load .env file if present (for ZOTERO_API_KEY and friends)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail for every citation")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/wikisync/config.yml)")
	rootCmd.Version = Version
}

// newLogger returns the stderr logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
