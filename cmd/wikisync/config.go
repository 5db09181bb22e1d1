package main

import (
	"os"

	"github.com/matsen/wikisync/internal/config"
	"github.com/spf13/cobra"
)

var configForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration: the config file layered over the
built-in defaults, with credentials from the environment. The API key is
masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		if cfg.Zotero.APIKey != "" {
			cfg.Zotero.APIKey = "********"
		}

		if humanOutput {
			outputHuman("Pages:\n")
			for _, p := range cfg.Pages {
				outputHuman("  %s\n", p)
			}
			outputHuman("Store:       %s %s\n", cfg.Store.Backend, cfg.Store.Path)
			if cfg.Store.Backend == config.BackendZotero {
				outputHuman("Zotero:      %s %s (key %s)\n", cfg.Zotero.LibraryType, cfg.Zotero.LibraryID, cfg.Zotero.APIKey)
			}
			if cfg.ExportPath != "" {
				outputHuman("Export:      %s\n", cfg.ExportPath)
			}
			outputHuman("Raw markup:  %v\n", cfg.RawMarkup)
			outputHuman("Dedupe:      %v\n", cfg.DedupeWithinRun)
			if err := cfg.Validate(); err != nil {
				outputHuman("\nProblems:\n  %v\n", err)
			}
			return nil
		}
		return outputJSON(cfg)
	},
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if path == "" {
			exitWithError(ExitConfigError, "cannot determine config directory; pass --config")
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			exitWithError(ExitConfigError, "%s already exists (use --force to overwrite)", path)
		}

		if err := config.Default().Save(path); err != nil {
			exitWithError(ExitError, "%v", err)
		}

		if humanOutput {
			outputHuman("Wrote %s\n", path)
			return nil
		}
		return outputJSON(StatusResponse{Status: "created", Path: path})
	},
}
