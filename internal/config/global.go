package config

import (
	"os"
	"path/filepath"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "wikisync"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
)

// DefaultPath returns the path to the per-user config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/wikisync/config.yml.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}
