// Package paths provides path resolution utilities for the orchestrator's
// on-disk collaborators: the JSON configuration, the process lock file, and
// the optional .env file, all of which live together.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigName is the configuration file looked up in the working
// directory when no path is given on the command line.
const DefaultConfigName = "poets_cron_config.json"

// LockFileName is the lock file created next to the configuration.
const LockFileName = "poets_generation.lock"

// ResolveConfig resolves the configuration path from user input.
//
// Input normalization:
//   - "" -> "./poets_cron_config.json"
//   - "~/x/config.json" -> "$HOME/x/config.json"
//   - "/path/to/dir" (existing directory) -> "/path/to/dir/poets_cron_config.json"
//   - anything else is cleaned and returned as-is
func ResolveConfig(path string) string {
	if path == "" {
		path = DefaultConfigName
	}
	path = ExpandHome(path)
	path = filepath.Clean(path)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, DefaultConfigName)
	}
	return path
}

// LockPath returns the lock file path for a given configuration path.
// The lock always lives in the configuration's directory so concurrent
// invocations against the same config contend on the same file.
func LockPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), LockFileName)
}

// EnvPath returns the .env file path for a given configuration path.
func EnvPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".env")
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
// Unresolvable homes leave the path untouched.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
