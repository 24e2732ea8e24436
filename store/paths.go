// Package store is the persistence layer: the five files under
// ${HOME}/.config/abraxas/ that the daemon and the CLI coordinate through.
// Grounded on original_source's config.c, reimplemented with tidwall/gjson
// for tolerant reads of the two JSON files instead of a hand-rolled parser,
// since the rest of this codebase already depends on gjson for exactly this
// purpose.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the five absolute filesystem paths this daemon reads and
// writes, all rooted at the same config directory.
type Paths struct {
	ConfigDir    string
	LocationFile string
	CacheFile    string
	OverrideFile string
	PIDFile      string
	ZipDBFile    string
}

// Init resolves Paths from $HOME and creates the config directory
// (idempotently, mode 0755) if it doesn't already exist.
func Init() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return Paths{}, fmt.Errorf("store: resolve home directory: %w", err)
	}

	dir := filepath.Join(home, ".config", "abraxas")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("store: create config dir: %w", err)
	}

	return Paths{
		ConfigDir:    dir,
		LocationFile: filepath.Join(dir, "config.ini"),
		CacheFile:    filepath.Join(dir, "weather_cache.json"),
		OverrideFile: filepath.Join(dir, "override.json"),
		PIDFile:      filepath.Join(dir, "daemon.pid"),
		ZipDBFile:    filepath.Join(dir, "us_zipcodes.bin"),
	}, nil
}
