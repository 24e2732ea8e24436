package store

import (
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// maxOverrideFileSize bounds how much of override.json we'll ever read,
// matching config.c's MAX_OVERRIDE_FILE_SIZE: a file larger than this is
// almost certainly not ours and is rejected rather than parsed.
const maxOverrideFileSize = 4096

// Override mirrors the file the CLI and daemon exchange manual-mode state
// through. The daemon fills StartTemp on first observation if the CLI left
// it zero, and persists the result so a restart doesn't lose it.
type Override struct {
	Active          bool
	TargetTemp      int
	DurationMinutes int
	IssuedAt        time.Time
	StartTemp       int
}

// LoadOverride reads override.json tolerantly: a missing file, an
// oversized one, or one gjson can't make sense of all yield Active=false
// rather than an error, since a malformed override file should fail open
// (auto mode) rather than wedge the daemon.
func LoadOverride(path string) Override {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= 0 || info.Size() > maxOverrideFileSize {
		return Override{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Override{}
	}
	if !gjson.ValidBytes(data) {
		return Override{}
	}

	root := gjson.ParseBytes(data)
	return Override{
		Active:          root.Get("active").Bool(),
		TargetTemp:      int(root.Get("target_temp").Int()),
		DurationMinutes: int(root.Get("duration_minutes").Int()),
		IssuedAt:        time.Unix(root.Get("issued_at").Int(), 0),
		StartTemp:       int(root.Get("start_temp").Int()),
	}
}

// SaveOverride writes override.json with a fixed field order, matching
// config_save_override's layout. Fields are appended one at a time with
// sjson, which preserves insertion order, then pretty-printed to match the
// reference writer's indented form.
func SaveOverride(path string, ovr Override) error {
	raw := "{}"
	raw, _ = sjson.Set(raw, "active", ovr.Active)
	raw, _ = sjson.Set(raw, "target_temp", ovr.TargetTemp)
	raw, _ = sjson.Set(raw, "duration_minutes", ovr.DurationMinutes)
	raw, _ = sjson.Set(raw, "issued_at", ovr.IssuedAt.Unix())
	raw, err := sjson.Set(raw, "start_temp", ovr.StartTemp)
	if err != nil {
		return fmt.Errorf("store: encode override: %w", err)
	}

	if err := os.WriteFile(path, pretty.Pretty([]byte(raw)), 0644); err != nil {
		return fmt.Errorf("store: save override: %w", err)
	}
	return nil
}

// ClearOverride removes override.json; a missing file is not an error.
func ClearOverride(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: clear override: %w", err)
	}
	return nil
}
