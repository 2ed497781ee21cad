// Package checkpoint persists per-block resume position to disk so a
// worker restarted mid-block can continue from its last tested parameter
// instead of rescanning from the block start.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Value is the tagged-union checkpoint payload: Form identifies which
// engine wrote it, LastTested is the resume point, and Min/Max are optional
// bounds stored alongside it; Load and EffectiveStart do not consult them.
type Value struct {
	Form       string `json:"form"`
	LastTested uint64 `json:"last_tested"`
	Min        uint64 `json:"min,omitempty"`
	Max        uint64 `json:"max,omitempty"`
}

// Load reads a checkpoint file. Any error (missing file, corrupt JSON) is
// non-fatal: the caller should fall back to the block's
// nominal start. ok is false whenever the checkpoint should be ignored.
func Load(path string) (v Value, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, false
	}
	return v, true
}

// Save writes a checkpoint atomically: write to a temp file in the same
// directory, then rename over the destination, so a crash mid-write never
// leaves a torn checkpoint behind.
func Save(path string, v Value) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// EffectiveStart computes the resume position for a block: the checkpoint's
// last_tested+1 if it falls within the block, else the block's nominal
// start.
func EffectiveStart(blockStart, blockEnd uint64, v Value, ok bool) uint64 {
	if !ok {
		return blockStart
	}
	resume := v.LastTested + 1
	if resume <= blockStart || resume > blockEnd {
		return blockStart
	}
	return resume
}
