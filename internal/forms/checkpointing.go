package forms

import (
	"time"

	"github.com/darkreach/darkreach/internal/checkpoint"
)

// checkpointInterval is the wall-clock cadence at which engines persist a
// checkpoint and poll the cooperative stop flag.
const checkpointInterval = 60 * time.Second

// resumeStart loads the checkpoint (if any) for form and returns the
// effective range start, silently falling back to blockStart on any
// read/decode failure.
func resumeStart(path, form string, blockStart, blockEnd uint64) uint64 {
	if path == "" {
		return blockStart
	}
	v, ok := checkpoint.Load(path)
	if ok && v.Form != form {
		ok = false
	}
	return checkpoint.EffectiveStart(blockStart, blockEnd, v, ok)
}

// saveCheckpoint persists the last-tested parameter, ignoring write errors
// -- a missed checkpoint only costs re-work on resume, never correctness.
func saveCheckpoint(path, form string, lastTested uint64) {
	if path == "" {
		return
	}
	_ = checkpoint.Save(path, checkpoint.Value{Form: form, LastTested: lastTested})
}
