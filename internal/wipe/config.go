package wipe

import (
	"fmt"

	"github.com/OnlyParams/android-secure-wipe/internal/storage"
)

// Mode selects how each pass is sized.
type Mode string

const (
	// ModeQuick writes a fixed-size chunk per pass.
	ModeQuick Mode = "quick"
	// ModeFull fills a percentage of the currently available space per pass.
	ModeFull Mode = "full"
)

// Bounds for a valid configuration. Out-of-range values are rejected before
// any I/O, never silently adjusted.
const (
	MinPasses = 1
	MaxPasses = 20

	MinChunkBytes = 64 * storage.MiB
	MaxChunkBytes = 10 * storage.GiB

	DefaultFillPercent = 95

	// FloorBytes is the low-space floor: once available space drops below
	// it, writing stops so the wipe never runs the device out of space.
	FloorBytes = 100 * storage.MiB
)

// Config describes one wipe request. Validate before use.
type Config struct {
	Mode           Mode
	Passes         int
	ChunkSizeBytes int64 // quick mode only
	FillPercent    int   // full mode only
}

// Validate checks every bound. Each violation wraps ErrInvalidConfig with a
// message precise enough for the operator to fix the flag.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeQuick, ModeFull:
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeQuick, ModeFull, c.Mode)
	}

	if c.Passes < MinPasses || c.Passes > MaxPasses {
		return fmt.Errorf("%w: passes must be in [%d,%d], got %d", ErrInvalidConfig, MinPasses, MaxPasses, c.Passes)
	}

	if c.Mode == ModeQuick {
		if c.ChunkSizeBytes < MinChunkBytes || c.ChunkSizeBytes > MaxChunkBytes {
			return fmt.Errorf("%w: chunk size must be in [%s,%s], got %s", ErrInvalidConfig,
				storage.FormatBytes(MinChunkBytes), storage.FormatBytes(MaxChunkBytes),
				storage.FormatBytes(c.ChunkSizeBytes))
		}
	} else {
		if c.FillPercent < 1 || c.FillPercent > 100 {
			return fmt.Errorf("%w: fill percent must be in [1,100], got %d", ErrInvalidConfig, c.FillPercent)
		}
	}

	return nil
}

// PassPlan is the write target for a single pass.
type PassPlan struct {
	TargetBytes int64
	FloorBytes  int64
}

// PlanPass sizes one pass from the current storage snapshot. Quick mode
// targets the configured chunk; full mode targets a percentage of what is
// available right now, which naturally shrinks if earlier passes left the
// device with less room.
func PlanPass(cfg Config, snap storage.Snapshot) (PassPlan, error) {
	avail := snap.AvailableBytes

	if avail <= FloorBytes {
		return PassPlan{}, fmt.Errorf("%w: %s available, floor is %s",
			ErrInsufficientSpace, storage.FormatBytes(avail), storage.FormatBytes(FloorBytes))
	}

	var target int64
	if cfg.Mode == ModeQuick {
		target = cfg.ChunkSizeBytes
		if avail < target {
			return PassPlan{}, fmt.Errorf("%w: %s available, pass needs %s",
				ErrInsufficientSpace, storage.FormatBytes(avail), storage.FormatBytes(target))
		}
	} else {
		target = avail * int64(cfg.FillPercent) / 100
	}

	return PassPlan{TargetBytes: target, FloorBytes: FloorBytes}, nil
}
