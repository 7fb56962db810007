// Package wipe implements the multi-pass free-space overwrite: sizing each
// pass from a fresh storage snapshot, streaming tagged progress from the
// device, flushing and deleting written data between passes, and removing
// the temporary directory on every exit path.
package wipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/OnlyParams/android-secure-wipe/internal/device"
	"github.com/OnlyParams/android-secure-wipe/internal/storage"
)

// Bridge runs commands on the device. Satisfied by adb.Client.
type Bridge interface {
	Shell(ctx context.Context, serial, command string) (string, error)
	StreamShell(ctx context.Context, serial, command string) (<-chan string, func() error, error)
}

// Prober measures free space on the device. Satisfied by storage.Probe.
type Prober interface {
	Snapshot(ctx context.Context, serial string) (storage.Snapshot, error)
}

// Validator resolves and checks the target device. Satisfied by
// device.Session.
type Validator interface {
	Validate(ctx context.Context, serial string) (device.Handle, error)
}

// Defaults for Options fields left zero.
const (
	DefaultMount          = "/sdcard"
	DefaultTempPrefix     = "securewipe_"
	DefaultIncrementBytes = 128 * storage.MiB
	DefaultOutputTimeout  = 2 * time.Minute

	cleanupTimeout = 30 * time.Second
)

// Options tunes how the engine drives the device.
type Options struct {
	// Mount is the writable mount whose free space is overwritten.
	Mount string
	// TempPrefix prefixes the per-run temporary directory under Mount.
	TempPrefix string
	// IncrementBytes is the size of one remote write between progress
	// reports and free-space re-checks.
	IncrementBytes int64
	// OutputTimeout is how long the device may stay silent mid-operation
	// before it is declared lost.
	OutputTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.Mount == "" {
		o.Mount = DefaultMount
	}
	if o.TempPrefix == "" {
		o.TempPrefix = DefaultTempPrefix
	}
	if o.IncrementBytes <= 0 {
		o.IncrementBytes = DefaultIncrementBytes
	}
	if o.OutputTimeout <= 0 {
		o.OutputTimeout = DefaultOutputTimeout
	}
	return o
}

// Engine orchestrates wipe runs. One engine can serve many runs; each run
// gets its own temporary directory and cleanup guard.
type Engine struct {
	bridge  Bridge
	probe   Prober
	devices Validator
	clock   clockwork.Clock
	opts    Options
	log     zerolog.Logger
}

// NewEngine wires an engine. A nil clock falls back to the real one.
func NewEngine(bridge Bridge, probe Prober, devices Validator, clock clockwork.Clock, opts Options, log zerolog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		bridge:  bridge,
		probe:   probe,
		devices: devices,
		clock:   clock,
		opts:    opts.normalized(),
		log:     log,
	}
}

// Plan is the outcome of a dry run: what would be wiped and how the first
// pass would be sized, with nothing written to the device.
type Plan struct {
	Device      device.Handle
	Snapshot    storage.Snapshot
	FirstPass   PassPlan
	TotalPasses int
	Mode        Mode
}

// Plan validates the config and device and sizes the first pass, performing
// the same checks a live run would but writing nothing.
func (e *Engine) Plan(ctx context.Context, serial string, cfg Config) (Plan, error) {
	if err := cfg.Validate(); err != nil {
		return Plan{}, err
	}

	h, err := e.devices.Validate(ctx, serial)
	if err != nil {
		return Plan{}, err
	}

	snap, err := e.probe.Snapshot(ctx, h.Serial)
	if err != nil {
		return Plan{}, err
	}

	pass, err := PlanPass(cfg, snap)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		Device:      h,
		Snapshot:    snap,
		FirstPass:   pass,
		TotalPasses: cfg.Passes,
		Mode:        cfg.Mode,
	}, nil
}

// shellStep runs one bounded device command (sync, per-pass delete). A
// command that never returns within the output timeout means the device is
// gone, not slow.
func (e *Engine) shellStep(ctx context.Context, serial, command string) error {
	stepCtx, cancel := context.WithTimeout(ctx, e.opts.OutputTimeout)
	defer cancel()

	if _, err := e.bridge.Shell(stepCtx, serial, command); err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %q did not return within %s", ErrDeviceLost, command, e.opts.OutputTimeout)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrAborted, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %s", ErrWriteFailed, command, err)
	}
	return nil
}
