package wipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OnlyParams/android-secure-wipe/internal/progress"
	"github.com/OnlyParams/android-secure-wipe/internal/storage"
)

// Run executes a full wipe session on the device: validate, then for each
// pass size from a fresh snapshot, write, flush, delete. Cancelling ctx
// aborts cooperatively; written data is flushed and removed before the
// Aborted result is returned. The temporary directory is removed on every
// exit path, and a failed removal is recorded as a warning on the result
// without changing the outcome.
func (e *Engine) Run(ctx context.Context, serial string, cfg Config, consume Consumer) (*Result, error) {
	if consume == nil {
		consume = func(ProgressEvent) {}
	}

	res := &Result{
		RunID:       uuid.NewString(),
		Mode:        cfg.Mode,
		TotalPasses: cfg.Passes,
		State:       StateIdle,
		StartTime:   e.clock.Now(),
	}

	if err := cfg.Validate(); err != nil {
		return e.fail(res, err)
	}

	res.State = StateValidating
	h, err := e.devices.Validate(ctx, serial)
	if err != nil {
		return e.fail(res, err)
	}
	res.Serial = h.Serial

	tempDir := e.opts.Mount + "/" + e.opts.TempPrefix + res.RunID
	guard := NewCleanupGuard(e.bridge, res.Serial, tempDir, e.log)
	defer e.release(ctx, guard, res)

	e.log.Info().
		Str("run_id", res.RunID).
		Str("serial", res.Serial).
		Str("mode", string(cfg.Mode)).
		Int("passes", cfg.Passes).
		Str("temp_dir", guard.Dir()).
		Msg("wipe session started")

	if err := guard.Acquire(ctx); err != nil {
		return e.finish(ctx, res, guard, consume, err)
	}

	for pass := 1; pass <= cfg.Passes; pass++ {
		res.CurrentPass = pass

		res.State = StateSizing
		snap, err := e.probe.Snapshot(ctx, res.Serial)
		if err != nil {
			return e.finish(ctx, res, guard, consume, err)
		}
		plan, err := PlanPass(cfg, snap)
		if err != nil {
			return e.finish(ctx, res, guard, consume, err)
		}

		e.log.Info().
			Int("pass", pass).
			Str("target", storage.FormatBytes(plan.TargetBytes)).
			Str("available", storage.FormatBytes(snap.AvailableBytes)).
			Msg("pass sized")

		res.State = StatePassRunning
		sum, err := e.runPass(ctx, res.Serial, guard.Dir(), pass, cfg.Passes, plan, consume)
		res.Passes = append(res.Passes, sum)
		res.BytesWritten += sum.BytesWritten
		if err != nil {
			return e.finish(ctx, res, guard, consume, err)
		}

		res.State = StateSyncing
		e.log.Info().Int("pass", pass).Msg("flushing pass data")
		consume(ProgressEvent{Pass: pass, TotalPasses: cfg.Passes, BytesWritten: sum.BytesWritten, TargetBytes: sum.TargetBytes, Phase: PhaseSyncing})
		if err := e.shellStep(ctx, res.Serial, "sync"); err != nil {
			return e.finish(ctx, res, guard, consume, err)
		}

		res.State = StateDeleting
		e.log.Info().Int("pass", pass).Msg("deleting pass data")
		consume(ProgressEvent{Pass: pass, TotalPasses: cfg.Passes, BytesWritten: sum.BytesWritten, TargetBytes: sum.TargetBytes, Phase: PhaseDeleting})
		if err := e.shellStep(ctx, res.Serial, "rm -rf "+shellQuote(passDir(guard.Dir(), pass))+" && sync"); err != nil {
			return e.finish(ctx, res, guard, consume, err)
		}

		e.log.Info().
			Int("pass", pass).
			Int("total_passes", cfg.Passes).
			Str("written", storage.FormatBytes(sum.BytesWritten)).
			Str("target", storage.FormatBytes(sum.TargetBytes)).
			Dur("elapsed", sum.Duration).
			Bool("truncated", sum.Truncated).
			Msg("pass completed")
		consume(ProgressEvent{Pass: pass, TotalPasses: cfg.Passes, BytesWritten: sum.BytesWritten, TargetBytes: sum.TargetBytes, Phase: PhasePassComplete})
	}
	res.CurrentPass = 0

	releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	if err := guard.Release(releaseCtx); err != nil {
		res.CleanupWarning = err.Error()
	}
	releaseCancel()

	res.State = StateCompleted
	res.EndTime = e.clock.Now()
	consume(ProgressEvent{Pass: cfg.Passes, TotalPasses: cfg.Passes, BytesWritten: res.BytesWritten, Phase: PhaseWipeComplete})

	e.log.Info().
		Str("run_id", res.RunID).
		Str("written", storage.FormatBytes(res.BytesWritten)).
		Dur("elapsed", res.EndTime.Sub(res.StartTime)).
		Msg("wipe session completed")

	return res, nil
}

// runPass streams one pass script and folds its tagged output into progress
// events. A silent device trips the output watchdog and the pass is
// abandoned as lost; a cancelled context abandons it as aborted. Either way
// the stream is drained before returning so the bridge can reap the
// process.
func (e *Engine) runPass(ctx context.Context, serial, tempDir string, pass, total int, plan PassPlan, consume Consumer) (PassSummary, error) {
	start := e.clock.Now()
	sum := PassSummary{Pass: pass, TargetBytes: plan.TargetBytes}

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	script := passScript(tempDir, e.opts.Mount, pass, plan, e.opts.IncrementBytes)
	raw, wait, err := e.bridge.StreamShell(passCtx, serial, script)
	if err != nil {
		sum.Duration = e.clock.Since(start)
		return sum, fmt.Errorf("%w: starting pass %d: %s", ErrWriteFailed, pass, err)
	}
	lines := progress.Stream(raw)

	abandon := func() {
		cancel()
		for range lines {
		}
		_ = wait()
	}

	watchdog := e.clock.NewTimer(e.opts.OutputTimeout)
	defer watchdog.Stop()

	var written int64
	var sawError bool

loop:
	for {
		select {
		case <-ctx.Done():
			abandon()
			sum.BytesWritten = written
			sum.Duration = e.clock.Since(start)
			return sum, fmt.Errorf("%w: %s", ErrAborted, context.Cause(ctx))

		case <-watchdog.Chan():
			abandon()
			sum.BytesWritten = written
			sum.Duration = e.clock.Since(start)
			return sum, fmt.Errorf("%w: no output for %s during pass %d", ErrDeviceLost, e.opts.OutputTimeout, pass)

		case ln, ok := <-lines:
			if !ok {
				break loop
			}
			watchdog.Reset(e.opts.OutputTimeout)

			switch ln.Tag {
			case progress.TagProgress:
				if ln.WrittenBytes > written {
					written = ln.WrittenBytes
				}
				if written > plan.TargetBytes {
					written = plan.TargetBytes
				}
				consume(ProgressEvent{Pass: pass, TotalPasses: total, BytesWritten: written, TargetBytes: plan.TargetBytes, Phase: PhaseWriting})

			case progress.TagLowSpace:
				sum.Truncated = true
				e.log.Warn().
					Int("pass", pass).
					Str("available", storage.FormatBytes(ln.AvailBytes)).
					Msg("low-space floor reached, pass truncated")
				consume(ProgressEvent{Pass: pass, TotalPasses: total, BytesWritten: written, TargetBytes: plan.TargetBytes, Phase: PhaseWriting,
					Message: "low-space floor reached, stopping pass early"})

			case progress.TagWriteError:
				sawError = true
				e.log.Error().Int("pass", pass).Str("line", ln.Raw).Msg("device reported write error")

			case progress.TagPassDone:
				if ln.WrittenBytes > written {
					written = ln.WrittenBytes
				}
				if written > plan.TargetBytes {
					written = plan.TargetBytes
				}

			default:
				e.log.Debug().Str("serial", serial).Str("line", ln.Raw).Msg("device output")
			}
		}
	}

	waitErr := wait()
	sum.BytesWritten = written
	sum.Duration = e.clock.Since(start)

	if sawError {
		return sum, fmt.Errorf("%w: device reported write error during pass %d", ErrWriteFailed, pass)
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return sum, fmt.Errorf("%w: %s", ErrAborted, context.Cause(ctx))
		}
		return sum, fmt.Errorf("%w: pass %d exited: %s", ErrWriteFailed, pass, waitErr)
	}
	return sum, nil
}

// finish settles a run that cannot continue: flush and remove whatever was
// written, classify the cause as Aborted or Failed, and stamp the result.
func (e *Engine) finish(ctx context.Context, res *Result, guard *CleanupGuard, consume Consumer, cause error) (*Result, error) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	aborted := errors.Is(cause, ErrAborted) || errors.Is(cause, context.Canceled)
	if aborted {
		// Flush before removal so partial chunks actually hit flash.
		if _, err := e.bridge.Shell(detached, res.Serial, "sync"); err != nil {
			e.log.Debug().Err(err).Msg("post-abort sync failed")
		}
	}

	if err := guard.Release(detached); err != nil {
		res.CleanupWarning = err.Error()
	}

	if aborted {
		res.State = StateAborted
		if !errors.Is(cause, ErrAborted) {
			cause = fmt.Errorf("%w: %s", ErrAborted, cause)
		}
		consume(ProgressEvent{Pass: res.CurrentPass, TotalPasses: res.TotalPasses, BytesWritten: res.BytesWritten, Phase: PhaseAborted,
			Message: "wipe aborted, temporary data removed"})
	} else {
		res.State = StateFailed
	}

	res.Cause = cause.Error()
	res.EndTime = e.clock.Now()

	e.log.Error().
		Str("run_id", res.RunID).
		Str("state", string(res.State)).
		Int("pass", res.CurrentPass).
		Err(cause).
		Msg("wipe session ended early")

	return res, cause
}

// fail settles a run that never touched the device.
func (e *Engine) fail(res *Result, cause error) (*Result, error) {
	res.State = StateFailed
	res.Cause = cause.Error()
	res.EndTime = e.clock.Now()
	return res, cause
}

// release is the deferred safety net behind finish and the happy path. The
// guard is idempotent, so this is a no-op whenever cleanup already ran.
func (e *Engine) release(ctx context.Context, guard *CleanupGuard, res *Result) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := guard.Release(detached); err != nil && res.CleanupWarning == "" {
		res.CleanupWarning = err.Error()
	}
}
