package wipe

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OnlyParams/android-secure-wipe/internal/device"
	"github.com/OnlyParams/android-secure-wipe/internal/storage"
)

type fakeStream struct {
	lines    []string
	holdOpen bool // emit lines, then stay open until the context is cancelled
	waitErr  error
}

type fakeBridge struct {
	mu         sync.Mutex
	shellCalls []string
	shellErrs  map[string]error
	streams    []fakeStream
	streamIdx  int
}

func (b *fakeBridge) Shell(ctx context.Context, serial, command string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shellCalls = append(b.shellCalls, command)
	if err := b.shellErrs[command]; err != nil {
		return "", err
	}
	return "", ctx.Err()
}

func (b *fakeBridge) StreamShell(ctx context.Context, serial, command string) (<-chan string, func() error, error) {
	b.mu.Lock()
	if b.streamIdx >= len(b.streams) {
		b.mu.Unlock()
		return nil, nil, errors.New("no scripted stream left")
	}
	s := b.streams[b.streamIdx]
	b.streamIdx++
	b.mu.Unlock()

	ch := make(chan string)
	done := make(chan error, 1)
	go func() {
		defer close(ch)
		for _, ln := range s.lines {
			select {
			case ch <- ln:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		if s.holdOpen {
			<-ctx.Done()
			done <- ctx.Err()
			return
		}
		done <- s.waitErr
	}()
	return ch, func() error { return <-done }, nil
}

func (b *fakeBridge) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.shellCalls))
	copy(out, b.shellCalls)
	return out
}

type fakeProbe struct {
	snaps []storage.Snapshot
	err   error
	idx   int
}

func (p *fakeProbe) Snapshot(ctx context.Context, serial string) (storage.Snapshot, error) {
	if p.err != nil {
		return storage.Snapshot{}, p.err
	}
	if p.idx < len(p.snaps) {
		s := p.snaps[p.idx]
		p.idx++
		return s, nil
	}
	return p.snaps[len(p.snaps)-1], nil
}

type fakeValidator struct {
	handle device.Handle
	err    error
}

func (v *fakeValidator) Validate(ctx context.Context, serial string) (device.Handle, error) {
	if v.err != nil {
		return device.Handle{}, v.err
	}
	return v.handle, nil
}

func newTestEngine(bridge *fakeBridge, probe *fakeProbe, clock clockwork.Clock) *Engine {
	return NewEngine(bridge, probe, &fakeValidator{handle: device.Handle{Serial: "RF8M33XYZ"}}, clock,
		Options{Mount: "/sdcard", TempPrefix: "securewipe_", IncrementBytes: 64 * storage.MiB, OutputTimeout: time.Minute},
		zerolog.Nop())
}

func passLines(pass int, targetMB int64) []string {
	half := targetMB / 2
	return []string{
		"PROGRESS pass=" + itoa(pass) + " written_mb=" + itoa64(half) + " target_mb=" + itoa64(targetMB),
		"PROGRESS pass=" + itoa(pass) + " written_mb=" + itoa64(targetMB) + " target_mb=" + itoa64(targetMB),
		"PASS_DONE pass=" + itoa(pass) + " written_mb=" + itoa64(targetMB),
	}
}

func itoa(n int) string     { return strconv.Itoa(n) }
func itoa64(n int64) string { return strconv.FormatInt(n, 10) }

func TestRunCompletesSinglePass(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{{lines: passLines(1, 1024)}}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB}}}
	eng := newTestEngine(bridge, probe, nil)

	var events []ProgressEvent
	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 1, ChunkSizeBytes: storage.GiB},
		func(ev ProgressEvent) { events = append(events, ev) })

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, int64(storage.GiB), res.BytesWritten)
	require.Len(t, res.Passes, 1)
	assert.False(t, res.Passes[0].Truncated)
	assert.Empty(t, res.CleanupWarning)

	// events arrive in phase order and writing progress never regresses
	var lastWritten int64
	sawComplete := false
	for _, ev := range events {
		if ev.Phase == PhaseWriting {
			assert.GreaterOrEqual(t, ev.BytesWritten, lastWritten)
			assert.LessOrEqual(t, ev.BytesWritten, ev.TargetBytes)
			lastWritten = ev.BytesWritten
		}
		if ev.Phase == PhaseWipeComplete {
			sawComplete = true
		}
	}
	assert.True(t, sawComplete)

	calls := bridge.calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0], "mkdir -p '/sdcard/securewipe_")
	assert.Contains(t, strings.Join(calls, "\n"), "sync")
	// temp dir removed exactly once
	removed := 0
	for _, c := range calls {
		if strings.HasPrefix(c, "rm -rf '/sdcard/securewipe_"+res.RunID) {
			removed++
		}
	}
	assert.Equal(t, 1, removed)
}

func TestRunMultiPassSizesEachPass(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{
		{lines: passLines(1, 7782)},
		{lines: passLines(2, 5837)},
	}}
	probe := &fakeProbe{snaps: []storage.Snapshot{
		{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB},
		{TotalBytes: 32 * storage.GiB, AvailableBytes: 6 * storage.GiB},
	}}
	eng := newTestEngine(bridge, probe, nil)

	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeFull, Passes: 2, FillPercent: 95}, nil)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, res.Passes, 2)
	assert.Equal(t, int64(8*storage.GiB*95/100), res.Passes[0].TargetBytes)
	assert.Equal(t, int64(6*storage.GiB*95/100), res.Passes[1].TargetBytes)
	assert.Equal(t, 2, probe.idx)
}

func TestRunLogsPassLifecycle(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{
		{lines: passLines(1, 1024)},
		{lines: []string{
			"PROGRESS pass=2 written_mb=512 target_mb=1024",
			"LOWSPACE pass=2 avail_kb=51200",
			"PASS_DONE pass=2 written_mb=512",
		}},
	}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB}}}

	var buf bytes.Buffer
	eng := NewEngine(bridge, probe, &fakeValidator{handle: device.Handle{Serial: "RF8M33XYZ"}}, nil,
		Options{Mount: "/sdcard", TempPrefix: "securewipe_", IncrementBytes: 64 * storage.MiB, OutputTimeout: time.Minute},
		zerolog.New(&buf))

	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 2, ChunkSizeBytes: storage.GiB}, nil)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, res.State)

	out := buf.String()
	// the log is the durable record of the run: every phase and a summary
	// per pass must be present even when the JSON report is disabled
	assert.Contains(t, out, "wipe session started")
	assert.Contains(t, out, `"temp_dir":"/sdcard/securewipe_`+res.RunID+`"`)
	assert.Equal(t, 2, strings.Count(out, "flushing pass data"))
	assert.Equal(t, 2, strings.Count(out, "deleting pass data"))
	assert.Equal(t, 2, strings.Count(out, `"message":"pass completed"`))
	assert.Contains(t, out, `"pass":1`)
	assert.Contains(t, out, `"pass":2`)
	assert.Contains(t, out, `"written":"1.0 GiB"`)
	assert.Contains(t, out, `"written":"512.0 MiB"`)
	assert.Contains(t, out, `"truncated":true`)
	assert.Contains(t, out, `"elapsed"`)
	assert.Contains(t, out, "wipe session completed")
}

func TestRunAbortMidPass(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{
		{lines: passLines(1, 1024)},
		{lines: []string{"PROGRESS pass=2 written_mb=128 target_mb=1024"}, holdOpen: true},
	}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB}}}
	eng := newTestEngine(bridge, probe, nil)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := eng.Run(ctx, "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 3, ChunkSizeBytes: storage.GiB},
		func(ev ProgressEvent) {
			if ev.Pass == 2 && ev.Phase == PhaseWriting {
				cancel()
			}
		})

	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, 2, res.CurrentPass)
	require.Len(t, res.Passes, 2)

	// written data was flushed and the temp dir removed despite the abort
	calls := strings.Join(bridge.calls(), "\n")
	assert.Contains(t, calls, "rm -rf '/sdcard/securewipe_"+res.RunID)
}

func TestRunAbortEmitsAbortedEvent(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{{holdOpen: true}}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB}}}
	eng := newTestEngine(bridge, probe, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var phases []Phase
	_, err := eng.Run(ctx, "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 1, ChunkSizeBytes: storage.GiB},
		func(ev ProgressEvent) { phases = append(phases, ev.Phase) })

	require.ErrorIs(t, err, ErrAborted)
	require.NotEmpty(t, phases)
	assert.Equal(t, PhaseAborted, phases[len(phases)-1])
}

func TestRunLowSpaceTruncationStillCompletes(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{{lines: []string{
		"PROGRESS pass=1 written_mb=512 target_mb=1024",
		"LOWSPACE pass=1 avail_kb=51200",
		"PASS_DONE pass=1 written_mb=512",
	}}}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 2 * storage.GiB}}}
	eng := newTestEngine(bridge, probe, nil)

	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 1, ChunkSizeBytes: storage.GiB}, nil)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	require.Len(t, res.Passes, 1)
	assert.True(t, res.Passes[0].Truncated)
	assert.Equal(t, int64(512*storage.MiB), res.Passes[0].BytesWritten)
}

func TestRunInsufficientSpace(t *testing.T) {
	bridge := &fakeBridge{}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 500 * storage.MiB}}}
	eng := newTestEngine(bridge, probe, nil)

	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 1, ChunkSizeBytes: 1024 * storage.MiB}, nil)

	require.ErrorIs(t, err, ErrInsufficientSpace)
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, res.BytesWritten)
	assert.Equal(t, 0, bridge.streamIdx)
}

func TestRunInvalidConfigBeforeDevice(t *testing.T) {
	bridge := &fakeBridge{}
	eng := newTestEngine(bridge, &fakeProbe{snaps: []storage.Snapshot{{}}}, nil)

	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 0, ChunkSizeBytes: storage.GiB}, nil)

	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, bridge.calls())
}

func TestRunWriteErrorFails(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{{
		lines:   []string{"PROGRESS pass=1 written_mb=128 target_mb=1024", "WRITE_ERROR pass=1 chunk=1"},
		waitErr: errors.New("exit status 1"),
	}}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB}}}
	eng := newTestEngine(bridge, probe, nil)

	res, err := eng.Run(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeQuick, Passes: 1, ChunkSizeBytes: storage.GiB}, nil)

	require.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, StateFailed, res.State)
	// temp dir still removed
	assert.Contains(t, strings.Join(bridge.calls(), "\n"), "rm -rf '/sdcard/securewipe_"+res.RunID)
}

func TestRunSilentDeviceIsLost(t *testing.T) {
	bridge := &fakeBridge{streams: []fakeStream{{holdOpen: true}}}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 32 * storage.GiB, AvailableBytes: 8 * storage.GiB}}}
	clock := clockwork.NewFakeClock()
	eng := newTestEngine(bridge, probe, clock)

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.Run(context.Background(), "RF8M33XYZ",
			Config{Mode: ModeQuick, Passes: 1, ChunkSizeBytes: storage.GiB}, nil)
		done <- outcome{res, err}
	}()

	// wait for the watchdog timer, then push past the silence budget
	clock.BlockUntil(1)
	clock.Advance(2 * time.Minute)

	out := <-done
	require.ErrorIs(t, out.err, ErrDeviceLost)
	assert.Equal(t, StateFailed, out.res.State)
}

func TestRunValidationFailurePropagates(t *testing.T) {
	bridge := &fakeBridge{}
	eng := NewEngine(bridge, &fakeProbe{snaps: []storage.Snapshot{{}}},
		&fakeValidator{err: device.ErrAmbiguousDevice}, nil, Options{}, zerolog.Nop())

	res, err := eng.Run(context.Background(), "",
		Config{Mode: ModeFull, Passes: 1, FillPercent: 95}, nil)

	require.ErrorIs(t, err, device.ErrAmbiguousDevice)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, bridge.calls())
}

func TestPlanDryRunWritesNothing(t *testing.T) {
	bridge := &fakeBridge{}
	probe := &fakeProbe{snaps: []storage.Snapshot{{TotalBytes: 64 * storage.GiB, AvailableBytes: 10 * storage.GiB}}}
	eng := newTestEngine(bridge, probe, nil)

	plan, err := eng.Plan(context.Background(), "RF8M33XYZ",
		Config{Mode: ModeFull, Passes: 3, FillPercent: 95})

	require.NoError(t, err)
	assert.Equal(t, int64(10*storage.GiB*95/100), plan.FirstPass.TargetBytes)
	assert.Equal(t, 3, plan.TotalPasses)
	assert.Equal(t, "RF8M33XYZ", plan.Device.Serial)
	assert.Empty(t, bridge.calls())
	assert.Equal(t, 0, bridge.streamIdx)
}
