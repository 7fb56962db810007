package adb

import (
	"context"
	"io"
	"os/exec"
)

// Executor abstracts process execution so the adb binary can be replaced
// with a fake in tests.
type Executor interface {
	// Output runs a command to completion and returns its combined stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Stream starts a command and returns a reader over its combined
	// stdout/stderr. The returned wait function reports the process exit
	// result and must be called after the reader is drained. Cancelling
	// the context kills the process.
	Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error)
}

type realExecutor struct{}

// NewExecutor returns an Executor backed by os/exec.
func NewExecutor() Executor {
	return &realExecutor{}
}

func (*realExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (*realExecutor) Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return nil, nil, err
	}

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		done <- err
		// Unblocks the reader once the process is gone.
		_ = pw.Close()
	}()

	wait := func() error { return <-done }
	return pr, wait, nil
}
