// Package adb is a thin client for the adb command-line tool. It covers the
// three operations the rest of the program needs: listing attached devices,
// running a shell command on a device, and streaming a long-running shell
// command's output line by line.
package adb

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Client runs adb commands against a local adb binary.
type Client struct {
	path string
	exec Executor
	log  zerolog.Logger
}

// NewClient creates a client for the adb binary at path ("adb" resolves via
// PATH). A nil executor falls back to the real one.
func NewClient(path string, executor Executor, log zerolog.Logger) *Client {
	if path == "" {
		path = "adb"
	}
	if executor == nil {
		executor = NewExecutor()
	}
	return &Client{path: path, exec: executor, log: log}
}

// Version returns the first line of `adb version`, or an error if the
// binary is missing or broken.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.exec.Output(ctx, c.path, "version")
	if err != nil {
		return "", fmt.Errorf("adb version: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

// Devices lists devices currently visible to the adb server, including
// unauthorized and offline ones.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.exec.Output(ctx, c.path, "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	return parseDevices(string(out)), nil
}

// Getprop reads a single system property from the device.
func (c *Client) Getprop(ctx context.Context, serial, prop string) (string, error) {
	out, err := c.Shell(ctx, serial, "getprop "+prop)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Shell runs a command on the device and returns its captured output.
func (c *Client) Shell(ctx context.Context, serial, command string) (string, error) {
	out, err := c.exec.Output(ctx, c.path, "-s", serial, "shell", command)
	if err != nil {
		return string(out), fmt.Errorf("adb -s %s shell: %w", serial, err)
	}
	return string(out), nil
}

// StreamShell starts a command on the device and returns a channel of output
// lines, delivered as they arrive. The channel is closed when the command
// exits or the context is cancelled; the returned wait function reports the
// exit result and must be called after the channel is drained.
func (c *Client) StreamShell(ctx context.Context, serial, command string) (<-chan string, func() error, error) {
	rc, wait, err := c.exec.Stream(ctx, c.path, "-s", serial, "shell", command)
	if err != nil {
		return nil, nil, fmt.Errorf("adb -s %s shell (stream): %w", serial, err)
	}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			c.log.Debug().Err(err).Str("serial", serial).Msg("remote output scan ended")
		}
	}()

	return lines, wait, nil
}
