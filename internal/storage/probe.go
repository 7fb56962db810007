// Package storage measures free and total space on the device's user-data
// mount by running df through the bridge and parsing whatever dialect of
// output the vendor's build produces.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrStorageQueryFailed is returned when every df variant and parse path has
// been exhausted. The probe never silently reports zero space.
var ErrStorageQueryFailed = errors.New("storage query failed")

// Snapshot is the free/total space on the user-data mount at one point in
// time. AvailableBytes is never negative and never exceeds TotalBytes.
type Snapshot struct {
	TotalBytes     int64
	AvailableBytes int64
}

// Runner runs a shell command on a device; satisfied by adb.Client.
type Runner interface {
	Shell(ctx context.Context, serial, command string) (string, error)
}

// Probe queries storage on a single mount point.
type Probe struct {
	run   Runner
	mount string
	log   zerolog.Logger
}

func NewProbe(run Runner, mount string, log zerolog.Logger) *Probe {
	return &Probe{run: run, mount: mount, log: log}
}

// Snapshot measures the mount. It tries plain 1K-block output first (the
// only form every Android build supports; Samsung devices reject -m and -h)
// and falls back to human-readable output before giving up.
func (p *Probe) Snapshot(ctx context.Context, serial string) (Snapshot, error) {
	variants := []struct {
		command string
		human   bool
	}{
		{"df -k " + p.mount, false},
		{"df " + p.mount, false},
		{"df -h " + p.mount, true},
	}

	var lastErr error
	for _, v := range variants {
		out, err := p.run.Shell(ctx, serial, v.command)
		if err != nil {
			lastErr = err
			p.log.Debug().Err(err).Str("command", v.command).Msg("df variant failed")
			continue
		}
		snap, err := parseDF(out, v.human)
		if err != nil {
			lastErr = err
			p.log.Debug().Err(err).Str("command", v.command).Msg("df parse failed")
			continue
		}
		return snap, nil
	}

	if lastErr != nil {
		return Snapshot{}, fmt.Errorf("%w on %s: %s", ErrStorageQueryFailed, p.mount, lastErr)
	}
	return Snapshot{}, fmt.Errorf("%w on %s", ErrStorageQueryFailed, p.mount)
}

// parseDF extracts total and available space from df output:
//
//	Filesystem     1K-blocks    Used Available Use% Mounted on
//	/dev/fuse      483563724 3229496 480203156   1% /storage/emulated
//
// Columns are located relative to the Use% field when one exists, which
// also copes with long filesystem names wrapping onto their own line. When
// no percent column is present the standard positions are assumed. Plain
// fields are 1K blocks; human fields carry K/M/G suffixes, possibly
// fractional ("1.2G").
func parseDF(out string, human bool) (Snapshot, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return Snapshot{}, fmt.Errorf("no data rows in df output")
	}

	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		totalIdx, availIdx := 1, 3
		for i, f := range fields {
			if strings.HasSuffix(f, "%") && i >= 3 {
				totalIdx, availIdx = i-3, i-1
				break
			}
		}
		if availIdx >= len(fields) {
			continue
		}

		total, err := parseField(fields[totalIdx], human)
		if err != nil {
			continue
		}
		avail, err := parseField(fields[availIdx], human)
		if err != nil {
			continue
		}
		if total <= 0 || avail < 0 || avail > total {
			continue
		}
		return Snapshot{TotalBytes: total, AvailableBytes: avail}, nil
	}

	return Snapshot{}, fmt.Errorf("no parsable data row in df output")
}

func parseField(s string, human bool) (int64, error) {
	if human {
		return ParseSize(s)
	}
	n, err := ParseSize(s + "K") // plain df fields are 1K blocks
	if err != nil {
		return 0, err
	}
	if strings.ContainsAny(s, ".KMGTkmgt") {
		return 0, fmt.Errorf("unexpected suffix in raw field %q", s)
	}
	return n, nil
}
