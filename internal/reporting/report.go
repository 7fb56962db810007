// Package reporting writes the per-run JSON report: which device was
// wiped, how each pass went, and how the run ended. The report is the
// machine-readable record an operator archives before handing a device on.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OnlyParams/android-secure-wipe/internal/device"
	"github.com/OnlyParams/android-secure-wipe/internal/wipe"
)

// Report is one run's record.
type Report struct {
	RunID          string             `json:"run_id"`
	Version        string             `json:"version"`
	GeneratedAt    time.Time          `json:"generated_at"`
	Device         DeviceReport       `json:"device"`
	Mode           string             `json:"mode"`
	TotalPasses    int                `json:"total_passes"`
	State          string             `json:"state"`
	Passes         []wipe.PassSummary `json:"passes"`
	BytesWritten   int64              `json:"bytes_written"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        time.Time          `json:"end_time"`
	Duration       string             `json:"duration"`
	Cause          string             `json:"cause,omitempty"`
	CleanupWarning string             `json:"cleanup_warning,omitempty"`
	ExitCode       int                `json:"exit_code"`
}

// DeviceReport identifies the wiped device.
type DeviceReport struct {
	Serial         string `json:"serial"`
	Model          string `json:"model,omitempty"`
	Brand          string `json:"brand,omitempty"`
	AndroidVersion string `json:"android_version,omitempty"`
}

// New builds a report from a finished run.
func New(res *wipe.Result, h device.Handle, version string, exitCode int) *Report {
	return &Report{
		RunID:       res.RunID,
		Version:     version,
		GeneratedAt: time.Now(),
		Device: DeviceReport{
			Serial:         h.Serial,
			Model:          h.Model,
			Brand:          h.Brand,
			AndroidVersion: h.AndroidVersion,
		},
		Mode:           string(res.Mode),
		TotalPasses:    res.TotalPasses,
		State:          string(res.State),
		Passes:         res.Passes,
		BytesWritten:   res.BytesWritten,
		StartTime:      res.StartTime,
		EndTime:        res.EndTime,
		Duration:       res.EndTime.Sub(res.StartTime).Round(time.Second).String(),
		Cause:          res.Cause,
		CleanupWarning: res.CleanupWarning,
		ExitCode:       exitCode,
	}
}

// Save writes the report as pretty-printed JSON under dir and returns the
// file path. The file name carries the serial and timestamp so reports from
// a batch of devices sort usefully.
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("wipe_%s_%s.json", r.Device.Serial, r.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report %s: %w", path, err)
	}
	return path, nil
}
