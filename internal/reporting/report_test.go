package reporting

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OnlyParams/android-secure-wipe/internal/device"
	"github.com/OnlyParams/android-secure-wipe/internal/wipe"
)

func sampleResult() *wipe.Result {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return &wipe.Result{
		RunID:        "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Serial:       "RF8M33XYZ",
		Mode:         wipe.ModeFull,
		TotalPasses:  2,
		State:        wipe.StateCompleted,
		BytesWritten: 4 << 30,
		StartTime:    start,
		EndTime:      start.Add(25 * time.Minute),
		Passes: []wipe.PassSummary{
			{Pass: 1, BytesWritten: 2 << 30, TargetBytes: 2 << 30, Duration: 12 * time.Minute},
			{Pass: 2, BytesWritten: 2 << 30, TargetBytes: 2 << 30, Duration: 13 * time.Minute},
		},
	}
}

func TestNewReport(t *testing.T) {
	h := device.Handle{Serial: "RF8M33XYZ", Model: "SM-G991B", Brand: "samsung", AndroidVersion: "14"}
	r := New(sampleResult(), h, "1.2.0", 0)

	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", r.RunID)
	assert.Equal(t, "COMPLETED", r.State)
	assert.Equal(t, "full", r.Mode)
	assert.Equal(t, "25m0s", r.Duration)
	assert.Equal(t, "SM-G991B", r.Device.Model)
	assert.Len(t, r.Passes, 2)
	assert.Zero(t, r.ExitCode)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := New(sampleResult(), device.Handle{Serial: "RF8M33XYZ"}, "1.2.0", 0)

	path, err := r.Save(dir)
	require.NoError(t, err)
	assert.Contains(t, path, "wipe_RF8M33XYZ_")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, r.RunID, got.RunID)
	assert.Equal(t, r.BytesWritten, got.BytesWritten)
	assert.Len(t, got.Passes, 2)
}

func TestSaveOmitsEmptyWarning(t *testing.T) {
	r := New(sampleResult(), device.Handle{Serial: "RF8M33XYZ"}, "1.2.0", 0)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cleanup_warning")
	assert.NotContains(t, string(data), `"cause"`)
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/reports"
	r := New(sampleResult(), device.Handle{Serial: "RF8M33XYZ"}, "1.2.0", 7)

	path, err := r.Save(dir)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
