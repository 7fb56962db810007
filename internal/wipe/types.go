package wipe

import "time"

// State is the engine's lifecycle state. Completed, Aborted and Failed are
// terminal; everything in between advances strictly forward.
type State string

const (
	StateIdle        State = "IDLE"
	StateValidating  State = "VALIDATING"
	StateSizing      State = "SIZING"
	StatePassRunning State = "PASS_RUNNING"
	StateSyncing     State = "SYNCING"
	StateDeleting    State = "DELETING"
	StateCompleted   State = "COMPLETED"
	StateAborted     State = "ABORTED"
	StateFailed      State = "FAILED"
)

// Phase labels a progress event for the consumer.
type Phase string

const (
	PhaseWriting      Phase = "Writing"
	PhaseSyncing      Phase = "Syncing"
	PhaseDeleting     Phase = "Deleting"
	PhasePassComplete Phase = "PassComplete"
	PhaseWipeComplete Phase = "WipeComplete"
	PhaseAborted      Phase = "Aborted"
)

// ProgressEvent is one entry of the ordered event sequence the engine
// exposes to its consumer (UI or log). Within a pass, BytesWritten is
// monotonically non-decreasing and never exceeds TargetBytes.
type ProgressEvent struct {
	Pass         int
	TotalPasses  int
	BytesWritten int64
	TargetBytes  int64
	Phase        Phase
	Message      string
}

// Consumer receives progress events in emission order.
type Consumer func(ProgressEvent)

// PassSummary records one finished (or truncated) pass for the run report.
type PassSummary struct {
	Pass         int           `json:"pass"`
	BytesWritten int64         `json:"bytes_written"`
	TargetBytes  int64         `json:"target_bytes"`
	Duration     time.Duration `json:"duration"`
	Truncated    bool          `json:"truncated"`
}

// Result is the terminal outcome of one wipe session. It always identifies
// which pass (if any) was in progress and how much was written, so the
// operator can decide whether to retry, check the cable, or free space.
type Result struct {
	RunID          string
	Serial         string
	Mode           Mode
	TotalPasses    int
	State          State
	Passes         []PassSummary
	CurrentPass    int // pass in progress when a terminal state was reached, 0 if none
	BytesWritten   int64
	StartTime      time.Time
	EndTime        time.Time
	Cause          string
	CleanupWarning string
}
