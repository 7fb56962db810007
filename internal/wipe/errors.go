package wipe

import "errors"

var (
	// ErrInvalidConfig is returned when a wipe configuration is out of
	// bounds. Invalid configs are rejected outright, never clamped.
	ErrInvalidConfig = errors.New("invalid wipe configuration")

	// ErrInsufficientSpace is returned when the device does not have enough
	// free space for the planned pass. Checked before anything is written.
	ErrInsufficientSpace = errors.New("insufficient space on device")

	// ErrWriteFailed is returned when the remote write protocol reports a
	// failure or the write command is rejected.
	ErrWriteFailed = errors.New("remote write failed")

	// ErrDeviceLost is returned when the device stops responding mid-
	// operation (USB disconnect, adb daemon death). Cleanup is still
	// attempted, and fails gracefully if the device is truly gone.
	ErrDeviceLost = errors.New("device lost")

	// ErrAborted is returned when the operator cancels a running wipe.
	ErrAborted = errors.New("wipe aborted")

	// ErrCleanupFailed marks a failed temp-directory removal. It is always
	// a warning: it never overrides the outcome of the wipe itself.
	ErrCleanupFailed = errors.New("cleanup failed")
)
