package device

import "errors"

var (
	// ErrNoDeviceFound is returned when the bridge reports no devices at all.
	ErrNoDeviceFound = errors.New("no device found")

	// ErrDeviceNotFound is returned when the requested identifier is not in
	// the device list.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceNotAuthorized is returned when the device is attached but not
	// in an authorized, ready state.
	ErrDeviceNotAuthorized = errors.New("device not authorized")

	// ErrAmbiguousDevice is returned when more than one device is attached
	// and no identifier was supplied. Picking one silently risks wiping the
	// wrong device, so this is always a hard error.
	ErrAmbiguousDevice = errors.New("multiple devices attached, device identifier required")

	// ErrInvalidIdentifier is returned when an identifier contains characters
	// that are never part of a device serial.
	ErrInvalidIdentifier = errors.New("invalid device identifier")
)
