// Package device validates that a wipe target is present, authorized and
// unambiguous before anything is written to it.
package device

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OnlyParams/android-secure-wipe/internal/adb"
)

const maxIdentifierLen = 64

// Bridge is the slice of the adb client this package needs.
type Bridge interface {
	Devices(ctx context.Context) ([]adb.Device, error)
	Getprop(ctx context.Context, serial, prop string) (string, error)
	Shell(ctx context.Context, serial, command string) (string, error)
}

// Handle identifies a validated device. All later operations are scoped to
// its serial; the serial never changes once a session starts.
type Handle struct {
	Serial         string
	Model          string
	Brand          string
	AndroidVersion string
}

// Session resolves device identifiers against the bridge. It is read-only:
// validation never issues anything beyond list and property queries.
type Session struct {
	bridge Bridge
	log    zerolog.Logger
}

func NewSession(bridge Bridge, log zerolog.Logger) *Session {
	return &Session{bridge: bridge, log: log}
}

// Validate resolves serial to exactly one authorized device. An empty serial
// is accepted only when exactly one device is attached; with two or more
// devices the identifier is mandatory and its absence is ErrAmbiguousDevice.
func (s *Session) Validate(ctx context.Context, serial string) (Handle, error) {
	if serial != "" {
		if err := SanitizeIdentifier(serial); err != nil {
			return Handle{}, err
		}
	}

	devices, err := s.bridge.Devices(ctx)
	if err != nil {
		return Handle{}, fmt.Errorf("listing devices: %w", err)
	}
	if len(devices) == 0 {
		return Handle{}, ErrNoDeviceFound
	}

	var target adb.Device
	if serial == "" {
		if len(devices) > 1 {
			return Handle{}, fmt.Errorf("%w (%d attached)", ErrAmbiguousDevice, len(devices))
		}
		target = devices[0]
	} else {
		found := false
		for _, d := range devices {
			if d.Serial == serial {
				target = d
				found = true
				break
			}
		}
		if !found {
			return Handle{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
		}
	}

	if !target.Ready() {
		return Handle{}, fmt.Errorf("%w: %s is %s", ErrDeviceNotAuthorized, target.Serial, target.State)
	}

	handle := Handle{Serial: target.Serial}
	s.describe(ctx, &handle)

	s.log.Info().
		Str("serial", handle.Serial).
		Str("model", handle.Model).
		Str("brand", handle.Brand).
		Msg("device validated")

	return handle, nil
}

// Connected reports whether the device is still visible and ready, used for
// polling after a factory reset.
func (s *Session) Connected(ctx context.Context, serial string) (bool, error) {
	devices, err := s.bridge.Devices(ctx)
	if err != nil {
		return false, fmt.Errorf("listing devices: %w", err)
	}
	for _, d := range devices {
		if d.Serial == serial {
			return d.Ready(), nil
		}
	}
	return false, nil
}

// describe fills in model, brand and OS version. Best effort: a locked or
// slow device leaves the fields empty rather than failing validation.
func (s *Session) describe(ctx context.Context, h *Handle) {
	props := []struct {
		name string
		dst  *string
	}{
		{"ro.product.model", &h.Model},
		{"ro.product.brand", &h.Brand},
		{"ro.build.version.release", &h.AndroidVersion},
	}
	for _, p := range props {
		v, err := s.bridge.Getprop(ctx, h.Serial, p.name)
		if err != nil {
			s.log.Warn().Err(err).Str("prop", p.name).Msg("device property unavailable")
			continue
		}
		*p.dst = v
	}
}

// SanitizeIdentifier rejects identifiers that could never be a device serial.
// Serials are alphanumeric plus ':', '.', '-' and '_' (e.g. "emulator-5554",
// "192.168.1.1:5555", "RF8M123456") and the check keeps them from ever
// reaching a shell command line as anything else.
func SanitizeIdentifier(serial string) error {
	if serial == "" || len(serial) > maxIdentifierLen {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, serial)
	}
	for _, r := range serial {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ':' || r == '.' || r == '-' || r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, serial)
		}
	}
	return nil
}
