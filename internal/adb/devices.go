package adb

import "strings"

// Device state strings as printed by `adb devices`.
const (
	StateDevice       = "device"
	StateUnauthorized = "unauthorized"
	StateOffline      = "offline"
)

// Device is one row of `adb devices` output.
type Device struct {
	Serial string
	State  string
}

// Ready reports whether the device is authorized and addressable.
func (d Device) Ready() bool {
	return d.State == StateDevice
}

// parseDevices parses `adb devices` output. The first line is the
// "List of devices attached" header; every following non-empty line is
// "<serial>\t<state>". Daemon startup noise ("* daemon ...") is skipped.
func parseDevices(out string) []Device {
	var devices []Device
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}
	return devices
}
