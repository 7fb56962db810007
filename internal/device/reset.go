package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Settings intents that can land on (or near) the factory reset screen,
// most specific first. Many are blocked by vendor builds, so each is tried
// and permission denials fall through to the next.
var resetIntents = []struct {
	action string
	name   string
}{
	{"android.settings.MASTER_CLEAR", "Factory Reset"},
	{"android.settings.BACKUP_AND_RESET_SETTINGS", "Backup & Reset"},
	{"android.settings.PRIVACY_SETTINGS", "Privacy Settings"},
	{"android.settings.INTERNAL_STORAGE_SETTINGS", "Storage Settings"},
}

// OpenFactoryReset opens the closest reachable reset settings screen on the
// device and returns the name of the screen it managed to open. The actual
// reset is always confirmed by the operator on the device itself.
func OpenFactoryReset(ctx context.Context, bridge Bridge, serial string, log zerolog.Logger) (string, error) {
	for _, intent := range resetIntents {
		out, err := bridge.Shell(ctx, serial, "am start -a "+intent.action)
		if err != nil {
			log.Debug().Err(err).Str("intent", intent.action).Msg("reset intent failed")
			continue
		}
		if intentRejected(out) {
			log.Debug().Str("intent", intent.action).Msg("reset intent rejected by device")
			continue
		}
		log.Info().Str("serial", serial).Str("screen", intent.name).Msg("reset screen opened")
		return intent.name, nil
	}

	// Last resort: the main settings app.
	out, err := bridge.Shell(ctx, serial, "am start -n com.android.settings/.Settings")
	if err != nil || intentRejected(out) {
		return "", fmt.Errorf("could not open settings on %s: navigate to the reset screen manually", serial)
	}
	return "Settings", nil
}

// RevokeDebugging disables USB debugging on the device so the bridge can no
// longer reach it. Some builds require root for this and reject it.
func RevokeDebugging(ctx context.Context, bridge Bridge, serial string) error {
	if _, err := bridge.Shell(ctx, serial, "settings put global adb_enabled 0"); err != nil {
		return fmt.Errorf("revoking usb debugging on %s: %w", serial, err)
	}
	return nil
}

func intentRejected(out string) bool {
	return strings.Contains(out, "Permission Denial") ||
		strings.Contains(out, "SecurityException") ||
		strings.Contains(out, "Error:")
}
