package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OnlyParams/android-secure-wipe/internal/device"
)

var (
	resetFinal     bool
	resetRevokeADB bool
)

const (
	resetPollInterval = 2 * time.Second
	resetPollTimeout  = 2 * time.Minute
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Open the factory reset screen on the device",
	Long: `Opens the device's factory reset settings screen and prints the steps
to finish the reset by hand. Android does not allow a reset to be
triggered over adb without device-owner rights, so the final taps stay
with the operator.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetFinal, "final", false, "wait for the reset to start and print the handover checklist")
	resetCmd.Flags().BoolVar(&resetRevokeADB, "revoke-adb", false, "disable USB debugging on the device afterwards")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bridge := newBridge()
	session := newSession(bridge)

	h, err := session.Validate(ctx, serial)
	if err != nil {
		return err
	}

	if resetRevokeADB {
		// Before the reset screen: once the reset starts the bridge is gone.
		if err := device.RevokeDebugging(ctx, bridge, h.Serial); err != nil {
			log.Warn().Err(err).Msg("could not disable USB debugging")
			fmt.Println("Could not disable USB debugging; turn it off in Developer options.")
		} else {
			fmt.Println("USB debugging disabled.")
		}
	}

	screen, err := device.OpenFactoryReset(ctx, bridge, h.Serial, log)
	if err != nil {
		return err
	}
	fmt.Printf("Opened %s on %s\n\n", screen, h.Serial)

	fmt.Println("Finish the reset on the device:")
	fmt.Print(formatInstructions(device.Instructions(h.Brand, h.Model)))

	if resetFinal {
		fmt.Println()
		fmt.Println("Waiting for the reset to start (Ctrl-C to stop waiting)...")
		if waitForDisconnect(ctx, session, h.Serial, resetPollInterval, resetPollTimeout) {
			fmt.Println("Device went offline, reset in progress.")
		} else {
			fmt.Println("Device is still connected; finish the reset on its screen.")
		}

		fmt.Println()
		fmt.Println("Before handing the device over:")
		fmt.Println("  - confirm the reset completed and the setup wizard appears")
		fmt.Println("  - remove any SIM and SD cards")
		fmt.Println("  - keep the wipe report for your records")
	}
	return nil
}

// formatInstructions indents the steps verbatim: they carry their own
// numbering and notes.
func formatInstructions(steps []string) string {
	var b strings.Builder
	for _, step := range steps {
		if step == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("  " + step + "\n")
	}
	return b.String()
}

// connectionChecker is the slice of device.Session the disconnect poll needs.
type connectionChecker interface {
	Connected(ctx context.Context, serial string) (bool, error)
}

// waitForDisconnect polls until the device drops off the bridge, which is
// how a started factory reset announces itself. Returns false if the device
// is still connected when the timeout or the context runs out.
func waitForDisconnect(ctx context.Context, checker connectionChecker, serial string, interval, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			connected, err := checker.Connected(ctx, serial)
			if err != nil {
				log.Debug().Err(err).Msg("connection poll failed")
				continue
			}
			if !connected {
				return true
			}
		}
	}
}
