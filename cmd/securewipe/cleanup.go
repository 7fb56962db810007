package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OnlyParams/android-secure-wipe/internal/wipe"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover temporary wipe data from the device",
	Long: `Removes temporary directories left behind by wipe runs that were
interrupted before their cleanup could finish, for example when the cable
was pulled mid-run.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bridge := newBridge()
	session := newSession(bridge)

	h, err := session.Validate(ctx, serial)
	if err != nil {
		return err
	}

	if err := wipe.CleanupLeftovers(ctx, bridge, h.Serial, cfg.ADB.Mount, cfg.ADB.TempPrefix); err != nil {
		return err
	}
	fmt.Printf("Removed leftover wipe data under %s/%s* on %s\n", cfg.ADB.Mount, cfg.ADB.TempPrefix, h.Serial)
	return nil
}
