package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OnlyParams/android-secure-wipe/internal/storage"
)

var devicesVerbose bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices visible to adb",
	RunE:  runDevices,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the target device and its free space",
	RunE:  runInfo,
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesVerbose, "details", false, "query model and Android version for each ready device")
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bridge := newBridge()

	if v, err := bridge.Version(ctx); err == nil {
		fmt.Println(v)
	}

	devs, err := bridge.Devices(ctx)
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Println("No devices attached.")
		return nil
	}

	session := newSession(bridge)
	for _, d := range devs {
		line := fmt.Sprintf("%-24s %s", d.Serial, d.State)
		if devicesVerbose && d.Ready() {
			if h, err := session.Validate(ctx, d.Serial); err == nil && h.Model != "" {
				line += fmt.Sprintf("  %s %s (Android %s)", h.Brand, h.Model, h.AndroidVersion)
			}
		}
		fmt.Println(line)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bridge := newBridge()
	session := newSession(bridge)

	h, err := session.Validate(ctx, serial)
	if err != nil {
		return err
	}

	fmt.Printf("Serial:    %s\n", h.Serial)
	if h.Model != "" {
		fmt.Printf("Model:     %s %s\n", h.Brand, h.Model)
		fmt.Printf("Android:   %s\n", h.AndroidVersion)
	}

	probe := storage.NewProbe(bridge, cfg.ADB.Mount, log)
	snap, err := probe.Snapshot(ctx, h.Serial)
	if err != nil {
		return err
	}
	fmt.Printf("Mount:     %s\n", cfg.ADB.Mount)
	fmt.Printf("Total:     %s\n", storage.FormatBytes(snap.TotalBytes))
	fmt.Printf("Available: %s\n", storage.FormatBytes(snap.AvailableBytes))
	return nil
}
