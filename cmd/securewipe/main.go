// securewipe overwrites free space on an Android device over adb so that
// previously deleted data cannot be recovered, typically after a factory
// reset and before the device changes hands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OnlyParams/android-secure-wipe/internal/adb"
	"github.com/OnlyParams/android-secure-wipe/internal/config"
	"github.com/OnlyParams/android-secure-wipe/internal/device"
	"github.com/OnlyParams/android-secure-wipe/internal/logging"
	"github.com/OnlyParams/android-secure-wipe/internal/wipe"
)

const (
	Version = "1.0.0"
	AppName = "securewipe"
)

// Exit codes, one per failure class, so batch scripts can branch on them.
const (
	ExitSuccess           = 0
	ExitError             = 1
	ExitInvalidConfig     = 2
	ExitNoDevice          = 3
	ExitAmbiguousDevice   = 4
	ExitDeviceUnavailable = 5
	ExitInsufficientSpace = 6
	ExitAborted           = 7
	ExitDeviceLost        = 8
)

var (
	cfg        *config.Config
	log        zerolog.Logger
	configPath string
	verbose    bool
	adbPath    string
	serial     string
)

var rootCmd = &cobra.Command{
	Use:     "securewipe",
	Short:   "Secure free-space overwrite for Android devices over adb",
	Long:    "securewipe fills the free space of an Android device's user-data partition with random data, flushes it, and deletes it, making previously deleted files unrecoverable.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if adbPath != "" {
			cfg.ADB.Binary = adbPath
		}
		log = logging.New(logging.Options{
			Level:      cfg.Logging.Level,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Verbose:    verbose,
		})
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "securewipe.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console output")
	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "", "path to the adb binary (default from config or PATH)")
	rootCmd.PersistentFlags().StringVarP(&serial, "device", "d", "", "device serial (required when several devices are attached)")

	rootCmd.AddCommand(wipeCmd, devicesCmd, infoCmd, cleanupCmd, resetCmd)
}

// signalContext cancels on Ctrl-C or SIGTERM so a running wipe aborts
// cooperatively: the engine flushes and removes what it wrote before the
// process exits.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Warn().Str("signal", s.String()).Msg("interrupt received, aborting")
		fmt.Fprintf(os.Stderr, "\ninterrupt received, cleaning up...\n")
		cancel()
	}()
	return ctx, cancel
}

func newBridge() *adb.Client {
	return adb.NewClient(cfg.ADB.Binary, nil, log)
}

func newSession(bridge *adb.Client) *device.Session {
	return device.NewSession(bridge, log)
}

// exitCodeFor maps an error to the documented exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, wipe.ErrInvalidConfig):
		return ExitInvalidConfig
	case errors.Is(err, device.ErrNoDeviceFound):
		return ExitNoDevice
	case errors.Is(err, device.ErrAmbiguousDevice):
		return ExitAmbiguousDevice
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, device.ErrDeviceNotAuthorized),
		errors.Is(err, device.ErrInvalidIdentifier):
		return ExitDeviceUnavailable
	case errors.Is(err, wipe.ErrInsufficientSpace):
		return ExitInsufficientSpace
	case errors.Is(err, wipe.ErrAborted):
		return ExitAborted
	case errors.Is(err, wipe.ErrDeviceLost):
		return ExitDeviceLost
	default:
		return ExitError
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}
