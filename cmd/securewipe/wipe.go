package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OnlyParams/android-secure-wipe/internal/reporting"
	"github.com/OnlyParams/android-secure-wipe/internal/storage"
	"github.com/OnlyParams/android-secure-wipe/internal/wipe"
)

var (
	wipeMode   string
	wipePasses int
	wipeChunk  string
	wipeFill   int
	wipeDryRun bool
	wipeYes    bool
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Overwrite the device's free space",
	Long: `Fills the free space of the device's user-data partition with random
data in one or more passes, flushing and deleting each pass. Quick mode
writes a fixed chunk per pass; full mode fills most of the available space.`,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().StringVarP(&wipeMode, "mode", "m", "", "wipe mode: quick or full (default from config)")
	wipeCmd.Flags().IntVarP(&wipePasses, "passes", "p", 0, "number of overwrite passes, 1-20 (default from config)")
	wipeCmd.Flags().StringVar(&wipeChunk, "chunk-size", "", "chunk written per pass in quick mode, e.g. 512M, 2G")
	wipeCmd.Flags().IntVar(&wipeFill, "fill-percent", 0, "percent of available space written per pass in full mode")
	wipeCmd.Flags().BoolVarP(&wipeDryRun, "dry-run", "n", false, "validate and show the plan without writing anything")
	wipeCmd.Flags().BoolVarP(&wipeYes, "yes", "y", false, "skip the confirmation prompt")
}

// wipeConfig layers flags over the config file defaults.
func wipeConfig() (wipe.Config, error) {
	mode := cfg.Wipe.Mode
	if wipeMode != "" {
		mode = wipeMode
	}
	passes := cfg.Wipe.Passes
	if wipePasses != 0 {
		passes = wipePasses
	}
	chunkStr := cfg.Wipe.ChunkSize
	if wipeChunk != "" {
		chunkStr = wipeChunk
	}
	chunk, err := storage.ParseSize(chunkStr)
	if err != nil {
		return wipe.Config{}, fmt.Errorf("%w: chunk size %q: %s", wipe.ErrInvalidConfig, chunkStr, err)
	}
	fill := cfg.Wipe.FillPercent
	if wipeFill != 0 {
		fill = wipeFill
	}

	c := wipe.Config{
		Mode:           wipe.Mode(mode),
		Passes:         passes,
		ChunkSizeBytes: chunk,
		FillPercent:    fill,
	}
	return c, c.Validate()
}

func newEngine(bridge wipe.Bridge, probe wipe.Prober, devices wipe.Validator) (*wipe.Engine, error) {
	timeout, err := cfg.OutputTimeout()
	if err != nil {
		return nil, err
	}
	return wipe.NewEngine(bridge, probe, devices, nil, wipe.Options{
		Mount:          cfg.ADB.Mount,
		TempPrefix:     cfg.ADB.TempPrefix,
		IncrementBytes: int64(cfg.Wipe.IncrementMB) * storage.MiB,
		OutputTimeout:  timeout,
	}, log), nil
}

func runWipe(cmd *cobra.Command, args []string) error {
	wcfg, err := wipeConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	bridge := newBridge()
	session := newSession(bridge)
	probe := storage.NewProbe(bridge, cfg.ADB.Mount, log)
	eng, err := newEngine(bridge, probe, session)
	if err != nil {
		return err
	}

	plan, err := eng.Plan(ctx, serial, wcfg)
	if err != nil {
		return err
	}

	h := plan.Device
	fmt.Printf("Device:    %s", h.Serial)
	if h.Model != "" {
		fmt.Printf(" (%s %s, Android %s)", h.Brand, h.Model, h.AndroidVersion)
	}
	fmt.Println()
	fmt.Printf("Storage:   %s free of %s on %s\n",
		storage.FormatBytes(plan.Snapshot.AvailableBytes),
		storage.FormatBytes(plan.Snapshot.TotalBytes), cfg.ADB.Mount)
	fmt.Printf("Plan:      %s mode, %d pass(es), first pass writes %s\n",
		plan.Mode, plan.TotalPasses, storage.FormatBytes(plan.FirstPass.TargetBytes))

	if wipeDryRun {
		fmt.Println("Dry run: nothing was written.")
		return nil
	}

	if !wipeYes && !confirm(fmt.Sprintf("Overwrite free space on %s?", h.Serial)) {
		fmt.Println("Cancelled.")
		return nil
	}

	res, runErr := eng.Run(ctx, h.Serial, wcfg, printProgress)
	fmt.Println()
	printResult(res)

	if cfg.Reporting.Enabled {
		report := reporting.New(res, h, Version, exitCodeFor(runErr))
		if path, err := report.Save(cfg.Reporting.LocalPath); err != nil {
			log.Warn().Err(err).Msg("report not saved")
		} else {
			fmt.Printf("Report:    %s\n", path)
		}
	}

	return runErr
}

func confirm(question string) bool {
	fmt.Printf("%s (y/N): ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

// printProgress renders one updating line per pass.
func printProgress(ev wipe.ProgressEvent) {
	switch ev.Phase {
	case wipe.PhaseWriting:
		pct := int64(0)
		if ev.TargetBytes > 0 {
			pct = ev.BytesWritten * 100 / ev.TargetBytes
		}
		fmt.Printf("\rPass %d/%d: writing %s of %s (%d%%)   ",
			ev.Pass, ev.TotalPasses,
			storage.FormatBytes(ev.BytesWritten), storage.FormatBytes(ev.TargetBytes), pct)
		if ev.Message != "" {
			fmt.Printf("\n  %s\n", ev.Message)
		}
	case wipe.PhaseSyncing:
		fmt.Printf("\rPass %d/%d: flushing to flash...           ", ev.Pass, ev.TotalPasses)
	case wipe.PhaseDeleting:
		fmt.Printf("\rPass %d/%d: deleting pass data...          ", ev.Pass, ev.TotalPasses)
	case wipe.PhasePassComplete:
		fmt.Printf("\rPass %d/%d: done, %s written              \n",
			ev.Pass, ev.TotalPasses, storage.FormatBytes(ev.BytesWritten))
	case wipe.PhaseAborted:
		fmt.Printf("\n%s\n", ev.Message)
	}
}

func printResult(res *wipe.Result) {
	fmt.Printf("Result:    %s, %s written in %s\n",
		res.State, storage.FormatBytes(res.BytesWritten),
		res.EndTime.Sub(res.StartTime).Round(time.Second))
	if res.Cause != "" {
		fmt.Printf("Cause:     %s\n", res.Cause)
	}
	if res.CleanupWarning != "" {
		fmt.Printf("Warning:   temporary data may remain on the device: %s\n", res.CleanupWarning)
		fmt.Println("           run 'securewipe cleanup' once the device is back online")
	}
}
