package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"squish/internal/processor"
	"squish/internal/tui"
)

var (
	convertInPlace         bool
	convertSkipHealthCheck bool
	convertNoRecursive     bool
	convertForceLossless   bool
	convertMatchQuality    bool
	convertExplore         bool
	convertVerbose         bool
	convertDryRun          bool
	convertJobs            int
	convertDistance        float64
	convertEffort          int
)

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <path>",
	Short: "Recompress images to JPEG XL and video to HEVC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		if err := processor.CheckSafe(root); err != nil {
			return err
		}

		warnings := newWarningLog(convertVerbose)
		items, err := processor.Collect(root, !convertNoRecursive, warnings.add)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stdout, "No convertible files found.")
			return nil
		}

		hasVideo, hasImage := false, false
		for _, item := range items {
			if item.Media == processor.MediaVideo {
				hasVideo = true
			} else {
				hasImage = true
			}
		}
		if !convertDryRun {
			if err := processor.CheckDeps(hasVideo, hasImage, convertSkipHealthCheck, convertExplore, warnings.add); err != nil {
				return err
			}
		}

		opts := processor.Options{
			Mode:            processor.ModeConvert,
			InPlace:         convertInPlace,
			Recursive:       !convertNoRecursive,
			DryRun:          convertDryRun,
			Verbose:         convertVerbose,
			ForceLossless:   convertForceLossless,
			MatchQuality:    convertMatchQuality,
			Explore:         convertExplore,
			SkipHealthCheck: convertSkipHealthCheck,
			Workers:         convertJobs,
			Distance:        convertDistance,
			Effort:          convertEffort,
		}

		var cancel atomic.Bool
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)
		go func() {
			<-sigs
			cancel.Store(true)
			fmt.Fprintln(os.Stderr, "\nStopping after current files...")
		}()

		updates := make(chan processor.ProgressUpdate, 64)
		model := tui.NewModel(updates, func() { cancel.Store(true) })
		program := tea.NewProgram(model)

		uiDone := make(chan struct{})
		go func() {
			_, _ = program.Run()
			close(uiDone)
			// If the display died early the workers still send
			// deltas; keep the channel moving until Run closes it.
			for range updates {
			}
		}()

		stats, outcomes := processor.Run(items, opts, &cancel, updates, warnings.add)

		close(updates)
		<-uiDone

		warnings.flush(os.Stderr)
		if convertVerbose {
			printOutcomes(outcomes)
		}
		printSummary(stats, convertDryRun)

		if stats.Failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// defaultJobs keeps the default pool small; every worker runs a full
// external encoder which is itself multithreaded.
func defaultJobs() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

func printOutcomes(outcomes []processor.Outcome) {
	for _, o := range outcomes {
		if o.Reason == "" {
			fmt.Fprintf(os.Stdout, "%-8s %s\n", o.Status, o.Path)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-8s %s (%s)\n", o.Status, o.Path, o.Reason)
	}
}

func printSummary(stats *processor.Stats, dryRun bool) {
	s := stats.Snapshot()

	reduction := "n/a"
	if s.BytesIn > 0 {
		reduction = fmt.Sprintf("%.1f%%", 100*(1-float64(s.BytesOut)/float64(s.BytesIn)))
	}
	healthRate := "n/a"
	if checked := s.HealthPassed + s.HealthFailed; checked > 0 {
		healthRate = fmt.Sprintf("%.1f%%", 100*float64(s.HealthPassed)/float64(checked))
	}

	rows := []tui.SummaryRow{
		{Label: "Files found", Value: fmt.Sprintf("%d", s.Total)},
		{Label: "Processed", Value: fmt.Sprintf("%d", s.Processed)},
		{Label: "Converted", Value: fmt.Sprintf("%d", s.Success)},
		{Label: "Skipped", Value: fmt.Sprintf("%d", s.Skipped)},
		{Label: "Failed", Value: fmt.Sprintf("%d", s.Failed)},
		{Label: "Input size", Value: tui.FormatBytes(s.BytesIn)},
		{Label: "Output size", Value: tui.FormatBytes(s.BytesOut)},
		{Label: "Reduction", Value: reduction},
		{Label: "Health checks passed", Value: healthRate},
		{Label: "Elapsed", Value: time.Since(s.Start).Round(time.Second).String()},
	}
	fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
	if dryRun {
		fmt.Fprintln(os.Stdout, "Dry run: no files were written.")
	}
}

// warningLog buffers warnings while the progress display owns the
// terminal, unless verbose mode wants them immediately.
type warningLog struct {
	mu        sync.Mutex
	immediate bool
	buffered  []string
}

func newWarningLog(immediate bool) *warningLog {
	return &warningLog{immediate: immediate}
}

func (w *warningLog) add(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.immediate {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		return
	}
	w.buffered = append(w.buffered, msg)
}

func (w *warningLog) flush(out *os.File) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, msg := range w.buffered {
		fmt.Fprintf(out, "warning: %s\n", msg)
	}
	w.buffered = nil
}

func init() {
	convertCmd.Flags().BoolVarP(&convertInPlace, "in-place", "i", false, "replace originals after successful conversion")
	convertCmd.Flags().BoolVar(&convertSkipHealthCheck, "skip-health-check", false, "skip decode verification of outputs")
	convertCmd.Flags().BoolVar(&convertNoRecursive, "no-recursive", false, "do not descend into subdirectories")
	convertCmd.Flags().BoolVar(&convertForceLossless, "force-lossless", false, "convert lossy sources losslessly even if output grows")
	convertCmd.Flags().BoolVar(&convertMatchQuality, "match-quality", false, "estimate source quality and match it")
	convertCmd.Flags().BoolVar(&convertExplore, "explore", false, "binary-search encoder parameters for the best size")
	convertCmd.Flags().BoolVarP(&convertVerbose, "verbose", "v", false, "report per-file results")
	convertCmd.Flags().BoolVar(&convertDryRun, "dry-run", false, "analyze and plan without writing anything")
	convertCmd.Flags().IntVarP(&convertJobs, "jobs", "j", defaultJobs(), "number of parallel workers")
	convertCmd.Flags().Float64VarP(&convertDistance, "distance", "d", 1.0, "cjxl butteraugli distance for lossy sources")
	convertCmd.Flags().IntVarP(&convertEffort, "effort", "e", 7, "cjxl encode effort (1-9)")

	rootCmd.AddCommand(convertCmd)
}
