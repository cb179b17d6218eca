package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"squish/internal/processor"
	"squish/internal/tui"
)

var scanNoRecursive bool

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Report formats, quality estimates, and planned actions without converting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		warnings := newWarningLog(true)
		items, err := processor.Collect(root, !scanNoRecursive, warnings.add)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stdout, "No convertible files found.")
			return nil
		}

		opts := processor.Options{
			Mode:         processor.ModeScan,
			Recursive:    !scanNoRecursive,
			MatchQuality: true,
			Workers:      runtime.NumCPU(),
		}
		_, outcomes := processor.Run(items, opts, nil, nil, warnings.add)

		for i, o := range outcomes {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			fmt.Fprintf(os.Stdout, "%s\n", scanFileStyle.Render(o.Path))
			if o.Scan == nil {
				fmt.Fprintf(os.Stdout, "  %s\n", scanWarnStyle.Render("unreadable: "+o.Reason))
				continue
			}
			printReport(o.Scan)
		}

		return nil
	},
}

func printReport(r *processor.ScanReport) {
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(os.Stdout, "  %s %s\n", scanLabelStyle.Render(label+":"), scanValueStyle.Render(value))
	}

	line("format", r.Format)
	if r.Quality > 0 {
		line("estimated quality", fmt.Sprintf("%.0f", r.Quality))
	}
	if r.BPP > 0 {
		line("bits per pixel", fmt.Sprintf("%.3f", r.BPP))
	}
	if r.CaptureDate != "" {
		line("captured", r.CaptureDate)
	}
	if r.CameraModel != "" {
		line("camera", r.CameraModel)
	}

	action := r.Action
	if r.Reason != "" {
		action += " (" + r.Reason + ")"
	}
	style := scanActionStyle
	if r.Action == "skip" {
		style = scanDimStyle
	}
	fmt.Fprintf(os.Stdout, "  %s %s\n", scanLabelStyle.Render("action:"), style.Render(action))
	if r.Action == "convert lossy" {
		line("target parameter", fmt.Sprintf("%.1f", r.Param))
	}
}

var (
	scanFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	scanLabelStyle  = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanValueStyle  = lipgloss.NewStyle().Foreground(tui.ColorInk)
	scanActionStyle = lipgloss.NewStyle().Foreground(tui.ColorSuccess)
	scanDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	scanWarnStyle   = lipgloss.NewStyle().Foreground(tui.ColorWarn)
)

func init() {
	scanCmd.Flags().BoolVar(&scanNoRecursive, "no-recursive", false, "do not descend into subdirectories")
	rootCmd.AddCommand(scanCmd)
}
