package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"squish/internal/processor"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the external tools squish depends on",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		processor.Diagnose(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
