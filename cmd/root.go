package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "squish",
	Short: "squish 🗜 - recompress media into modern formats",
	Long:  "squish 🗜 is a quality-aware batch converter that recompresses images to JPEG XL and video to HEVC, keeping only outputs that are smaller and verified intact.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
}
