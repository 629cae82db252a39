package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fetchbot",
	Short: "Download PDF and media links sent over Telegram",
	Long: "fetchbot extracts PDF and media links from chat messages or text files and downloads\n" +
		"them one at a time into a per-chat folder, reporting progress as it goes.",
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
