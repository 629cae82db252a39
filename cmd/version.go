package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fetchbot version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		version := rootCmd.Version
		if version == "" {
			version = "dev"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetchbot %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
