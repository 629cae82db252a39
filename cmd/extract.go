package cmd

import (
	"fmt"

	"fetchbot/pkg/config"
	"fetchbot/pkg/links"

	"github.com/spf13/cobra"
)

var extractClassify bool

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Print the downloadable links found in a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		text, err := readLinkInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		extractor := links.NewExtractor(cfg.Download.Extensions, cfg.Download.TrustedDomains)
		out := cmd.OutOrStdout()
		for _, url := range extractor.Extract(text) {
			if extractClassify {
				fmt.Fprintf(out, "%s\t%s\n", extractor.Classify(url), url)
				continue
			}
			fmt.Fprintln(out, url)
		}

		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractClassify, "classify", false, "prefix each link with why it matched (extension or domain)")
	rootCmd.AddCommand(extractCmd)
}
