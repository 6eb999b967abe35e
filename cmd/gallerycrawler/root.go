package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "gallerycrawler",
		Short: "A paced crawler that downloads one gallery image per advance request.",
		Long: `gallerycrawler walks a listing site's pages, opens a random gallery and
downloads a random image from it each time it is told to advance, either
manually or on an auto-play timer.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newRunCmd(&cfgFile))
	return cmd
}
