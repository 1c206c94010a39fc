// Package cli implements the tarxiv command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tarxiv/tarxiv/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tarxiv",
	Short: "Aggregate transient survey data with provenance",
	Long: `tarxiv monitors Transient Name Server notices and aggregates the
announced objects across TNS, ATLAS, ZTF and ASAS-SN into provenance-tracked
records in a local document store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
