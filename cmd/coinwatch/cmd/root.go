// Package cmd implements the CLI commands for coinwatch.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "coinwatch",
	Short: "Monitor cryptocurrency prices and fire alerts",
	Long: "A service that samples cryptocurrency prices on a fixed cadence, " +
		"stores a time series, detects short-term price surges, and fires " +
		"user-registered price-target alerts.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
