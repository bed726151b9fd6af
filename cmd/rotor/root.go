package main

import (
	"github.com/spf13/cobra"
)

// Global flags
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rotor",
	Short: "Rotor - credential-rotating proxy for the Gemini API",
	Long: `Rotor accepts Gemini API requests from trusted clients and forwards them
upstream with a key drawn from a managed pool. Keys with recent failures are
tried last, failed attempts fail over to the next key, and streamed responses
are relayed as they arrive.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "rotor.yaml", "config file path (missing file means defaults)")
}
