package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration the same way "rotor run" does, including the .env
file and environment overrides, and report every invalid field.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "✓ Configuration valid")
		fmt.Fprintf(out, "  listen:      %s%s\n", cfg.Proxy.ListenAddress, cfg.Proxy.PathPrefix)
		fmt.Fprintf(out, "  upstream:    %s\n", cfg.Upstream.BaseURL)
		fmt.Fprintf(out, "  storage:     %s\n", cfg.Storage.Backend)
		fmt.Fprintf(out, "  user keys:   %d\n", len(cfg.Auth.UserKeys))
		fmt.Fprintf(out, "  pool keys:   %d to add, %d to remove\n", len(cfg.Bootstrap.Keys), len(cfg.Bootstrap.RemoveKeys))
		if cfg.Bootstrap.KeysFile != "" {
			fmt.Fprintf(out, "  keys file:   %s (watch: %t)\n", cfg.Bootstrap.KeysFile, cfg.Bootstrap.Watch)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
