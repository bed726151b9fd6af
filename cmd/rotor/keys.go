package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/rotor/pkg/cli"
	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/telemetry/logging"
)

var keysFlags struct {
	output    string
	sortBy    string
	sortOrder string
	reveal    bool
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the upstream credential pool",
	Long: `Inspect and change the credential pool directly in the configured store.

Changes made with a sqlite store are seen by a running proxy on its next
request. The memory backend keeps nothing between processes, so these
commands only make sense against sqlite.

Examples:
  # List every key, most failing first
  rotor keys list --sort errors_since_last_success --order desc

  # Register keys
  rotor keys add AIza... AIza...

  # Stop using a key, then bring it back
  rotor keys disable AIza...
  rotor keys enable AIza...`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every credential with its counters",
	Args:  cobra.NoArgs,
	RunE:  listKeys,
}

var keysStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the pool",
	Args:  cobra.NoArgs,
	RunE:  keysStatus,
}

var keysAddCmd = &cobra.Command{
	Use:   "add KEY...",
	Short: "Register credentials",
	Args:  cobra.MinimumNArgs(1),
	RunE:  addKeys,
}

var keysEnableCmd = &cobra.Command{
	Use:   "enable KEY",
	Short: "Return a removed credential to selection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRemoved(cmd, args[0], false)
	},
}

var keysDisableCmd = &cobra.Command{
	Use:   "disable KEY",
	Short: "Mark a credential removed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRemoved(cmd, args[0], true)
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd, keysStatusCmd, keysAddCmd, keysEnableCmd, keysDisableCmd)

	keysListCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "table", "output format: table, json")
	keysListCmd.Flags().StringVar(&keysFlags.sortBy, "sort", string(credentials.SortByAddedAt), "column to sort by")
	keysListCmd.Flags().StringVar(&keysFlags.sortOrder, "order", "asc", "sort order: asc, desc")
	keysListCmd.Flags().BoolVar(&keysFlags.reveal, "reveal", false, "print full keys")

	keysStatusCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "table", "output format: table, json")
}

// withStore loads configuration, opens the store and runs fn with it.
func withStore(cmd *cobra.Command, fn func(context.Context, credentials.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	defer store.Close()

	if err := fn(cmd.Context(), store); err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	return nil
}

func listKeys(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(keysFlags.output)
	if err != nil {
		return err
	}
	return withStore(cmd, func(ctx context.Context, store credentials.Store) error {
		creds, err := store.List(ctx, credentials.ParseListOptions(keysFlags.sortBy, keysFlags.sortOrder))
		if err != nil {
			return err
		}
		return cli.RenderCredentials(cmd.OutOrStdout(), creds, cli.CredentialView{
			Format: format,
			Reveal: keysFlags.reveal,
		})
	})
}

func keysStatus(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(keysFlags.output)
	if err != nil {
		return err
	}
	return withStore(cmd, func(ctx context.Context, store credentials.Store) error {
		snap, err := credentials.Snapshot(ctx, store)
		if err != nil {
			return err
		}
		return cli.RenderSnapshot(cmd.OutOrStdout(), snap, format)
	})
}

func addKeys(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store credentials.Store) error {
		out := cmd.OutOrStdout()
		for _, id := range args {
			created, err := store.InsertIfAbsent(ctx, id)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(out, "✓ Added %s\n", logging.RedactAPIKey(id))
			} else {
				fmt.Fprintf(out, "  %s already registered\n", logging.RedactAPIKey(id))
			}
		}
		return nil
	})
}

func setRemoved(cmd *cobra.Command, id string, removed bool) error {
	return withStore(cmd, func(ctx context.Context, store credentials.Store) error {
		found, err := store.SetRemoved(ctx, id, removed)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: %w", logging.RedactAPIKey(id), credentials.ErrNotFound)
		}
		state := "enabled"
		if removed {
			state = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", logging.RedactAPIKey(id), state)
		return nil
	})
}
