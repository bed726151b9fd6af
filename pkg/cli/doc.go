/*
Package cli holds the helpers shared by the rotor subcommands: credential
and pool rendering, signal handling and error-to-exit-code mapping.

Credential listings are rendered as a table by default and redact ids
unless asked not to:

	err := cli.RenderCredentials(os.Stdout, creds, cli.CredentialView{
		Format: cli.FormatTable,
	})

Long-running commands derive their context from SignalContext so SIGINT
and SIGTERM start a graceful shutdown:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
