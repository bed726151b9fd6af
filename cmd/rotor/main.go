// Rotor is a reverse proxy for the Gemini API that spreads traffic over a
// pool of upstream API keys and fails over between them.
//
// Usage:
//
//	# Start the proxy
//	rotor run --config rotor.yaml
//
//	# Inspect and manage the credential pool
//	rotor keys list
//	rotor keys add AIza...
//	rotor keys disable AIza...
//
//	# Check a configuration file
//	rotor validate --config rotor.yaml
package main

import (
	"fmt"
	"os"

	"mercator-hq/rotor/pkg/cli"
)

func main() {
	err := Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
