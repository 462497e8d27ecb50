package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudnautic/accountctl/cmd/accountctl/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "accountctl",
		Short: "Manage the member-account lifecycle of an AWS Organization",
		Long: `accountctl creates and closes member accounts in an AWS Organization.

Account creation derives a unique email address from an SSM sequence counter,
polls the creation request to completion, places the account into an
organizational unit, and validates cross-account role access. Account closure
resolves targets by id, email, or the whole organization, and treats
already-closed accounts as success.

Progress is logged to stderr; the final result is a single JSON document on
stdout.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.RegisterCreateCommands(rootCmd)
	cli.RegisterCloseCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
