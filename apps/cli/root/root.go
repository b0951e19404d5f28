package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the platform admin CLI. Subcommands
// (bootstrap, tenant, token) are attached here.
var rootCmd = &cobra.Command{
	Use:           "medikube",
	Short:         "Platform admin CLI",
	Long:          "Administrative utilities for the platform (schema bootstrap, tenant and token management).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
