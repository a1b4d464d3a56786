// Package cmd implements the atelier command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier - chat service with artifact versioning",
	Long: `Atelier is a chat service that streams model output and captures
artifact-worthy responses as immutable, append-only versions.

Run "atelier serve" to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
