// Package main implements skylinectl, a command-line client for the skyline
// HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the skyline HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "skylinectl",
		Short: "CLI for the skyline question answering server",
		Long: `skylinectl is a command-line interface for the skyline HTTP server.
It asks questions about the company profile and checks server health.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "skyline server URL")
	root.AddCommand(newAskCmd(), newHealthCmd())
	return root
}
