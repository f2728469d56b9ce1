// Skyline answers questions about a company profile PDF over HTTP.
//
// The document is chunked and embedded on first use, and each question is
// answered by a hosted language model from the four closest chunks.
//
// Configuration is read from an optional YAML file, SKYLINE_* environment
// variables and a .env file in the working directory. See internal/config.
//
// Usage:
//
//	# Start the server with defaults (port 3000)
//	skyline serve
//
//	# Configure via environment
//	SKYLINE_SERVER_PORT=8080 HUGGINGFACE_API_KEY=... OPENROUTER_API_KEY=... skyline serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/skyline/internal/config"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFiles   []string
	)

	root := &cobra.Command{
		Use:          "skyline",
		Short:        "Question answering over the company profile",
		Version:      version,
		SilenceUsage: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Examples:
  # Start with defaults
  skyline serve

  # Use a config file and a specific .env
  skyline serve --config skyline.yaml --env-file .env.local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath, envFiles)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	serve.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd)
		},
	}

	root.AddCommand(serve, versionCmd)
	return root
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "skyline\n")
	fmt.Fprintf(out, "Version:    %s\n", version)
	fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(out, "Build Date: %s\n", buildDate)
}

// serve loads configuration, builds the app and runs it until ctx is
// cancelled.
func serve(ctx context.Context, configPath string, envFiles []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	return a.run(ctx)
}
