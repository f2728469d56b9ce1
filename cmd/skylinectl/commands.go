package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the company",
		Long: `Ask a question about the company profile.

Examples:
  # Ask a question
  skylinectl ask "What services does the company offer?"

  # Show model and retrieval details
  skylinectl ask -v "Where is the head office?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			c := newClient(serverURL, timeout)

			resp, err := c.ask(cmd.Context(), question)
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests && apiErr.Body.RetryAfter > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "Rate limited. Try again in %d seconds.\n", apiErr.Body.RetryAfter)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			if verbose {
				fmt.Fprintf(out, "\nModel:           %s\n", resp.Metadata.Model)
				fmt.Fprintf(out, "Documents found: %d\n", resp.Metadata.DocumentsFound)
				fmt.Fprintf(out, "Timestamp:       %s\n", resp.Metadata.Timestamp.Format(time.RFC3339))
			}
			return nil
		},
	}
	// The server may retry the model three times at 25s each.
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print answer metadata")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check skyline server health",
		Long: `Check the health status of the skyline HTTP server.

Examples:
  # Check health
  skylinectl health

  # Check health on a different server
  skylinectl health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient(serverURL, 5*time.Second)
			report, status, err := c.health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", report.Status)
			fmt.Fprintf(out, "Server URL: %s\n", serverURL)
			if report.Version != "" {
				fmt.Fprintf(out, "Version: %s\n", report.Version)
			}
			for _, name := range []string{"pdfFile", "huggingfaceKey", "openrouterKey"} {
				if v, ok := report.Checks[name]; ok {
					fmt.Fprintf(out, "  %-15s %s\n", name, v)
				}
			}

			if status != http.StatusOK {
				if report.Error != "" {
					return fmt.Errorf("server is %s: %s", report.Status, report.Error)
				}
				return fmt.Errorf("server is %s", report.Status)
			}
			return nil
		},
	}
}
