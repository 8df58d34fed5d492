// Frontdesk is the AI receptionist daemon.
//
// It answers caller questions from the knowledge base or a language model,
// escalates the rest to human supervisors and streams lifecycle events over
// server-sent events.
//
// Configuration is read from ~/.config/frontdesk/config.yaml (or --config)
// and environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	frontdesk serve
//
//	# Configure via environment
//	SERVER_HTTP_PORT=8080 STORAGE_DRIVER=sqlite LLM_PROVIDER=openai LLM_API_KEY=sk-... frontdesk serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "frontdesk",
	Short:   "AI receptionist with human-in-the-loop escalation",
	Version: version,
	Args:    cobra.NoArgs,
	// Without a subcommand frontdesk serves.
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the frontdesk HTTP server",
	Long: `Start the frontdesk HTTP server, the timeout sweeper and the NATS
event transport. The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "frontdesk by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/frontdesk/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
