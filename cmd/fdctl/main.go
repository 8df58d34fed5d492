// Package main implements the fdctl CLI for supervisors and operators working
// against a frontdesk HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// cli carries the persistent flag values shared by every subcommand.
type cli struct {
	// serverURL is the base URL for the frontdesk HTTP server
	serverURL string
	// jsonOutput prints raw JSON instead of tables
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the full command tree with fresh flag state.
func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "fdctl",
		Short: "CLI for frontdesk HTTP server operations",
		Long: `fdctl is a command-line interface for the frontdesk HTTP server.
It lets supervisors answer pending help requests and manage the knowledge base.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.serverURL, "server", "http://localhost:10000", "frontdesk server URL")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "print raw JSON responses")
	root.AddCommand(c.healthCmd(), c.askCmd(), c.requestsCmd(), c.knowledgeCmd())
	return root
}
