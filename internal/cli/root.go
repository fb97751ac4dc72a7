// Package cli implements the admin command-line surface (component M): a
// small cobra command tree that talks to a running server's admin HTTP
// endpoints over net/http, the same contract any remote operator uses. It
// never reaches into an in-process Registry, Coordinator, or config — only
// the HTTP surface documented in the external-interfaces section.
//
// Grounded on the teacher's internal/interfaces/cli/root.go: the same
// RootOptions/PersistentFlags shape (--server, --timeout, --output) and the
// same Execute()-from-main entrypoint pattern, trimmed of the
// application-layer service dependency injection the teacher's CLI used for
// its own domain commands, since this command tree has exactly one backend:
// the admin HTTP API.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags from cmd/admin/main.go.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ServerAddr string
	Timeout    time.Duration
	Output     string
}

// NewRootCommand builds the root "keyip-admin" command with its persistent
// flags and the models/health subcommand tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "keyip-admin",
		Short:         "Admin CLI for the KeyIP-Intelligence inference server",
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ServerAddr, "server", "http://localhost:8080", "inference server address")
	pf.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text, json)")

	cmd.AddCommand(
		newHealthCmd(opts),
		newModelsCmd(opts),
	)

	return cmd
}

// Execute runs the root command and reports a failure to stderr.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
