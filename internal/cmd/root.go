// Package cmd implements the plansmith command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// Global flag names
const (
	flagConfig    = "config"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagBackend   = "backend"
	flagProvider  = "provider"
)

// NewRootCmd builds the command tree. Every call returns a fresh tree so
// flag state never leaks between executions.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plansmith",
		Short: "Turn requirement text into an implementation plan",
		Long: `plansmith turns free-form requirement text into a structured implementation
plan: features with complexity estimates, phased tasks, a dependency graph
that is always acyclic, Given/When/Then acceptance criteria and a developer
prompt per task.

Generation runs either on the built-in heuristic backend or on a language
model provider configured in plansmith.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeCommandContext(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagConfig, "", "config file (default ./plansmith.yaml)")
	flags.String(flagLogLevel, "", "log level: debug, info, warn, error")
	flags.String(flagLogFormat, "", "log format: text or json")
	flags.String(flagBackend, "", "generation backend: heuristic or llm")
	flags.String(flagProvider, "", "provider name for the llm backend")

	root.AddCommand(
		newGenerateCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with a context that cancels
// running pipelines, typically from signal.NotifyContext
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
