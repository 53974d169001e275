// Package commands implements the CLI commands for drydock.
package commands

import (
	"github.com/irahardianto/drydock/internal/platform/logger"
	"github.com/spf13/cobra"
)

// Global flag values accessible to all commands.
var (
	flagJSON    bool
	flagVerbose bool
)

// rootCmd is the base command for the drydock CLI.
var rootCmd = &cobra.Command{
	Use:   "drydock",
	Short: "Ephemeral container harness companion",
	Long: `Drydock is a test-harness library that drives ephemeral containers against
a Docker-compatible daemon. This companion CLI inspects the daemon setup and
sweeps resources left behind by test processes that died before cleanup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		l := logger.New(flagVerbose, flagJSON)
		ctx := logger.WithContext(cmd.Context(), l)
		cmd.SetContext(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}

// Execute runs the root command. Returns an error if the command fails.
func Execute() error {
	return rootCmd.Execute()
}
