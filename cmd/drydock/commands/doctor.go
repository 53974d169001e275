package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irahardianto/drydock/internal/engine/config"
	"github.com/irahardianto/drydock/internal/engine/daemon"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the container daemon is reachable",
	Long: `Resolve the daemon endpoint the way the harness does
(tc.host > DOCKER_HOST > docker.host > default socket) and ping it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "daemon endpoint: %s\n", cfg.Host)

		runtime, err := daemon.NewDockerRuntime(cfg.Host)
		if err != nil {
			return err
		}
		defer runtime.Close()

		if err := daemon.CheckDaemon(ctx, runtime); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✅ daemon is reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
