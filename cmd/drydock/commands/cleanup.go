package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irahardianto/drydock/internal/engine/config"
	"github.com/irahardianto/drydock/internal/engine/daemon"
	"github.com/irahardianto/drydock/internal/engine/reaper"
	"github.com/irahardianto/drydock/internal/platform/logger"
)

var flagSession string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove containers and networks left behind by dead test runs",
	Long: `Force-remove all daemon resources carrying the harness session label.
By default every session is swept; --session restricts the sweep to one
test process's resources.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := logger.FromContext(ctx)
		log.Info("cleanup started", "session", flagSession)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		runtime, err := daemon.NewDockerRuntime(cfg.Host)
		if err != nil {
			return fmt.Errorf("connecting to daemon: %w", err)
		}
		defer runtime.Close()

		if err := daemon.CheckDaemon(ctx, runtime); err != nil {
			return err
		}

		containers, networks, err := reaper.ReapSession(ctx, runtime, flagSession)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "♻️  Removed %d container(s) and %d network(s)\n", containers, networks)
		log.Info("cleanup completed", "containers", containers, "networks", networks)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&flagSession, "session", "", "Restrict the sweep to one session id")
	rootCmd.AddCommand(cleanupCmd)
}
