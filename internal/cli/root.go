package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/bootstrap"
	"github.com/REZ0AN/TaskPilot/internal/config"
	"github.com/REZ0AN/TaskPilot/internal/observability"
)

var (
	cfg      *config.Config
	logger   *zap.Logger
	logLevel string
	version  = "dev"

	// openBackends is replaced in tests.
	openBackends = bootstrap.Open
)

var rootCmd = &cobra.Command{
	Use:   "taskpilotctl",
	Short: "Operator tooling for TaskPilot",
	Long: `taskpilotctl applies database migrations and exercises the assignment
resolver and the enrichment workflow against the configured backends.

Configuration is read from the same environment variables (and .env file)
as the API server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		if cfg != nil {
			return nil
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			loaded.Logger.Level = logLevel
		}
		// Migrations run only through the migrate command.
		loaded.Postgres.RunMigrations = false

		logger, err = observability.NewLogger(loaded.Logger)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taskpilotctl %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(versionCmd)
}

func SetVersion(v string) {
	version = v
}

func Execute() error {
	return rootCmd.Execute()
}

func Root() *cobra.Command {
	return rootCmd
}

func withServices(ctx context.Context, fn func(*bootstrap.Backends, *bootstrap.Services) error) error {
	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer backends.Close()

	services := bootstrap.NewServices(cfg, backends, nil, logger)
	return fn(backends, services)
}
