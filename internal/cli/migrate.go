package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/REZ0AN/TaskPilot/internal/persistence"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations to Postgres",
	Long: `Apply every .sql file in the migrations directory in lexical order.
Migrations are idempotent, so running this twice is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is not set")
		}
		dir := migrationsDir
		if dir == "" {
			dir = cfg.Postgres.MigrationsDir
		}

		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()

		if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrations in %s applied.\n", dir)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "migrations-dir", "", "path to migrations directory (default POSTGRES_MIGRATIONS_DIR)")
}
