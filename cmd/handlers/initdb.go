package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"newsradar/internal/config"
	"newsradar/internal/logger"
)

// NewInitDBCmd creates the init-db command.
func NewInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Apply database migrations",
		Long: `Apply all pending database migrations.

Creates the sources and articles tables and their indexes. Safe to run
repeatedly: already applied migrations are skipped.

Example:
  newsradar init-db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDB(cmd.Context())
		},
	}
}

func runInitDB(ctx context.Context) error {
	cfg := config.Get()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database schema is up to date")
	fmt.Println("Migrations applied.")
	return nil
}
