package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appforge/appforge/engine/infra/postgres"
	"github.com/appforge/appforge/pkg/logger"
)

// NewMigrateCommand creates the migrate command applying pending database
// migrations and exiting.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, err := setupContext(cmd)
			if err != nil {
				return err
			}
			if err := postgres.ApplyMigrations(ctx, cfg.Database.ConnString); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			logger.FromContext(ctx).Info("Migrations applied")
			return nil
		},
	}
}
