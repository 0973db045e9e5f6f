package cmd

import (
	"context"
	"fmt"

	"clinic-booking/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			count, err := database.NewMigrator(rt.db).Up(context.Background())
			if err != nil {
				rt.logger.Error("Migration failed", zap.Error(err), zap.Int("applied", count))
				return fmt.Errorf("migration failed: %w", err)
			}

			rt.logger.Info("Migrations applied", zap.Int("count", count))
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}
