package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"tracker-api/internal/db"
	"tracker-api/internal/tracker"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, apClose, err := loadConfig()
			defer apClose()
			if err != nil {
				return err
			}
			drv, closeDB, err := db.Open(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := db.Migrate(ctx, drv, tracker.MustBuild().Registry); err != nil {
				mainLogger.Sugar().Errorf("migrate error: %v", err)
				return err
			}
			mainLogger.Info("schema migrated")
			return nil
		},
	}
}
