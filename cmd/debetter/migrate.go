package main

import (
	"fmt"
	"log/slog"

	"github.com/Aksuiekbro/debetter-sub002/config"
	"github.com/Aksuiekbro/debetter-sub002/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			conn, err := db.Connect(cfg.Database.Driver, cfg.Database.URL, cfg.Database.ConnectTimeout)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer conn.Close()

			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated", slog.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}
