package main

import (
	"context"
	"fmt"

	"github.com/adminboard/backend-api/internal/config"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment).WithOperation("migrate")
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("Schema is up to date")
	return db.Close()
}
