package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/vetsub/internal/config"
	"github.com/smallbiznis/vetsub/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
				if err := migration.Apply(conn, cfg); err != nil {
					return err
				}
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				version, dirty, err := migration.Version(sqlDB)
				if err != nil {
					return err
				}
				log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
				return nil
			})
		},
	}

	return cmd
}

// withDatabase boots the infrastructure graph, runs fn and shuts down.
func withDatabase(ctx context.Context, fn func(*gorm.DB, config.Config, *zap.Logger) error) error {
	var (
		conn *gorm.DB
		cfg  config.Config
		log  *zap.Logger
	)
	app := fx.New(
		infrastructure(),
		fx.Populate(&conn, &cfg, &log),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	return fn(conn, cfg, log)
}
