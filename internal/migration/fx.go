package migration

import (
	"github.com/smallbiznis/vetsub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies pending migrations on startup when MIGRATIONS_AUTO is set.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.MigrationsAuto {
			return nil
		}
		if cfg.DBType != "postgres" {
			log.Warn("skipping automatic migrations", zap.String("db_type", cfg.DBType))
			return nil
		}
		return Apply(conn, cfg)
	}),
)

// Apply runs the embedded migrations against conn.
func Apply(conn *gorm.DB, cfg config.Config) error {
	if cfg.DBType != "postgres" {
		return ErrUnsupportedDialect
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
