package migration

import (
	"github.com/erp/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// AutoMigrator is a database that can create its schema from its models
type AutoMigrator interface {
	Driver() string
	AutoMigrate() error
}

// PrepareSchema brings the schema up to date: SQL migrations on postgres,
// GORM auto-migration on sqlite
func PrepareSchema(db AutoMigrator, cfg config.DatabaseConfig, logger *zap.Logger) error {
	if db.Driver() == "sqlite" {
		return db.AutoMigrate()
	}
	m, err := Open(cfg.DSN(), cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	return m.Up()
}
