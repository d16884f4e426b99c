package cli

import (
	"fmt"

	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/infrastructure/migration"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// Env lazily builds what a command needs: configuration, a logger and the database
type Env struct {
	loadConfig func() (*config.Config, error)
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	db     *persistence.Database
	ownsDB bool
}

// Config loads the configuration once
func (e *Env) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

// Logger returns a console logger on stderr, keeping stdout for command output
func (e *Env) Logger() *zap.Logger {
	if e.logger != nil {
		return e.logger
	}
	log, err := logger.New(&logger.Config{Level: e.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		log = zap.NewNop()
	}
	e.logger = log
	return log
}

// Database opens the configured database and brings its schema up to date
func (e *Env) Database() (*persistence.Database, error) {
	if e.db != nil {
		return e.db, nil
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	log := e.Logger()
	db, err := persistence.NewDatabase(&cfg.Database, logger.NewGormLogger(log, logger.MapGormLogLevel(e.logLevel)))
	if err != nil {
		return nil, err
	}
	if err := migration.PrepareSchema(db, cfg.Database, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	e.db = db
	e.ownsDB = true
	return db, nil
}

// Close releases the database when this Env opened it
func (e *Env) Close() error {
	if e.logger != nil {
		_ = e.logger.Sync()
	}
	if e.db == nil || !e.ownsDB {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}
