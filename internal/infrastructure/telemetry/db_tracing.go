package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// DBTracingConfig controls query spans
type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool // include bound variables; keep off in production
	SlowQueryThreshold time.Duration
	DBSystem           string
	TracerProvider     trace.TracerProvider // nil uses the global provider
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm and a slow query detector on db
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaultSlowQueryThreshold
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem), otelgorm.WithoutMetrics()}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	detector := &slowQueryDetector{threshold: cfg.SlowQueryThreshold, logger: logger}
	if err := registerAround(db, "slow_query", detector.before, detector.after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))
	return nil
}

type slowQueryDetector struct {
	threshold time.Duration
	logger    *zap.Logger
}

func (d *slowQueryDetector) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (d *slowQueryDetector) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < d.threshold {
		return
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.String("db.table", db.Statement.Table),
		))
	}
	fields := []zap.Field{
		zap.String("table", db.Statement.Table),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", db.Statement.RowsAffected),
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		fields = append(fields, zap.Error(db.Error))
	}
	d.logger.Warn("Slow query", fields...)
}

// registerAround hooks before and after callbacks on every GORM processor
func registerAround(db *gorm.DB, name string, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	add(cb.Create().Before("gorm:create").Register(name+":before_create", before))
	add(cb.Create().After("gorm:create").Register(name+":after_create", after))
	add(cb.Query().Before("gorm:query").Register(name+":before_query", before))
	add(cb.Query().After("gorm:query").Register(name+":after_query", after))
	add(cb.Update().Before("gorm:update").Register(name+":before_update", before))
	add(cb.Update().After("gorm:update").Register(name+":after_update", after))
	add(cb.Delete().Before("gorm:delete").Register(name+":before_delete", before))
	add(cb.Delete().After("gorm:delete").Register(name+":after_delete", after))
	add(cb.Row().Before("gorm:row").Register(name+":before_row", before))
	add(cb.Row().After("gorm:row").Register(name+":after_row", after))
	add(cb.Raw().Before("gorm:raw").Register(name+":before_raw", before))
	add(cb.Raw().After("gorm:raw").Register(name+":after_raw", after))
	return errors.Join(errs...)
}
