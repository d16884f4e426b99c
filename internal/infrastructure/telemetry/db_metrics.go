package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics records query latency and connection pool usage
type DBMetrics struct {
	queries      *Counter
	duration     *Histogram
	errors       *Counter
	registration metric.Registration
}

type metricsStartKey struct{}

// RegisterDBMetrics instruments db with query counters and observable pool gauges
func RegisterDBMetrics(db *gorm.DB, meter metric.Meter, logger *zap.Logger) (*DBMetrics, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	m, err := newDBMetrics(meter, sqlDB)
	if err != nil {
		return nil, err
	}
	if err := registerAround(db, "db_metrics", m.before, m.after); err != nil {
		return nil, err
	}
	logger.Info("Database metrics registered")
	return m, nil
}

func newDBMetrics(meter metric.Meter, sqlDB *sql.DB) (*DBMetrics, error) {
	queries, err := NewCounter(meter, "db.client.queries", "Database queries by operation", "{query}")
	if err != nil {
		return nil, err
	}
	failures, err := NewCounter(meter, "db.client.errors", "Database queries that failed", "{query}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db.client.duration",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	connections, err := meter.Int64ObservableGauge("db.client.connections",
		metric.WithDescription("Pool connections by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxOpen, err := meter.Int64ObservableGauge("db.client.connections.max",
		metric.WithDescription("Maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(connections, int64(stats.InUse), metric.WithAttributes(AttrDBPoolState.String("in_use")))
		o.ObserveInt64(connections, int64(stats.Idle), metric.WithAttributes(AttrDBPoolState.String("idle")))
		o.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections))
		return nil
	}, connections, maxOpen)
	if err != nil {
		return nil, err
	}

	return &DBMetrics{queries: queries, duration: duration, errors: failures, registration: reg}, nil
}

func (m *DBMetrics) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, metricsStartKey{}, time.Now())
	}
}

func (m *DBMetrics) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []attribute.KeyValue{
		AttrDBOperation.String(operationOf(db.Statement.SQL.String())),
		AttrDBTable.String(db.Statement.Table),
	}
	m.queries.Inc(ctx, attrs...)
	if start, ok := ctx.Value(metricsStartKey{}).(time.Time); ok {
		m.duration.RecordDuration(ctx, time.Since(start), attrs...)
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		m.errors.Inc(ctx, attrs...)
	}
}

// Unregister stops pool observations
func (m *DBMetrics) Unregister() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

// operationOf returns the leading SQL verb
func operationOf(query string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	switch v := strings.ToUpper(verb); v {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return v
	case "WITH":
		return "SELECT"
	default:
		return "OTHER"
	}
}
