package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	appidentity "github.com/erp/billing/internal/application/identity"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/cache"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/infrastructure/migration"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/erp/billing/internal/infrastructure/printing"
	"github.com/erp/billing/internal/infrastructure/storage"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/erp/billing/internal/interfaces/http/handler"
	"github.com/erp/billing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}

	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// OTLP log export, tee'd into the main logger
	logProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log, err := logger.New(logCfg, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if err := migration.PrepareSchema(db, cfg.Database, log); err != nil {
		log.Fatal("Failed to prepare schema", zap.Error(err))
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:           db.Driver(),
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider.Meter("billing/db"), log)
		if err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
		defer func() {
			_ = dbMetrics.Unregister()
		}()
	}

	// Repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	branchDir := persistence.NewGormBranchDirectory(db.DB)
	customerDir := persistence.NewGormCustomerDirectory(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Application services
	jwtService := auth.NewJWTService(cfg.JWT)
	resolver := appbilling.NewSnapshotResolver(branchDir)
	documentService := appbilling.NewDocumentService(documentRepo, customerDir, resolver, txScope, appbilling.ServiceConfig{
		DefaultDueDays:        cfg.Billing.DefaultDueDays,
		QuotationValidityDays: cfg.Billing.QuotationValidityDays,
		DefaultTerms:          cfg.Billing.DefaultTerms,
	}, log)
	documentMetrics, err := telemetry.NewDocumentMetrics(meterProvider.Meter("billing/documents"))
	if err != nil {
		log.Fatal("Failed to create document metrics", zap.Error(err))
	}
	documentService.SetMetrics(documentMetrics)
	authService := appidentity.NewAuthService(userRepo, jwtService, log)

	converter, err := printing.NewConverter(cfg.Printing, log)
	if err != nil {
		log.Fatal("Failed to initialize PDF converter", zap.Error(err))
	}
	template, err := printing.NewDocumentTemplate()
	if err != nil {
		log.Fatal("Failed to parse document template", zap.Error(err))
	}
	renderer := printing.NewDocumentRenderer(template, converter, log)
	defer func() {
		_ = renderer.Close()
	}()
	renderService := appbilling.NewRenderService(documentService, customerDir, branchDir, renderer, log)

	objectStorage, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	attachmentConfig := appbilling.DefaultAttachmentServiceConfig()
	if cfg.Storage.MaxFileSize > 0 {
		attachmentConfig.MaxFileSize = cfg.Storage.MaxFileSize
	}
	if cfg.Storage.PresignExpiration > 0 {
		attachmentConfig.DownloadURLExpiry = cfg.Storage.PresignExpiration
	}
	attachmentService := appbilling.NewAttachmentService(documentRepo, objectStorage, attachmentConfig, log)
	documentService.SetObjectPurger(attachmentService)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}

	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:           cfg.HTTP,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: tracerProvider.IsEnabled(),
		TracerProvider: otel.GetTracerProvider(),
		JWT:            jwtService,
		Metrics:        telemetry.NewHTTPMetrics(),
		Logger:         log,
	}, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService, idempotencyStore, cfg.HTTP.IdempotencyTTL),
		Files:     handler.NewDocumentFileHandler(documentService, renderService, attachmentService),
		Portal:    handler.NewPortalHandler(documentService),
		Health:    handler.NewHealthHandler(db),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, logProvider)

	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(deadline); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
