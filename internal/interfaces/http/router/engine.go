package router

import (
	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/erp/billing/internal/interfaces/http/handler"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Auth      *handler.AuthHandler
	Documents *handler.DocumentHandler
	Files     *handler.DocumentFileHandler
	Portal    *handler.PortalHandler
	Health    *handler.HealthHandler
}

// EngineConfig carries the cross-cutting dependencies of the HTTP stack
type EngineConfig struct {
	HTTP           config.HTTPConfig
	ServiceName    string
	TracingEnabled bool
	TracerProvider trace.TracerProvider
	JWT            *auth.JWTService
	Metrics        *telemetry.HTTPMetrics
	Logger         *zap.Logger
}

// NewEngine builds the gin engine with the global middleware chain and every billing route
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName:    cfg.ServiceName,
		Enabled:        cfg.TracingEnabled,
		TracerProvider: cfg.TracerProvider,
		SkipPaths:      []string{"/health", "/metrics"},
	}))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.PrometheusMetrics(cfg.Metrics))
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))

	engine.GET("/health", h.Health.Health)
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	jwtConfig := middleware.DefaultJWTConfig(cfg.JWT)
	jwtConfig.Logger = log

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig), middleware.TracingAttributeInjector())
	if cfg.HTTP.RateLimitEnabled {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)))
	}

	r.Register(
		NewDomainGroup("/health").GET("", h.Health.Health),
		authRoutes(cfg, h),
		documentRoutes(log, h),
		portalRoutes(log, h),
	)
	r.Setup()

	return engine, nil
}

func authRoutes(cfg EngineConfig, h Handlers) *DomainGroup {
	routes := NewDomainGroup("/auth")
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRPS, cfg.HTTP.AuthRateLimitBurst)
		routes.Use(middleware.RateLimitByKey(limiter, func(c *gin.Context) string { return c.ClientIP() }))
	}
	return routes.POST("/login", h.Auth.Login)
}

func documentRoutes(log *zap.Logger, h Handlers) *DomainGroup {
	internal := middleware.RequireInternal(log)
	admin := middleware.RequireRole(log, identity.RoleAdmin)
	idempotent := middleware.IdempotencyKey()

	routes := NewDomainGroup("/documents")
	routes.GET("", h.Documents.List)
	routes.POST("", internal, idempotent, h.Documents.Create)
	routes.POST("/sweep", admin, h.Documents.Sweep)
	routes.GET("/number/:type/:number", internal, h.Documents.GetByNumber)
	routes.GET("/:id", h.Documents.Get)
	routes.PUT("/:id", internal, h.Documents.Update)
	routes.DELETE("/:id", internal, h.Documents.Delete)
	routes.POST("/:id/events", internal, h.Documents.ApplyEvent)
	routes.POST("/:id/payments", internal, h.Documents.RecordPayment)
	routes.POST("/:id/convert", internal, idempotent, h.Documents.Convert)
	routes.GET("/:id/pdf", h.Files.PDF)
	routes.POST("/:id/attachments", h.Files.UploadAttachment)
	routes.GET("/:id/attachments/:attachmentId", h.Files.DownloadAttachment)
	return routes
}

func portalRoutes(log *zap.Logger, h Handlers) *DomainGroup {
	routes := NewDomainGroup("/portal")
	routes.Use(middleware.RequireRole(log, identity.RoleCustomer))
	return routes.POST("/quotation-requests", h.Portal.RequestQuotation)
}
