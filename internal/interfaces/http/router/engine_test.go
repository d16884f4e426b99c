package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/erp/billing/internal/interfaces/http/handler"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testEngine struct {
	engine *gin.Engine
	jwt    *auth.JWTService
}

// newTestEngine wires the full middleware chain. Handlers have no services behind them,
// so only requests stopped by middleware or answered by /health may be sent.
func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "router-test-secret-at-least-32-chars",
		AccessTokenExpiration: time.Minute,
		Issuer:                "billing-test",
	})
	engine, err := NewEngine(EngineConfig{
		HTTP: config.HTTPConfig{
			WriteTimeout:       5 * time.Second,
			MaxBodySize:        1 << 10,
			RateLimitEnabled:   true,
			RateLimitRPS:       100,
			RateLimitBurst:     100,
			AuthRateLimitRPS:   0.01,
			AuthRateLimitBurst: 1,
			CORSAllowOrigins:   []string{"https://app.billing.test"},
		},
		ServiceName: "billing-test",
		JWT:         jwtService,
		Metrics:     telemetry.NewHTTPMetrics(),
	}, Handlers{
		Auth:      handler.NewAuthHandler(nil),
		Documents: handler.NewDocumentHandler(nil, nil, time.Hour),
		Files:     handler.NewDocumentFileHandler(nil, nil, nil),
		Portal:    handler.NewPortalHandler(nil),
		Health:    handler.NewHealthHandler(okPinger{}),
	})
	require.NoError(t, err)
	return &testEngine{engine: engine, jwt: jwtService}
}

func (e *testEngine) token(t *testing.T, role string) string {
	t.Helper()
	var customerID *uuid.UUID
	if role == "customer" {
		id := uuid.New()
		customerID = &id
	}
	tok, err := e.jwt.GenerateAccessToken(auth.GenerateTokenInput{UserID: uuid.New(), Role: role, CustomerID: customerID})
	require.NoError(t, err)
	return tok.AccessToken
}

func (e *testEngine) request(method, path, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestNewEngine_Routes(t *testing.T) {
	e := newTestEngine(t)
	registered := make(map[string]bool)
	for _, r := range e.engine.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, route := range []string{
		"GET /health",
		"GET /metrics",
		"GET /api/v1/health",
		"POST /api/v1/auth/login",
		"GET /api/v1/documents",
		"POST /api/v1/documents",
		"POST /api/v1/documents/sweep",
		"GET /api/v1/documents/number/:type/:number",
		"GET /api/v1/documents/:id",
		"PUT /api/v1/documents/:id",
		"DELETE /api/v1/documents/:id",
		"POST /api/v1/documents/:id/events",
		"POST /api/v1/documents/:id/payments",
		"POST /api/v1/documents/:id/convert",
		"GET /api/v1/documents/:id/pdf",
		"POST /api/v1/documents/:id/attachments",
		"GET /api/v1/documents/:id/attachments/:attachmentId",
		"POST /api/v1/portal/quotation-requests",
	} {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestNewEngine_PublicEndpoints(t *testing.T) {
	e := newTestEngine(t)

	w := e.request(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusOK, e.request(http.MethodGet, "/api/v1/health", "", "").Code)

	w = e.request(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `billing_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestNewEngine_Authorization(t *testing.T) {
	e := newTestEngine(t)
	staff := e.token(t, "staff")
	customer := e.token(t, "customer")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous list", http.MethodGet, "/api/v1/documents", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/documents", "not-a-jwt", http.StatusUnauthorized},
		{"customer create", http.MethodPost, "/api/v1/documents", customer, http.StatusForbidden},
		{"customer convert", http.MethodPost, "/api/v1/documents/" + uuid.NewString() + "/convert", customer, http.StatusForbidden},
		{"customer lookup by number", http.MethodGet, "/api/v1/documents/number/invoice/INV-0001", customer, http.StatusForbidden},
		{"staff sweep", http.MethodPost, "/api/v1/documents/sweep", staff, http.StatusForbidden},
		{"staff portal", http.MethodPost, "/api/v1/portal/quotation-requests", staff, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.request(tt.method, tt.path, tt.token, "").Code)
		})
	}
}

func TestNewEngine_RequestGuards(t *testing.T) {
	e := newTestEngine(t)

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
		req.Header.Set("Origin", "https://app.billing.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.billing.test", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("oversized body", func(t *testing.T) {
		w := e.request(http.MethodPost, "/api/v1/documents", e.token(t, "staff"), strings.Repeat("x", 2<<10))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("bad idempotency key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+e.token(t, "staff"))
		req.Header.Set(middleware.IdempotencyKeyHeader, strings.Repeat("k", 300))
		w := httptest.NewRecorder()
		e.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("login attempts are throttled", func(t *testing.T) {
		first := e.request(http.MethodPost, "/api/v1/auth/login", "", "{}")
		assert.Equal(t, http.StatusBadRequest, first.Code)
		second := e.request(http.MethodPost, "/api/v1/auth/login", "", "{}")
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
	})
}
