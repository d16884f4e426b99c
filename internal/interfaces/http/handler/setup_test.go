package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	appidentity "github.com/erp/billing/internal/application/identity"
	"github.com/erp/billing/internal/domain/billing"
	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/cache"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/erp/billing/internal/infrastructure/storage"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// mockRenderer is a mock implementation of DocumentRenderer
type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderPDF(ctx context.Context, view appbilling.DocumentView) ([]byte, error) {
	args := m.Called(ctx, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// flakyScope fails the first failures transactions with a numbering failure
type flakyScope struct {
	appbilling.TransactionScope
	failures int
}

func (s *flakyScope) Execute(ctx context.Context, fn func(repos appbilling.TransactionalRepositories) error) error {
	if s.failures > 0 {
		s.failures--
		return shared.WrapDomainError(shared.CodeNumberingFailure, "Sequence row is locked", errors.New("lock timeout"))
	}
	return s.TransactionScope.Execute(ctx, fn)
}

type testEnv struct {
	engine        *gin.Engine
	db            *persistence.Database
	jwt           *auth.JWTService
	renderer      *mockRenderer
	store         *cache.InMemoryIdempotencyStore
	scope         *flakyScope
	users         *persistence.GormUserRepository
	branch        *billing.Branch
	customer      *billing.Customer
	otherCustomer *billing.Customer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	branches := persistence.NewGormBranchDirectory(db.DB)
	customers := persistence.NewGormCustomerDirectory(db.DB)
	documents := persistence.NewGormDocumentRepository(db.DB)

	env := &testEnv{
		db:       db,
		renderer: new(mockRenderer),
		store:    cache.NewInMemoryIdempotencyStore(),
		scope:    &flakyScope{TransactionScope: persistence.NewGormTransactionScope(db.DB)},
		users:    persistence.NewGormUserRepository(db.DB),
		jwt: auth.NewJWTService(config.JWTConfig{
			Secret:                "handler-test-secret-at-least-32-chars",
			AccessTokenExpiration: 15 * time.Minute,
			Issuer:                "billing-test",
		}),
		branch: &billing.Branch{
			Code:             "LON",
			Name:             "London",
			Currency:         billing.CurrencySnapshot{Code: "GBP", Symbol: "£", Name: "Pound Sterling"},
			TaxRate:          decimal.NewFromInt(20),
			QuotationTerms:   "Valid for 30 days.",
			PaymentTermsDays: 14,
			Active:           true,
		},
		customer:      &billing.Customer{Name: "Acme Ltd", Email: "billing@acme.test"},
		otherCustomer: &billing.Customer{Name: "Globex", Email: "ap@globex.test"},
	}
	t.Cleanup(func() { _ = env.store.Close() })

	require.NoError(t, branches.Save(ctx, env.branch))
	require.NoError(t, customers.Save(ctx, env.customer))
	require.NoError(t, customers.Save(ctx, env.otherCustomer))

	docSvc := appbilling.NewDocumentService(documents, customers, appbilling.NewSnapshotResolver(branches),
		env.scope, appbilling.DefaultServiceConfig(), nil)
	renderSvc := appbilling.NewRenderService(docSvc, customers, branches, env.renderer, nil)
	attachmentSvc := appbilling.NewAttachmentService(documents, storage.NewMemoryObjectStorage("https://files.test"),
		appbilling.DefaultAttachmentServiceConfig(), nil)
	authSvc := appidentity.NewAuthService(env.users, env.jwt, nil)

	docs := NewDocumentHandler(docSvc, env.store, time.Hour)
	files := NewDocumentFileHandler(docSvc, renderSvc, attachmentSvc)
	portal := NewPortalHandler(docSvc)
	authHandler := NewAuthHandler(authSvc)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", NewHealthHandler(db).Health)

	api := engine.Group("/api/v1", middleware.JWTAuthMiddleware(env.jwt), middleware.IdempotencyKey())
	api.POST("/auth/login", authHandler.Login)

	internal := middleware.RequireInternal(nil)
	d := api.Group("/documents")
	d.GET("", docs.List)
	d.POST("", internal, docs.Create)
	d.POST("/sweep", middleware.RequireRole(nil, identity.RoleAdmin), docs.Sweep)
	d.GET("/number/:type/:number", internal, docs.GetByNumber)
	d.GET("/:id", docs.Get)
	d.PUT("/:id", internal, docs.Update)
	d.DELETE("/:id", internal, docs.Delete)
	d.POST("/:id/events", internal, docs.ApplyEvent)
	d.POST("/:id/payments", internal, docs.RecordPayment)
	d.POST("/:id/convert", internal, docs.Convert)
	d.GET("/:id/pdf", files.PDF)
	d.POST("/:id/attachments", files.UploadAttachment)
	d.GET("/:id/attachments/:attachmentId", files.DownloadAttachment)
	api.POST("/portal/quotation-requests", middleware.RequireRole(nil, identity.RoleCustomer), portal.RequestQuotation)

	env.engine = engine
	return env
}

// token issues an access token and returns it with the user ID it carries
func (e *testEnv) token(t *testing.T, role identity.Role, customerID *uuid.UUID) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	tok, err := e.jwt.GenerateAccessToken(auth.GenerateTokenInput{
		UserID:     userID,
		Email:      role.String() + "@billing.test",
		Role:       role.String(),
		CustomerID: customerID,
	})
	require.NoError(t, err)
	return tok.AccessToken, userID
}

func (e *testEnv) staffToken(t *testing.T) string {
	tok, _ := e.token(t, identity.RoleStaff, nil)
	return tok
}

func (e *testEnv) customerToken(t *testing.T, c *billing.Customer) string {
	tok, _ := e.token(t, identity.RoleCustomer, &c.ID)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// envelope mirrors dto.Response with a typed payload
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[json.RawMessage](t, w)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func (e *testEnv) documentBody(docType string, customerID uuid.UUID) map[string]any {
	return map[string]any{
		"type":        docType,
		"customer_id": customerID,
		"branch_id":   e.branch.ID,
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "50.25"},
			{"description": "Hosting", "quantity": "1", "unit_price": "20"},
		},
		"notes": "March retainer",
	}
}

// createDocument creates a document as staff and returns it
func (e *testEnv) createDocument(t *testing.T, body map[string]any) appbilling.DocumentResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/documents", e.staffToken(t), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[appbilling.DocumentResponse](t, w).Data
}

func (e *testEnv) applyEvent(t *testing.T, id uuid.UUID, event string) appbilling.DocumentResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/documents/"+id.String()+"/events", e.staffToken(t), map[string]any{"event": event})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[appbilling.DocumentResponse](t, w).Data
}
