package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/erp/billing/internal/domain/identity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/internal", RequireInternal(nil), okHandler)
	router.GET("/admin", RequireRole(nil, identity.RoleAdmin), okHandler)

	adminToken, _ := issueToken(t, svc, "admin", nil)
	staffToken, _ := issueToken(t, svc, "staff", nil)
	customerToken, _ := issueToken(t, svc, "customer", nil)

	tests := []struct {
		path   string
		token  string
		status int
	}{
		{"/internal", adminToken, http.StatusOK},
		{"/internal", staffToken, http.StatusOK},
		{"/internal", customerToken, http.StatusForbidden},
		{"/admin", adminToken, http.StatusOK},
		{"/admin", staffToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		w := serveWithToken(router, tt.path, tt.token)
		assert.Equal(t, tt.status, w.Code, tt.path)
		if tt.status == http.StatusForbidden {
			assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)
		}
	}
}

func TestRequireRole_WithoutClaims(t *testing.T) {
	router := gin.New()
	router.GET("/admin", RequireRole(nil, identity.RoleAdmin), okHandler)

	w := serveWithToken(router, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
