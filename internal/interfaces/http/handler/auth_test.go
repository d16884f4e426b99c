package handler

import (
	"context"
	"net/http"
	"testing"

	appidentity "github.com/erp/billing/internal/application/identity"
	"github.com/erp/billing/internal/domain/identity"
	"github.com/erp/billing/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	user, err := identity.NewUser("Sam Staff", "sam@billing.test", "correct-horse", identity.RoleStaff, &env.branch.ID, nil)
	require.NoError(t, err)
	require.NoError(t, env.users.Create(context.Background(), user))

	t.Run("valid credentials", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "SAM@billing.test", "password": "correct-horse"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := decode[appidentity.LoginResult](t, w).Data
		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, "staff", result.User.Role)

		w = env.do(t, http.MethodGet, "/api/v1/documents", result.AccessToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "sam@billing.test", "password": "wrong-horse"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidCredentials, errorCode(t, w))
	})

	t.Run("malformed body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
