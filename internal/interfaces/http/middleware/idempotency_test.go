package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKey(t *testing.T) {
	router := gin.New()
	router.Use(IdempotencyKey())
	router.POST("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetIdempotencyKey(c))
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = send("order-7f3c")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "order-7f3c", w.Body.String())

	w = send(strings.Repeat("k", 256))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"BAD_REQUEST"`)

	w = send("tab\tinside")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
