package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	m := telemetry.NewHTTPMetrics()

	router := gin.New()
	router.Use(PrometheusMetrics(m))
	router.GET("/documents/:id", okHandler)

	for _, id := range []string{"a", "b"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	expected := `
# HELP billing_http_requests_total HTTP requests by route, method and status.
# TYPE billing_http_requests_total counter
billing_http_requests_total{method="GET",route="/documents/:id",status="200"} 2
billing_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "billing_http_requests_total"))
}

func TestPrometheusMetrics_Nil(t *testing.T) {
	router := gin.New()
	router.Use(PrometheusMetrics(nil))
	router.GET("/test", okHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
