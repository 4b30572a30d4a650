package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/health", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/health", http.MethodGet, "200")); got != 2 {
		t.Fatalf("expected 2 health requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("unmatched", http.MethodGet, "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}
