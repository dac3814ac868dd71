package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionCounter(t *testing.T) {
	m := New()
	m.Transition("check_in", OutcomeSuccess)
	m.Transition("check_in", OutcomeSuccess)
	m.Transition("check_in", OutcomeRejected)
	m.PhotosSwept(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("check_in", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("check_in", OutcomeRejected)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.photosSwept))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("check_out", OutcomeError)
		m.PhotosSwept(1)
	})
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_request_duration_seconds_count{method="GET",route="/health",status="200"} 1`)
}
