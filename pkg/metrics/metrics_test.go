package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("tutorme")
		New("tutorme")
	})
}

func TestMiddleware_RecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("tutorme")

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "/ping/:id", "204")))
}

func TestTrackSubscription(t *testing.T) {
	m := New("tutorme")

	done := m.TrackSubscription("sessions")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSubscriptions.WithLabelValues("sessions")))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSubscriptions.WithLabelValues("sessions")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.TrackSubscription("x")() })
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New("tutorme")
	m.ObserveResolution("tutor_resolved")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "tutorme_session_resolutions_total"))
}
