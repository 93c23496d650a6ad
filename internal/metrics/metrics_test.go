package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := NewManager()
	m.ObserveRun("Balanced", "Hold", "fallback", 73.3, time.Second)
	m.ObserveRun("Balanced", "Hold", "model", 70, time.Second)
	m.RunFailed("price")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("Balanced", "Hold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.narrativeSource.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runFailures.WithLabelValues("price")))
}

func TestObserveNode(t *testing.T) {
	m := NewManager()
	m.ObserveNode("risk_analyst", 10*time.Millisecond, nil)
	m.ObserveNode("risk_analyst", 10*time.Millisecond, errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeErrors.WithLabelValues("risk_analyst")))
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.ObserveRun("a", "b", "c", 1, time.Second)
		m.RunFailed("price")
		m.ObserveNode("n", time.Second, nil)
		m.ObserveHTTP("/", 200, time.Second)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewManager(WithNamespace("test"))
	m.ObserveHTTP("/api/analyze", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{code="200",route="/api/analyze"} 1`)
}
