package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveOperation("login", OutcomeOK)
	m.ObserveOperation("login", OutcomeOK)
	m.ObserveOperation("login", "INVALID_CREDENTIALS")
	m.ObserveCacheLookup("user", CacheHit)
	m.AddPurged(3)
	m.AddPurged(0)
	m.ObserveRateLimited("register")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("login", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("login", "INVALID_CREDENTIALS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("user", CacheHit)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("register")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveOperation("login", OutcomeOK)
		m.ObserveCacheLookup("user", CacheMiss)
		m.AddPurged(1)
		m.ObserveRateLimited("global")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveOperation("register", OutcomeOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `identity_operations_total{operation="register",outcome="ok"} 1`)
}
