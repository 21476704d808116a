package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.Requests.WithLabelValues(KindWrite).Inc()
	a.Requests.WithLabelValues(KindWrite).Inc()
	b.SafeloadViolations.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.Requests.WithLabelValues(KindWrite)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Requests.WithLabelValues(KindWrite)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.SafeloadViolations))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ActiveConnections.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "dspbridge_bridge_active_connections 3"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
