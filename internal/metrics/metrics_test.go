package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Decision("role", "deny")
	m.Decision("role", "deny")
	m.Decision("role", "allow")
	m.Event("auth.login")
	m.Swept(3)
	m.Swept(0)
	m.ObserveRequest("GET", "/healthz", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Authorization.WithLabelValues("role", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Authorization.WithLabelValues("role", "allow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("auth.login")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweptTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/healthz", "200")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Decision("role", "allow")
		m.Event("x")
		m.Swept(1)
		m.ObserveRequest("GET", "/", 200)
	})
}
