// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing, which keeps handlers and tests free of setup.
type Metrics struct {
	Requests      *prometheus.CounterVec
	Authorization *prometheus.CounterVec
	AuthEvents    *prometheus.CounterVec
	SweptTokens   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cesieats",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		Authorization: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cesieats",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization middleware decisions by check and outcome",
		}, []string{"check", "outcome"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cesieats",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Authentication lifecycle events by type",
		}, []string{"type"}),
		SweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cesieats",
			Subsystem: "auth",
			Name:      "expired_refresh_tokens_cleared_total",
			Help:      "Expired refresh tokens cleared by the sweeper",
		}),
	}
	reg.MustRegister(m.Requests, m.Authorization, m.AuthEvents, m.SweptTokens)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Decision records the outcome of one authorization check: "allow",
// "deny" or "error".
func (m *Metrics) Decision(check, outcome string) {
	if m == nil {
		return
	}
	m.Authorization.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) Event(typ string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(typ).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptTokens.Add(float64(n))
}
