// ABOUTME: Prometheus metrics for the dev auth service
// ABOUTME: Counters for auth outcomes plus an active-session gauge on a private registry

// Package metrics defines Prometheus metrics for the dev auth service.
//
// Metric naming follows Prometheus conventions:
//   - ndaauth_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// Metrics holds the service's collectors. Each instance owns its registry
// so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// LoginsTotal counts credential submissions by result.
	LoginsTotal *prometheus.CounterVec
	// MFAVerificationsTotal counts MFA code submissions by result.
	MFAVerificationsTotal *prometheus.CounterVec
	// RefreshesTotal counts session refresh calls by result.
	RefreshesTotal *prometheus.CounterVec
	// LockoutsTotal counts accounts locked after exhausting MFA attempts.
	LockoutsTotal prometheus.Counter
	// RateLimitedTotal counts requests rejected by the rate limiter by path.
	RateLimitedTotal *prometheus.CounterVec
	// ActiveSessions is the number of live server sessions.
	ActiveSessions prometheus.Gauge
	// RequestDurationSeconds is a histogram of handler latency by route.
	RequestDurationSeconds *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndaauth_logins_total",
				Help: "Total credential submissions by result.",
			},
			[]string{"result"},
		),
		MFAVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndaauth_mfa_verifications_total",
				Help: "Total MFA code submissions by result.",
			},
			[]string{"result"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndaauth_refreshes_total",
				Help: "Total session refresh calls by result.",
			},
			[]string{"result"},
		),
		LockoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ndaauth_lockouts_total",
				Help: "Total accounts locked after exhausting MFA attempts.",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ndaauth_rate_limited_total",
				Help: "Total requests rejected by the rate limiter.",
			},
			[]string{"path"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ndaauth_active_sessions",
				Help: "Number of live server sessions.",
			},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ndaauth_request_duration_seconds",
				Help:    "Duration of auth service requests in seconds.",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.LoginsTotal,
		m.MFAVerificationsTotal,
		m.RefreshesTotal,
		m.LockoutsTotal,
		m.RateLimitedTotal,
		m.ActiveSessions,
		m.RequestDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLogin records one credential submission.
func (m *Metrics) RecordLogin(result string) {
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// RecordMFA records one MFA submission.
func (m *Metrics) RecordMFA(result string) {
	m.MFAVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordRefresh records one refresh call.
func (m *Metrics) RecordRefresh(result string) {
	m.RefreshesTotal.WithLabelValues(result).Inc()
}

// RecordLockout records one account lockout.
func (m *Metrics) RecordLockout() {
	m.LockoutsTotal.Inc()
}

// RecordRateLimited records one rejected request.
func (m *Metrics) RecordRateLimited(path string) {
	m.RateLimitedTotal.WithLabelValues(path).Inc()
}

// ObserveRequest records handler latency for a route.
func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.RequestDurationSeconds.WithLabelValues(route).Observe(d.Seconds())
}
