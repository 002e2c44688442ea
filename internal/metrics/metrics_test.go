// ABOUTME: Tests for dev auth service metrics
// ABOUTME: Reads collector values through client_model DTOs

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(labels...).Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(hv *prometheus.HistogramVec, labels ...string) uint64 {
	m := &dto.Metric{}
	if h, ok := hv.WithLabelValues(labels...).(prometheus.Metric); ok {
		if err := h.Write(m); err != nil {
			return 0
		}
		return m.GetHistogram().GetSampleCount()
	}
	return 0
}

func TestRecordAuthOutcomes(t *testing.T) {
	m := New()

	m.RecordLogin(ResultSuccess)
	m.RecordLogin(ResultFailure)
	m.RecordLogin(ResultFailure)
	m.RecordMFA(ResultSuccess)
	m.RecordRefresh(ResultRejected)
	m.RecordLockout()

	if got := getCounterValue(m.LoginsTotal, ResultFailure); got != 2 {
		t.Errorf("LoginsTotal{failure} = %f, want 2", got)
	}
	if got := getCounterValue(m.MFAVerificationsTotal, ResultSuccess); got != 1 {
		t.Errorf("MFAVerificationsTotal{success} = %f, want 1", got)
	}
	if got := getCounterValue(m.RefreshesTotal, ResultRejected); got != 1 {
		t.Errorf("RefreshesTotal{rejected} = %f, want 1", got)
	}

	c := &dto.Metric{}
	if err := m.LockoutsTotal.Write(c); err != nil || c.GetCounter().GetValue() != 1 {
		t.Errorf("LockoutsTotal = %f, want 1", c.GetCounter().GetValue())
	}
}

func TestActiveSessions(t *testing.T) {
	m := New()
	m.ActiveSessions.Inc()
	m.ActiveSessions.Inc()
	m.ActiveSessions.Dec()

	if got := getGaugeValue(m.ActiveSessions); got != 1 {
		t.Errorf("ActiveSessions = %f, want 1", got)
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/auth/login", 12*time.Millisecond)

	if got := getHistogramCount(m.RequestDurationSeconds, "/api/auth/login"); got != 1 {
		t.Errorf("RequestDurationSeconds sample count = %d, want 1", got)
	}
}

func TestSeparateInstancesDoNotShareState(t *testing.T) {
	a, b := New(), New()
	a.RecordRateLimited("/api/auth/login")

	if got := getCounterValue(b.RateLimitedTotal, "/api/auth/login"); got != 0 {
		t.Errorf("second instance RateLimitedTotal = %f, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordLogin(ResultSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `ndaauth_logins_total{result="success"} 1`) {
		t.Errorf("expected login counter in exposition output, got:\n%s", body)
	}
}
