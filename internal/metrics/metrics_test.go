package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.(prometheus.Metric).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.(prometheus.Metric).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getCounterVecValue(cv *prometheus.CounterVec, labels ...string) float64 {
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_CounterVecs(t *testing.T) {
	tests := []struct {
		name   string
		vec    *prometheus.CounterVec
		labels []string
	}{
		{"scraper requests", ScraperRequestsTotal, []string{"search", "success"}},
		{"extraction failures", ExtractionFailuresTotal, []string{"search", "structural_mismatch"}},
		{"upstream requests", UpstreamRequestsTotal, []string{"5xx"}},
		{"challenge solves", ChallengeSolvesTotal, []string{"success"}},
		{"session refreshes", SessionRefreshesTotal, []string{"challenge"}},
		{"downloads success", SubtitleDownloadsTotal, []string{"success"}},
		{"downloads error", SubtitleDownloadsTotal, []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := getCounterVecValue(tt.vec, tt.labels...)
			tt.vec.WithLabelValues(tt.labels...).Inc()
			after := getCounterVecValue(tt.vec, tt.labels...)

			if after != before+1 {
				t.Errorf("Expected counter to increment by 1, got diff %.0f", after-before)
			}
		})
	}
}

func TestMetrics_StructuralMismatchTotal(t *testing.T) {
	before := getCounterValue(StructuralMismatchTotal)
	StructuralMismatchTotal.Inc()
	after := getCounterValue(StructuralMismatchTotal)

	if after != before+1 {
		t.Errorf("Expected structural mismatch counter to increment by 1, got diff %.0f", after-before)
	}
}

func TestMetrics_TransportRetriesTotal(t *testing.T) {
	before := getCounterValue(TransportRetriesTotal)
	TransportRetriesTotal.Add(3)
	after := getCounterValue(TransportRetriesTotal)

	if after != before+3 {
		t.Errorf("Expected retries to increment by 3, got diff %.0f", after-before)
	}
}

func TestMetrics_SessionChallengeValid(t *testing.T) {
	SessionChallengeValid.Set(1)
	if val := getGaugeValue(SessionChallengeValid); val != 1 {
		t.Errorf("Expected gauge to be 1, got %.0f", val)
	}
	SessionChallengeValid.Set(0)
}

func TestMetrics_NewHTTPServer(t *testing.T) {
	srv := NewHTTPServer("localhost", 9090, nil)

	if srv.Addr != "localhost:9090" {
		t.Errorf("Expected address 'localhost:9090', got '%s'", srv.Addr)
	}

	if srv.Handler == nil {
		t.Error("Expected handler to be set")
	}
}

func TestMetrics_NewHTTPServer_DefaultPort(t *testing.T) {
	srv := NewHTTPServer("0.0.0.0", 0, nil)

	if srv.Addr != "0.0.0.0:9090" {
		t.Errorf("Expected address '0.0.0.0:9090', got '%s'", srv.Addr)
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_router_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := httptest.NewRecorder()
	Router(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_router_total 1") {
		t.Errorf("Expected the registered counter in the output, got %q", rec.Body.String())
	}
}

func TestRouter_Readiness(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadyFunc
		want  int
	}{
		{"no readiness check", nil, http.StatusOK},
		{"ready", func() bool { return true }, http.StatusOK},
		{"not ready", func() bool { return false }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Router(prometheus.NewRegistry(), tt.ready).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
