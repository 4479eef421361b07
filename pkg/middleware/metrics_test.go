package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetric returns the first series of c whose labels include labels.
func collectMetric(t *testing.T, c prometheus.Collector, labels map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 256)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		have := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			have[lp.GetName()] = lp.GetValue()
		}
		match := true
		for k, v := range labels {
			if have[k] != v {
				match = false
				break
			}
		}
		if match {
			return d
		}
	}
	return nil
}

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-route-svc"))
	r.Get("/api/v1/products/{idOrSlug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, slug := range []string{"red-shirt", "blue-shirt", "green-shirt"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+slug, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	m := collectMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-route-svc", "method": "GET", "path": "/api/v1/products/{idOrSlug}", "status": "200",
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(3), m.GetCounter().GetValue())

	h := collectMetric(t, httpRequestDuration, map[string]string{"service": "metrics-route-svc"})
	require.NotNil(t, h)
	assert.Equal(t, uint64(3), h.GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_RecordsErrorStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-status-svc"))
	r.Post("/api/v1/vendor/products", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/vendor/products", nil))

	m := collectMetric(t, httpRequestsTotal, map[string]string{"service": "metrics-status-svc", "status": "409"})
	require.NotNil(t, m)
	assert.Equal(t, float64(1), m.GetCounter().GetValue())
}

func TestPrometheusMetrics_InFlightReturnsToZero(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(PrometheusMetrics("metrics-inflight-svc"))
	r.Get("/x", func(w http.ResponseWriter, r *http.Request) {
		during = collectMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight-svc"}).GetGauge().GetValue()
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, float64(1), during)
	after := collectMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight-svc"})
	assert.Equal(t, float64(0), after.GetGauge().GetValue())
}
