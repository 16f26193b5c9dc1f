package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewImportMetrics(registry)
	require.NoError(t, err)

	m.RecordRow("species", "created")
	m.RecordRow("species", "created")
	m.RecordRow("occurrence", "error")
	m.RecordRun("full", "success", false, 3*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.rowsTotal.WithLabelValues("species", "created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rowsTotal.WithLabelValues("occurrence", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsTotal.WithLabelValues("full", "success", "false")))
}

func TestImportMetricsDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewImportMetrics(registry)
	require.NoError(t, err)

	_, err = NewImportMetrics(registry)
	assert.Error(t, err)
}

func TestNilImportMetricsIsNoop(t *testing.T) {
	var m *ImportMetrics
	assert.NotPanics(t, func() {
		m.RecordRow("species", "created")
		m.RecordRun("species", "success", true, time.Second)
	})
}

func TestPushWithoutURLIsNoop(t *testing.T) {
	assert.NoError(t, Push(t.Context(), "", "acat", prometheus.NewRegistry()))
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/species/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/species/12", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/species/{id}", "GET", "404")))
}
