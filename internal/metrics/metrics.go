// Package metrics provides Prometheus metrics for imports and the read API.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// ImportMetrics counts imported rows and finished runs.
// A nil *ImportMetrics records nothing.
type ImportMetrics struct {
	rowsTotal    *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	lastRunEpoch *prometheus.GaugeVec
}

// NewImportMetrics creates and registers import metrics.
func NewImportMetrics(registry prometheus.Registerer) (*ImportMetrics, error) {
	m := &ImportMetrics{
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acat_import_rows_total",
				Help: "Total number of import rows by record kind and outcome",
			},
			[]string{"kind", "outcome"}, // outcome: created, updated, error
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acat_import_runs_total",
				Help: "Total number of finished import runs",
			},
			[]string{"import_type", "status", "dry_run"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "acat_import_run_duration_seconds",
				Help:    "Wall time of import runs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"import_type"},
		),
		lastRunEpoch: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "acat_import_last_run_timestamp_seconds",
				Help: "Unix time of the last finished import run by status",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{m.rowsTotal, m.runsTotal, m.runDuration, m.lastRunEpoch} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register import metrics: %w", err)
		}
	}
	return m, nil
}

// RecordRow counts one row of kind with outcome.
func (m *ImportMetrics) RecordRow(kind, outcome string) {
	if m == nil {
		return
	}
	m.rowsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRun counts a finished run.
func (m *ImportMetrics) RecordRun(importType, status string, dryRun bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(importType, status, strconv.FormatBool(dryRun)).Inc()
	m.runDuration.WithLabelValues(importType).Observe(duration.Seconds())
	m.lastRunEpoch.WithLabelValues(status).SetToCurrentTime()
}

// Push sends everything gathered by gatherer to a Pushgateway. Batch
// commands exit before a scrape could happen, so they push instead.
func Push(ctx context.Context, url, job string, gatherer prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// HTTPMetrics counts API requests per route.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(registry prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "acat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "acat_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
	}
	return m, nil
}

// Middleware records every request under its chi route pattern.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
