// Package metrics exposes Prometheus instrumentation for the engine.
//
// A nil *Metrics is valid and records nothing, so components take it as an
// optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tunebook"

// Metrics holds every collector the engine reports to.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec   // boundary requests by method and status
	requestDuration *prometheus.HistogramVec // boundary request latency by method
	ingestRecords   *prometheus.CounterVec   // normalized records written by kind
	ingestWarnings  prometheus.Counter       // warnings returned by ingest
	fetches         *prometheus.CounterVec   // source fetches by outcome
	indexBuilds     prometheus.Counter       // fuzzy index builds
	indexBuildTime  prometheus.Histogram     // fuzzy index build latency
	indexSize       prometheus.Gauge         // tunes in the fuzzy index
	searchCache     *prometheus.CounterVec   // search cache lookups by result
}

// New creates the collectors and registers them, with Go runtime and
// process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total boundary requests handled",
		}, []string{"method", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Boundary request handling latency",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"method"}),

		ingestRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Normalized records written by kind",
		}, []string{"kind"}),

		ingestWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "warnings_total",
			Help:      "Warnings produced while ingesting",
		}),

		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "fetches_total",
			Help:      "Source fetches by outcome",
		}, []string{"outcome"}),

		indexBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Fuzzy index builds",
		}),

		indexBuildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Fuzzy index build latency",
			Buckets:   prometheus.DefBuckets,
		}),

		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "tunes",
			Help:      "Tunes held by the fuzzy index",
		}),

		searchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cache_lookups_total",
			Help:      "Search result cache lookups by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.ingestRecords,
		m.ingestWarnings,
		m.fetches,
		m.indexBuilds,
		m.indexBuildTime,
		m.indexSize,
		m.searchCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveRequest records one handled boundary request.
func (m *Metrics) ObserveRequest(method string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.requests.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordIngest adds the per-kind counts and warnings of one ingest.
func (m *Metrics) RecordIngest(counts map[string]int, warnings int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.ingestRecords.WithLabelValues(kind).Add(float64(n))
	}
	m.ingestWarnings.Add(float64(warnings))
}

// RecordFetch counts a source fetch as "ok" or "failed".
func (m *Metrics) RecordFetch(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.fetches.WithLabelValues("ok").Inc()
		return
	}
	m.fetches.WithLabelValues("failed").Inc()
}

// RecordIndexBuild records a completed fuzzy index build.
func (m *Metrics) RecordIndexBuild(size int, d time.Duration) {
	if m == nil {
		return
	}
	m.indexBuilds.Inc()
	m.indexBuildTime.Observe(d.Seconds())
	m.indexSize.Set(float64(size))
}

// RecordIndexInvalidated resets the index size gauge.
func (m *Metrics) RecordIndexInvalidated() {
	if m == nil {
		return
	}
	m.indexSize.Set(0)
}

// RecordCacheLookup counts a search cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.searchCache.WithLabelValues("hit").Inc()
		return
	}
	m.searchCache.WithLabelValues("miss").Inc()
}
