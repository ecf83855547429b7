// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates build activity counters for the dev server's /metrics
// endpoint. All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	buildsTotal    prometheus.Counter
	buildFailures  prometheus.Counter
	buildDuration  prometheus.Histogram
	modulesBuilt   prometheus.Counter
	artifactsBytes prometheus.Counter
}

// NewMetrics constructs a Metrics with its own registry, so tests and
// repeated server starts never collide on metric registration.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		buildsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbundle_builds_total",
			Help: "Number of build passes started.",
		}),
		buildFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbundle_build_failures_total",
			Help: "Number of build passes that ended in an error.",
		}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "modbundle_build_duration_seconds",
			Help:    "Wall-clock duration of build passes.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		modulesBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbundle_modules_processed_total",
			Help: "Number of modules read and transformed across all builds.",
		}),
		artifactsBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "modbundle_artifact_bytes_total",
			Help: "Total size of artifacts written across all builds.",
		}),
	}
}

// ObserveBuild records the outcome of one build pass.
func (m *Metrics) ObserveBuild(duration time.Duration, err error) {
	m.buildsTotal.Inc()
	m.buildDuration.Observe(duration.Seconds())
	if err != nil {
		m.buildFailures.Inc()
	}
}

// ObserveModule records one module processed during a build.
func (m *Metrics) ObserveModule() {
	m.modulesBuilt.Inc()
}

// ObserveArtifact records one artifact written during a build.
func (m *Metrics) ObserveArtifact(size int) {
	m.artifactsBytes.Add(float64(size))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
