// Package metrics exposes operational counters and histograms for the
// core's binary downloads, process lifecycle, and pull pipeline
// outcomes (SPEC_FULL.md §C). The core never runs an HTTP server
// itself (out of scope per §1); Handler returns a promhttp.Handler for
// an embedding CLI to mount wherever it likes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the core reports through.
type Metrics struct {
	registry *prometheus.Registry

	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration *prometheus.HistogramVec
	InstallsTotal    *prometheus.CounterVec

	ProcessStartsTotal *prometheus.CounterVec
	ProcessStopsTotal  *prometheus.CounterVec
	ProcessesRunning   *prometheus.GaugeVec

	PullTotal    *prometheus.CounterVec
	PullDuration *prometheus.HistogramVec
}

// New builds a Metrics instance with its own registry, so concurrent
// tests (or multiple Core instances in one process) never collide on
// prometheus's default global registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spindb_binary_downloads_total",
				Help: "Total engine binary download attempts, by engine and outcome.",
			},
			[]string{"engine", "status"},
		),
		DownloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spindb_binary_install_duration_seconds",
				Help:    "Time to download, extract, and verify an engine binary.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"engine"},
		),
		InstallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spindb_binary_installs_total",
				Help: "Total completed engine binary installs, by engine and outcome.",
			},
			[]string{"engine", "status"},
		),
		ProcessStartsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spindb_process_starts_total",
				Help: "Total container process start attempts, by engine and outcome.",
			},
			[]string{"engine", "status"},
		),
		ProcessStopsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spindb_process_stops_total",
				Help: "Total container process stop attempts, by engine and outcome.",
			},
			[]string{"engine", "status"},
		),
		ProcessesRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spindb_processes_running",
				Help: "Currently supervised running processes, by engine.",
			},
			[]string{"engine"},
		),
		PullTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spindb_pull_total",
				Help: "Total pull pipeline runs, by mode and outcome.",
			},
			[]string{"mode", "status"},
		),
		PullDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spindb_pull_duration_seconds",
				Help:    "Pull pipeline wall-clock duration.",
				Buckets: []float64{1, 5, 15, 30, 60, 180, 600},
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(
		m.DownloadsTotal, m.DownloadDuration, m.InstallsTotal,
		m.ProcessStartsTotal, m.ProcessStopsTotal, m.ProcessesRunning,
		m.PullTotal, m.PullDuration,
	)
	return m
}

// RecordDownload records one download attempt's outcome.
func (m *Metrics) RecordDownload(engine, status string, duration time.Duration) {
	m.DownloadsTotal.WithLabelValues(engine, status).Inc()
	m.DownloadDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// RecordInstall records one completed install's outcome.
func (m *Metrics) RecordInstall(engine, status string) {
	m.InstallsTotal.WithLabelValues(engine, status).Inc()
}

// RecordProcessStart records one Start() outcome and, on success, marks
// the engine's running gauge up by one.
func (m *Metrics) RecordProcessStart(engine, status string) {
	m.ProcessStartsTotal.WithLabelValues(engine, status).Inc()
	if status == "success" {
		m.ProcessesRunning.WithLabelValues(engine).Inc()
	}
}

// RecordProcessStop records one Stop() outcome and, on success, marks
// the engine's running gauge down by one.
func (m *Metrics) RecordProcessStop(engine, status string) {
	m.ProcessStopsTotal.WithLabelValues(engine, status).Inc()
	if status == "success" {
		m.ProcessesRunning.WithLabelValues(engine).Dec()
	}
}

// RecordPull records one Pull Pipeline run's outcome.
func (m *Metrics) RecordPull(mode, status string, duration time.Duration) {
	m.PullTotal.WithLabelValues(mode, status).Inc()
	m.PullDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// Handler returns an http.Handler serving this instance's metrics in
// the Prometheus text exposition format, for the embedding CLI to
// mount on whatever transport it runs.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
