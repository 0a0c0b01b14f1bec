// Package metrics holds the plugin's prometheus collectors and the HTTP
// server that exposes them.
package metrics

import (
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind selects the upload counter an event is recorded under.
type Kind int

const (
	KindAccount Kind = iota
	KindSlot
	KindTransaction
	KindBlock
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics is an explicit handle over one registry. Components receive it at
// construction instead of reaching for package globals.
type Metrics struct {
	registry *prometheus.Registry

	uploads       map[Kind]*prometheus.CounterVec
	version       *prometheus.CounterVec
	kafkaStats    *prometheus.GaugeVec
	kafkaDelivery *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide handle, creating it on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

func newUploadCounter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, []string{"status"})
}

// New builds a handle backed by a fresh registry and records build info in
// the version counter.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: map[Kind]*prometheus.CounterVec{
			KindAccount:     newUploadCounter("upload_accounts_total", "Status of uploaded accounts"),
			KindSlot:        newUploadCounter("upload_slots_total", "Status of uploaded slots"),
			KindTransaction: newUploadCounter("upload_transactions_total", "Status of uploaded transactions"),
			KindBlock:       newUploadCounter("upload_blocks_total", "Status of uploaded blocks"),
		},
		version: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "version",
			Help: "Plugin version info",
		}, []string{"key", "value"}),
		kafkaStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kafka_stats",
			Help: "Kafka client broker metrics",
		}, []string{"broker", "metric"}),
		kafkaDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_delivery_total",
			Help: "Outcome of asynchronous record deliveries",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.uploads[KindAccount],
		m.uploads[KindSlot],
		m.uploads[KindTransaction],
		m.uploads[KindBlock],
		m.version,
		m.kafkaStats,
		m.kafkaDelivery,
	)

	for k, v := range buildInfo() {
		m.version.WithLabelValues(k, v).Inc()
	}
	return m
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordUpload counts one submission attempt of the given kind.
func (m *Metrics) RecordUpload(kind Kind, err error) {
	vec, ok := m.uploads[kind]
	if !ok {
		return
	}
	vec.WithLabelValues(status(err)).Inc()
}

// RecordDelivery counts the broker's final verdict on a record.
func (m *Metrics) RecordDelivery(err error) {
	m.kafkaDelivery.WithLabelValues(status(err)).Inc()
}

// SetKafkaStat sets a per-broker gauge.
func (m *Metrics) SetKafkaStat(broker, metric string, v float64) {
	m.kafkaStats.WithLabelValues(broker, metric).Set(v)
}

// AddKafkaStat adds to a per-broker gauge.
func (m *Metrics) AddKafkaStat(broker, metric string, v float64) {
	m.kafkaStats.WithLabelValues(broker, metric).Add(v)
}

func status(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusSuccess
}

func buildInfo() map[string]string {
	info := map[string]string{"version": "devel"}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if bi.Main.Version != "" {
		info["version"] = bi.Main.Version
	}
	info["go"] = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info["git"] = s.Value
		case "vcs.time":
			info["build_time"] = s.Value
		case "GOOS":
			info["os"] = s.Value
		case "GOARCH":
			info["arch"] = s.Value
		}
	}
	return info
}
