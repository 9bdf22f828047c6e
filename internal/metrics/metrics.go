// Package metrics exports scanner and retention activity to Prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lynxoskar/fileServe200/internal/retention"
)

// Prometheus is an events.Sink and retention.Recorder backed by Prometheus
// collectors.
type Prometheus struct {
	filesDeleted *prometheus.CounterVec
	bytesDeleted prometheus.Counter
	scanErrors   prometheus.Counter
	deleteErrors prometheus.Counter
	passDuration prometheus.Histogram
	lastPass     prometheus.Gauge
	trackedBytes prometheus.Gauge
}

// New creates and registers the collectors. A nil registerer means
// prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		filesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_deleted_total",
				Help:      "Files removed by retention passes",
			},
			[]string{"phase"},
		),
		bytesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_deleted_total",
				Help:      "Bytes freed by retention passes",
			},
		),
		scanErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_errors_total",
				Help:      "Entries skipped while scanning",
			},
		),
		deleteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delete_errors_total",
				Help:      "Planned deletions that failed",
			},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Wall time of retention passes",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		lastPass: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time the last retention pass finished",
			},
		),
		trackedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_bytes",
				Help:      "Bytes under the root after the last retention pass",
			},
		),
	}

	reg.MustRegister(
		m.filesDeleted,
		m.bytesDeleted,
		m.scanErrors,
		m.deleteErrors,
		m.passDuration,
		m.lastPass,
		m.trackedBytes,
	)

	return m
}

func (m *Prometheus) ScanError(string, error) {
	m.scanErrors.Inc()
}

func (m *Prometheus) FilesDeletedAge(count int) {
	m.filesDeleted.WithLabelValues(string(retention.PhaseAge)).Add(float64(count))
}

func (m *Prometheus) FilesDeletedSize(count int, _ int64) {
	m.filesDeleted.WithLabelValues(string(retention.PhaseSize)).Add(float64(count))
}

func (m *Prometheus) DeleteError(string, error) {
	m.deleteErrors.Inc()
}

// RecordPass updates the per-pass collectors.
func (m *Prometheus) RecordPass(_ context.Context, report retention.Report) error {
	m.bytesDeleted.Add(float64(report.BytesFreed))
	m.passDuration.Observe(report.Duration().Seconds())
	m.lastPass.Set(float64(report.Finished.Unix()))
	m.trackedBytes.Set(float64(report.Plan.TotalBytes - report.BytesFreed))
	return nil
}
