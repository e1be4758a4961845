// Package metrics exposes scan results as Prometheus metrics. Gauges
// carry the last scan's numbers, counters accumulate across scans; both
// matter in scheduled mode where the process is long-lived.
package metrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/justpow98/fleetwatch/pkg/session"
)

var defaultMetrics *Metrics

// Metric holds data points from one fleet scan.
type Metric struct {
	Scanned int // Number of services evaluated.
	Updated int // Number of services with accepted updates.
	Failed  int // Number of services whose evaluation failed.
	Skipped int // Number of services excluded by skip rules.
}

// Metrics processes and exposes scan metrics.
type Metrics struct {
	channel      chan *Metric
	scanned      prometheus.Gauge
	updated      prometheus.Gauge
	failed       prometheus.Gauge
	total        prometheus.Counter
	skippedTotal prometheus.Counter
	dropped      prometheus.Counter
	stopCh       chan struct{}
	shutdownOnce sync.Once
}

// NewWithRegistry creates a Metrics handler registered on the given
// Prometheus registry.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	const channelBufferSize = 10

	metrics := &Metrics{
		scanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_services_scanned",
			Help: "Number of services evaluated during the last scan",
		}),
		updated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_services_updated",
			Help: "Number of services with accepted updates during the last scan",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwatch_services_failed",
			Help: "Number of services whose evaluation failed during the last scan",
		}),
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_scans_total",
			Help: "Number of scans since fleetwatch started",
		}),
		skippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_services_skipped_total",
			Help: "Total number of services excluded by skip rules",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_metrics_dropped_total",
			Help: "Number of metrics dropped due to a full channel",
		}),
		channel: make(chan *Metric, channelBufferSize),
		stopCh:  make(chan struct{}),
	}

	collectors := []prometheus.Collector{
		metrics.scanned,
		metrics.updated,
		metrics.failed,
		metrics.total,
		metrics.skippedTotal,
		metrics.dropped,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			alreadyRegistered := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, &alreadyRegistered) {
				return nil, fmt.Errorf("failed to register metric: %w", err)
			}
		}
	}

	go metrics.handleUpdates()

	return metrics, nil
}

// Default initializes or returns the singleton handler on the default
// registry. It panics on registration failure.
func Default() *Metrics {
	if defaultMetrics != nil {
		return defaultMetrics
	}

	var err error

	defaultMetrics, err = NewWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	return defaultMetrics
}

// NewMetric converts a scan report into a metric sample.
func NewMetric(report *session.Report) *Metric {
	return &Metric{
		Scanned: len(report.All()),
		Updated: len(report.Updated()),
		Failed:  len(report.Failed()),
		Skipped: len(report.Skipped()),
	}
}

// RegisterScan enqueues a scan metric. When the channel is full the
// sample is dropped and counted instead of blocking the scan loop.
func (m *Metrics) RegisterScan(metric *Metric) {
	select {
	case m.channel <- metric:
	default:
		m.dropped.Inc()
	}
}

// QueueIsEmpty reports whether all queued samples have been processed.
func (m *Metrics) QueueIsEmpty() bool {
	return len(m.channel) == 0
}

// Shutdown stops the processing goroutine. Safe to call more than once.
func (m *Metrics) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
	})
}

// handleUpdates applies queued samples to the Prometheus collectors.
func (m *Metrics) handleUpdates() {
	for {
		select {
		case metric, ok := <-m.channel:
			if !ok {
				return
			}

			m.total.Inc()
			m.scanned.Set(float64(metric.Scanned))
			m.updated.Set(float64(metric.Updated))
			m.failed.Set(float64(metric.Failed))
			m.skippedTotal.Add(float64(metric.Skipped))
		case <-m.stopCh:
			return
		}
	}
}
