package miio

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
)

// MetricsCollector collects device call metrics.
type MetricsCollector struct {
	calls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	reachable   prometheus.Gauge
	lastSuccess prometheus.Gauge
}

// NewMetricsCollector creates the collector. Register it with a
// prometheus.Registerer to expose it.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airpurifier_miio_calls_total",
			Help: "Device calls by method and outcome",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "airpurifier_miio_call_duration_seconds",
			Help:    "Device call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airpurifier_miio_device_reachable",
			Help: "1 if the last device call reached the device",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "airpurifier_miio_last_success_timestamp_seconds",
			Help: "Last successful device call timestamp (epoch seconds)",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.calls.Describe(ch)
	c.duration.Describe(ch)
	c.reachable.Describe(ch)
	c.lastSuccess.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.calls.Collect(ch)
	c.duration.Collect(ch)
	c.reachable.Collect(ch)
	c.lastSuccess.Collect(ch)
}

// DeviceStats holds call statistics for health reporting.
type DeviceStats struct {
	Calls           uint64
	Rejections      uint64
	TransportErrors uint64
	LastSuccess     time.Time
	Reachable       bool
}

// InstrumentedDevice records every call to the wrapped device.
type InstrumentedDevice struct {
	next    Device
	metrics *MetricsCollector

	mu    sync.Mutex
	stats DeviceStats
}

// NewInstrumentedDevice wraps next. metrics may be nil, in which case
// only DeviceStats are kept.
func NewInstrumentedDevice(next Device, metrics *MetricsCollector) *InstrumentedDevice {
	return &InstrumentedDevice{next: next, metrics: metrics}
}

// Call implements Device. Results and errors pass through unchanged.
func (d *InstrumentedDevice) Call(ctx context.Context, method string, params []any) ([]any, error) {
	start := time.Now()
	result, err := d.next.Call(ctx, method, params)
	elapsed := time.Since(start)

	outcome := classifyCall(method, result, err)
	d.record(method, outcome, elapsed)
	return result, err
}

// Stats returns a copy of the call statistics.
func (d *InstrumentedDevice) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *InstrumentedDevice) record(method, outcome string, elapsed time.Duration) {
	now := time.Now()

	d.mu.Lock()
	d.stats.Calls++
	switch outcome {
	case OutcomeTransportError:
		d.stats.TransportErrors++
		d.stats.Reachable = false
	case OutcomeRejected:
		d.stats.Rejections++
		d.stats.Reachable = true
	default:
		d.stats.Reachable = true
		d.stats.LastSuccess = now
	}
	d.mu.Unlock()

	if d.metrics == nil {
		return
	}
	d.metrics.calls.WithLabelValues(method, outcome).Inc()
	d.metrics.duration.WithLabelValues(method).Observe(elapsed.Seconds())
	if outcome == OutcomeTransportError {
		d.metrics.reachable.Set(0)
		return
	}
	d.metrics.reachable.Set(1)
	if outcome == OutcomeOK {
		d.metrics.lastSuccess.Set(float64(now.Unix()))
	}
}

func classifyCall(method string, result []any, err error) string {
	switch {
	case err != nil:
		return OutcomeTransportError
	case len(result) == 0:
		return OutcomeRejected
	case method != methodGetProp && result[0] != resultOK:
		return OutcomeRejected
	default:
		return OutcomeOK
	}
}
