package quality

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "streamclient"

// Metrics exports telemetry to Prometheus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	bitrate        prometheus.Gauge
	jitter         prometheus.Gauge
	packetsLost    prometheus.Gauge
	latency        prometheus.Gauge
	reconnects     prometheus.Counter
	qualityChanges *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg disables metrics.
func NewMetrics(reg prometheus.Registerer, channelID string) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}
	labels := prometheus.Labels{"channel_id": channelID}
	m := &Metrics{
		bitrate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "stream",
			Name:        "bitrate_bps",
			ConstLabels: labels,
		}),
		jitter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "stream",
			Name:        "jitter_seconds",
			ConstLabels: labels,
		}),
		packetsLost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "stream",
			Name:        "packets_lost",
			ConstLabels: labels,
		}),
		latency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "control",
			Name:        "rtt_seconds",
			ConstLabels: labels,
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "session",
			Name:        "reconnects_total",
			ConstLabels: labels,
		}),
		qualityChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "stream",
			Name:        "quality_changes_total",
			ConstLabels: labels,
		}, []string{"action", "origin"}),
	}

	for _, c := range []prometheus.Collector{m.bitrate, m.jitter, m.packetsLost, m.latency, m.reconnects, m.qualityChanges} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Observe(s Snapshot, latency time.Duration) {
	if m == nil {
		return
	}
	m.bitrate.Set(s.Bitrate)
	m.jitter.Set(s.Jitter)
	m.packetsLost.Set(float64(s.PacketsLost))
	if latency > 0 {
		m.latency.Set(latency.Seconds())
	}
}

func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// IncQualityChange counts a directive; origin is "local" or "remote".
func (m *Metrics) IncQualityChange(action Action, origin string) {
	if m == nil {
		return
	}
	m.qualityChanges.WithLabelValues(string(action), origin).Inc()
}
