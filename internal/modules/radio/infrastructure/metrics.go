package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
)

// PrometheusMetrics records playback engine activity as Prometheus metrics.
type PrometheusMetrics struct {
	started         prometheus.Counter
	failures        *prometheus.CounterVec
	retries         prometheus.Counter
	givenUp         prometheus.Counter
	metadataUpdates prometheus.Counter
	activeGuilds    prometheus.Gauge
}

// NewPrometheusMetrics creates the playback metrics and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgrradio_playback_started_total",
			Help: "Streams that started playing",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sgrradio_playback_failures_total",
			Help: "Playback failures by stage",
		}, []string{"reason"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgrradio_reconnect_attempts_total",
			Help: "Reconnect attempts scheduled after a failure",
		}),
		givenUp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgrradio_playback_given_up_total",
			Help: "Guilds that stopped retrying after exhausting their retries",
		}),
		metadataUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgrradio_metadata_updates_total",
			Help: "Stream title changes shown on the status message",
		}),
		activeGuilds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sgrradio_active_guilds",
			Help: "Guilds currently streaming",
		}),
	}

	// Pre-create the label values so every series is exported from the start.
	for _, reason := range []string{ports.FailureConnect, ports.FailurePlay, ports.FailureStream} {
		m.failures.WithLabelValues(reason)
	}

	reg.MustRegister(
		m.started,
		m.failures,
		m.retries,
		m.givenUp,
		m.metadataUpdates,
		m.activeGuilds,
	)
	return m
}

func (m *PrometheusMetrics) PlaybackStarted() {
	m.started.Inc()
}

func (m *PrometheusMetrics) PlaybackFailed(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RetryScheduled() {
	m.retries.Inc()
}

func (m *PrometheusMetrics) GaveUp() {
	m.givenUp.Inc()
}

func (m *PrometheusMetrics) MetadataUpdated() {
	m.metadataUpdates.Inc()
}

func (m *PrometheusMetrics) SetActiveGuilds(n int) {
	m.activeGuilds.Set(float64(n))
}

// Ensure PrometheusMetrics implements ports.PlaybackMetrics.
var _ ports.PlaybackMetrics = (*PrometheusMetrics)(nil)
