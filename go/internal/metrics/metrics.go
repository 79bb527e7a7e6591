package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes client health counters that are safe to scrape via
// Prometheus. All recording methods tolerate a nil receiver so components
// can run without metrics in tests.
type Metrics struct {
	registry              *prometheus.Registry
	snapshotsTotal        *prometheus.CounterVec
	streamFailuresTotal   prometheus.Counter
	pollFailuresTotal     prometheus.Counter
	failoversTotal        prometheus.Counter
	notificationsTotal    *prometheus.CounterVec
	transportState        prometheus.Gauge
	labelPointsComputed   prometheus.Counter
}

// New creates a fresh Metrics registry with all client metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	snapshotsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liveclient",
		Name:      "snapshots_total",
		Help:      "Snapshots delivered, by transport channel",
	}, []string{"channel"})

	streamFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liveclient",
		Name:      "stream_failures_total",
		Help:      "Push stream open or delivery failures",
	})

	pollFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liveclient",
		Name:      "poll_failures_total",
		Help:      "Snapshot poll failures",
	})

	failoversTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liveclient",
		Name:      "failovers_total",
		Help:      "Transitions from the push stream to polling",
	})

	notificationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liveclient",
		Name:      "notifications_enqueued_total",
		Help:      "Operator notifications enqueued, by kind",
	}, []string{"kind"})

	transportState := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liveclient",
		Name:      "transport_state",
		Help:      "Current transport state (0 idle, 1 streaming, 2 reconnect wait, 3 polling)",
	})

	labelPointsComputed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liveclient",
		Name:      "label_points_computed_total",
		Help:      "Territory label point computations",
	})

	registry.MustRegister(
		snapshotsTotal,
		streamFailuresTotal,
		pollFailuresTotal,
		failoversTotal,
		notificationsTotal,
		transportState,
		labelPointsComputed,
	)

	return &Metrics{
		registry:            registry,
		snapshotsTotal:      snapshotsTotal,
		streamFailuresTotal: streamFailuresTotal,
		pollFailuresTotal:   pollFailuresTotal,
		failoversTotal:      failoversTotal,
		notificationsTotal:  notificationsTotal,
		transportState:      transportState,
		labelPointsComputed: labelPointsComputed,
	}
}

// Registry returns the underlying registry for the scrape handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SnapshotDelivered records a delivered snapshot for the given channel
// ("stream" or "poll").
func (m *Metrics) SnapshotDelivered(channel string) {
	if m == nil {
		return
	}
	m.snapshotsTotal.WithLabelValues(channel).Inc()
}

// StreamFailure records a push channel failure.
func (m *Metrics) StreamFailure() {
	if m == nil {
		return
	}
	m.streamFailuresTotal.Inc()
}

// PollFailure records a failed snapshot poll.
func (m *Metrics) PollFailure() {
	if m == nil {
		return
	}
	m.pollFailuresTotal.Inc()
}

// Failover records a stream-to-polling fallback.
func (m *Metrics) Failover() {
	if m == nil {
		return
	}
	m.failoversTotal.Inc()
}

// NotificationEnqueued records one enqueued operator notification.
func (m *Metrics) NotificationEnqueued(kind string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind).Inc()
}

// SetTransportState publishes the current transport state.
func (m *Metrics) SetTransportState(state int) {
	if m == nil {
		return
	}
	m.transportState.Set(float64(state))
}

// LabelPointComputed records one label point search.
func (m *Metrics) LabelPointComputed() {
	if m == nil {
		return
	}
	m.labelPointsComputed.Inc()
}
