// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record/Set methods are no-ops on a nil *Metrics.
type Metrics struct {
	// Stream metrics
	MessagesReceived  prometheus.Counter
	MessagesMalformed prometheus.Counter
	ConnectionState   *prometheus.GaugeVec
	ReconnectAttempts prometheus.Counter
	HighestSlotSeen   prometheus.Gauge

	// Decode metrics
	InstructionsClassified *prometheus.CounterVec
	InstructionsSkipped    *prometheus.CounterVec
	EventsProjected        *prometheus.CounterVec
	EventsFiltered         *prometheus.CounterVec

	// Persistence metrics
	PersistResults *prometheus.CounterVec
	PersistLatency prometheus.Histogram
	QueueDepth     prometheus.Gauge

	// Health metrics
	LastSuccessfulPersist prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_event_log"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Stream metrics
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_received_total",
			Help:      "Total number of upstream messages received",
		}),
		MessagesMalformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_malformed_total",
			Help:      "Total number of upstream messages discarded as malformed",
		}),
		ConnectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of failed connection attempts",
		}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen in a notification",
		}),

		// Decode metrics
		InstructionsClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "instructions_classified_total",
			Help:      "Total number of instructions decoded by family and type",
		}, []string{"family", "type"}),
		InstructionsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "instructions_skipped_total",
			Help:      "Total number of instructions skipped by reason",
		}, []string{"reason"}),
		EventsProjected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_projected_total",
			Help:      "Total number of canonical events produced by family and type",
		}, []string{"family", "type"}),
		EventsFiltered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_filtered_total",
			Help:      "Total number of classified instructions below threshold",
		}, []string{"family", "type"}),

		// Persistence metrics
		PersistResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "persist_results_total",
			Help:      "Total number of persist calls by outcome",
		}, []string{"outcome"}),
		PersistLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "persist_latency_seconds",
			Help:      "Persist call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "queue_depth",
			Help:      "Events waiting for a persistence worker",
		}),

		// Health metrics
		LastSuccessfulPersist: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_persist_timestamp",
			Help:      "Unix timestamp of the last successful persist",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordMessage counts a received upstream message.
func (m *Metrics) RecordMessage() {
	if m == nil {
		return
	}
	m.MessagesReceived.Inc()
}

// RecordMalformed counts a discarded upstream message.
func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.MessagesMalformed.Inc()
}

// SetConnectionState marks state as current among all.
func (m *Metrics) SetConnectionState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

// RecordReconnect counts a failed connection attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// UpdateHighestSlot sets the highest slot gauge.
func (m *Metrics) UpdateHighestSlot(slot uint64) {
	if m == nil {
		return
	}
	m.HighestSlotSeen.Set(float64(slot))
}

// RecordClassified counts a decoded instruction.
func (m *Metrics) RecordClassified(family, typ string) {
	if m == nil {
		return
	}
	m.InstructionsClassified.WithLabelValues(family, typ).Inc()
}

// RecordSkipped counts a skipped instruction.
func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.InstructionsSkipped.WithLabelValues(reason).Inc()
}

// RecordProjected counts a produced canonical event.
func (m *Metrics) RecordProjected(family, typ string) {
	if m == nil {
		return
	}
	m.EventsProjected.WithLabelValues(family, typ).Inc()
}

// RecordFiltered counts an instruction dropped by the threshold.
func (m *Metrics) RecordFiltered(family, typ string) {
	if m == nil {
		return
	}
	m.EventsFiltered.WithLabelValues(family, typ).Inc()
}

// RecordPersist records the outcome and latency of a persist call.
func (m *Metrics) RecordPersist(outcome string, seconds float64, unixNow int64) {
	if m == nil {
		return
	}
	m.PersistResults.WithLabelValues(outcome).Inc()
	m.PersistLatency.Observe(seconds)
	if outcome != "error" {
		m.LastSuccessfulPersist.Set(float64(unixNow))
	}
}

// SetQueueDepth sets the dispatcher queue depth.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
