package syncer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	resultApplied  = "applied"
	resultCleared  = "cleared"
	resultRejected = "rejected"

	reasonUnavailable = "unavailable"
	reasonUnfocused   = "unfocused"
	reasonFocused     = "focused"
	reasonReentry     = "reentry"
	reasonUnchanged   = "unchanged"
	reasonInflight    = "inflight"
	reasonEcho        = "echo"
	reasonReadFailed  = "read_failed"
	reasonEmpty       = "empty"
	reasonStale       = "stale"
)

// Metrics counts synchronization outcomes.
type Metrics struct {
	outboundApplies *prometheus.CounterVec
	outboundSkipped *prometheus.CounterVec
	inboundCommits  prometheus.Counter
	inboundSkipped  *prometheus.CounterVec
	connectionState prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered. Collectors already present
// in reg are reused, so several controllers can share one registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outboundApplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "molsync",
			Name:      "outbound_applies_total",
			Help:      "Editor apply calls completed, by result.",
		}, []string{"result"}),
		outboundSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "molsync",
			Name:      "outbound_skipped_total",
			Help:      "Outbound debounce expiries that did not apply, by reason.",
		}, []string{"reason"}),
		inboundCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "molsync",
			Name:      "inbound_commits_total",
			Help:      "Editor changes committed to the input field.",
		}),
		inboundSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "molsync",
			Name:      "inbound_skipped_total",
			Help:      "Inbound reads that did not update the field, by reason.",
		}, []string{"reason"}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "molsync",
			Name:      "connection_state",
			Help:      "0 uninitialized, 1 ready, 2 torn down.",
		}),
	}
	if reg == nil {
		return m
	}

	m.outboundApplies = register(reg, m.outboundApplies)
	m.outboundSkipped = register(reg, m.outboundSkipped)
	m.inboundCommits = register(reg, m.inboundCommits)
	m.inboundSkipped = register(reg, m.inboundSkipped)
	m.connectionState = register(reg, m.connectionState)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) applied(result string) {
	m.outboundApplies.WithLabelValues(result).Inc()
}

func (m *Metrics) outboundSkip(reason string) {
	m.outboundSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) committed() {
	m.inboundCommits.Inc()
}

func (m *Metrics) inboundSkip(reason string) {
	m.inboundSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) connection(s ConnState) {
	m.connectionState.Set(float64(s))
}
