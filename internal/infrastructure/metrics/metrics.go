package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// Every recording method is safe to call on a nil *Metrics.
type Metrics struct {
	// Workflow metrics
	WorkflowTransitions *prometheus.CounterVec
	WorkflowRejections  *prometheus.CounterVec

	// Gateway metrics
	GatewayCalls    *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	CircuitState    *prometheus.GaugeVec

	// Reconciliation metrics
	PollAttempts      prometheus.Counter
	ActivePollers     prometheus.Gauge
	TerminalWrites    *prometheus.CounterVec
	ReconcileConflict *prometheus.CounterVec
	WebhooksReceived  *prometheus.CounterVec
	CallbackFailures  *prometheus.CounterVec

	// Ledger metrics
	LedgerConfirmations *prometheus.CounterVec
	BalanceCacheHits    *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all metrics with the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		WorkflowTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_workflow_transitions_total",
				Help: "Applied workflow transitions",
			},
			[]string{"process", "action"},
		),
		WorkflowRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_workflow_rejections_total",
				Help: "Workflow actions refused by a guard, by error kind",
			},
			[]string{"process", "kind"},
		),

		GatewayCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_gateway_calls_total",
				Help: "Payment gateway calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		GatewayDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tontiflex_gateway_duration_seconds",
				Help:    "Payment gateway call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CircuitState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tontiflex_gateway_circuit_state",
				Help: "Gateway circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		PollAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "tontiflex_reconciler_poll_attempts_total",
			Help: "Status queries issued by pollers",
		}),
		ActivePollers: f.NewGauge(prometheus.GaugeOpts{
			Name: "tontiflex_reconciler_active_pollers",
			Help: "Polling loops currently running",
		}),
		TerminalWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_reconciler_terminal_writes_total",
				Help: "Winning terminal writes by status and source",
			},
			[]string{"status", "source"},
		),
		ReconcileConflict: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_reconciler_conflicts_total",
				Help: "Terminal writes discarded because the transaction was already terminal",
			},
			[]string{"source"},
		),
		WebhooksReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_webhooks_received_total",
				Help: "Inbound webhooks by outcome",
			},
			[]string{"outcome"},
		),
		CallbackFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_reconciler_callback_failures_total",
				Help: "Workflow callbacks that returned an error",
			},
			[]string{"purpose"},
		),

		LedgerConfirmations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_ledger_confirmations_total",
				Help: "Ledger records confirmed by kind",
			},
			[]string{"kind"},
		),
		BalanceCacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_balance_cache_total",
				Help: "Balance cache lookups by result",
			},
			[]string{"result"},
		),

		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontiflex_outbox_events_total",
				Help: "Outbox events by publish outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Transition records an applied workflow transition.
func (m *Metrics) Transition(process, action string) {
	if m == nil {
		return
	}
	m.WorkflowTransitions.WithLabelValues(process, action).Inc()
}

// Rejection records a refused workflow action.
func (m *Metrics) Rejection(process, kind string) {
	if m == nil {
		return
	}
	m.WorkflowRejections.WithLabelValues(process, kind).Inc()
}

// GatewayCall records one provider call.
func (m *Metrics) GatewayCall(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(operation, outcome).Inc()
	m.GatewayDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// Circuit records a breaker state change.
func (m *Metrics) Circuit(name string, state float64) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(name).Set(state)
}

// Poll records one status query.
func (m *Metrics) Poll() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

// PollerStarted and PollerStopped track running loops.
func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.ActivePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.ActivePollers.Dec()
}

// TerminalWrite records a winning terminal write.
func (m *Metrics) TerminalWrite(status, source string) {
	if m == nil {
		return
	}
	m.TerminalWrites.WithLabelValues(status, source).Inc()
}

// Conflict records a discarded terminal write.
func (m *Metrics) Conflict(source string) {
	if m == nil {
		return
	}
	m.ReconcileConflict.WithLabelValues(source).Inc()
}

// Webhook records an inbound webhook outcome.
func (m *Metrics) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.WithLabelValues(outcome).Inc()
}

// CallbackFailed records a failed workflow callback.
func (m *Metrics) CallbackFailed(purpose string) {
	if m == nil {
		return
	}
	m.CallbackFailures.WithLabelValues(purpose).Inc()
}

// LedgerConfirmed records a confirmed ledger record.
func (m *Metrics) LedgerConfirmed(kind string) {
	if m == nil {
		return
	}
	m.LedgerConfirmations.WithLabelValues(kind).Inc()
}

// BalanceCache records a cache lookup result (hit, miss, error).
func (m *Metrics) BalanceCache(result string) {
	if m == nil {
		return
	}
	m.BalanceCacheHits.WithLabelValues(result).Inc()
}

// EventPublished records an outbox publish outcome.
func (m *Metrics) EventPublished(outcome string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(outcome).Inc()
}
