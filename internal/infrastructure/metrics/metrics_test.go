package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistryRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewWithRegistry(registry)

	if m.WorkflowTransitions == nil || m.TerminalWrites == nil || m.GatewayCalls == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.Transition("adhesion", "validate")
	m.TerminalWrite("success", "webhook")
	m.Conflict("poll")
	m.GatewayCall("initiate", "ok", 20*time.Millisecond)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if got := testutil.ToFloat64(m.TerminalWrites.WithLabelValues("success", "webhook")); got != 1 {
		t.Fatalf("expected 1 terminal write, got %v", got)
	}
	if got := testutil.ToFloat64(m.ReconcileConflict.WithLabelValues("poll")); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.Transition("loan", "approve")
	m.Rejection("loan", "invalid_transition")
	m.Poll()
	m.PollerStarted()
	m.PollerStopped()
	m.Webhook("rejected")
	m.CallbackFailed("withdrawal")
	m.LedgerConfirmed("credit")
	m.BalanceCache("hit")
	m.EventPublished("ok")
	m.Circuit("gateway", 2)
}
