package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := NewWorkflow(reg)

	w.OrderCreated("cod", true)
	w.OrderCreated("cod", false)
	w.OrderFailed("INSUFFICIENT_STOCK")
	w.OrderFailed("")
	w.StockMovement("out")
	w.StockMovement("out")
	w.PaymentCollected("partial")

	if got := testutil.ToFloat64(w.ordersCreated.WithLabelValues("cod")); got != 2 {
		t.Fatalf("expected 2 cod orders, got %f", got)
	}
	if got := testutil.ToFloat64(w.discountsApplied); got != 1 {
		t.Fatalf("expected 1 discounted order, got %f", got)
	}
	if got := testutil.ToFloat64(w.orderFailures.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty code to be labelled unknown, got %f", got)
	}
	if got := testutil.ToFloat64(w.stockMovements.WithLabelValues("out")); got != 2 {
		t.Fatalf("expected 2 out movements, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "shopflow_cod_collections_total", "status", "partial"); err != nil || got != 1 {
		t.Fatalf("expected one partial collection, got %f err=%v", got, err)
	}
}

func TestOutboxGaugeAndNilSafety(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewOutbox(reg)
	o.SetPending(12)
	o.Published("order_created")
	o.DeadLettered("max_attempts")

	if got := testutil.ToFloat64(o.pending); got != 12 {
		t.Fatalf("expected pending 12, got %f", got)
	}
	if got := testutil.ToFloat64(o.published.WithLabelValues("order_created")); got != 1 {
		t.Fatalf("expected one published, got %f", got)
	}

	var nilWorkflow *Workflow
	nilWorkflow.OrderCreated("cod", true)
	NewOutbox(nil).Failed("order_created")
}
