package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopflow"

// Workflow counts order, stock and payment outcomes.
type Workflow struct {
	ordersCreated     *prometheus.CounterVec
	orderFailures     *prometheus.CounterVec
	ordersCancelled   prometheus.Counter
	statusTransitions *prometheus.CounterVec
	stockMovements    *prometheus.CounterVec
	discountsApplied  prometheus.Counter
	paymentsCollected *prometheus.CounterVec
	collectionIssues  *prometheus.CounterVec
}

// NewWorkflow registers the workflow collectors. A nil registerer yields a no-op recorder.
func NewWorkflow(reg prometheus.Registerer) *Workflow {
	if reg == nil {
		return &Workflow{}
	}
	w := &Workflow{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders committed, by payment method.",
		}, []string{"payment_method"}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_create_failures_total",
			Help:      "Rejected order creations, by error code.",
		}, []string{"code"}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled with stock restored.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Accepted order status transitions.",
		}, []string{"to"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_movements_total",
			Help:      "Ledger entries written, by movement type.",
		}, []string{"type"}),
		discountsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discounts_applied_total",
			Help:      "Orders placed with a discount code.",
		}),
		paymentsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cod_collections_total",
			Help:      "Cash on delivery collections, by resulting payment status.",
		}, []string{"status"}),
		collectionIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cod_collection_issues_total",
			Help:      "Reported collection issues, by issue.",
		}, []string{"issue"}),
	}
	reg.MustRegister(
		w.ordersCreated,
		w.orderFailures,
		w.ordersCancelled,
		w.statusTransitions,
		w.stockMovements,
		w.discountsApplied,
		w.paymentsCollected,
		w.collectionIssues,
	)
	return w
}

func (w *Workflow) OrderCreated(paymentMethod string, discounted bool) {
	if w == nil || w.ordersCreated == nil {
		return
	}
	w.ordersCreated.WithLabelValues(paymentMethod).Inc()
	if discounted {
		w.discountsApplied.Inc()
	}
}

func (w *Workflow) OrderFailed(code string) {
	if w == nil || w.orderFailures == nil {
		return
	}
	w.orderFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

func (w *Workflow) OrderCancelled() {
	if w == nil || w.ordersCancelled == nil {
		return
	}
	w.ordersCancelled.Inc()
}

func (w *Workflow) StatusChanged(to string) {
	if w == nil || w.statusTransitions == nil {
		return
	}
	w.statusTransitions.WithLabelValues(to).Inc()
}

func (w *Workflow) StockMovement(movementType string) {
	if w == nil || w.stockMovements == nil {
		return
	}
	w.stockMovements.WithLabelValues(movementType).Inc()
}

func (w *Workflow) PaymentCollected(status string) {
	if w == nil || w.paymentsCollected == nil {
		return
	}
	w.paymentsCollected.WithLabelValues(status).Inc()
}

func (w *Workflow) CollectionIssue(issue string) {
	if w == nil || w.collectionIssues == nil {
		return
	}
	w.collectionIssues.WithLabelValues(issue).Inc()
}
