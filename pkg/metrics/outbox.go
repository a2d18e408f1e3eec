package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox tracks publisher throughput and backlog.
type Outbox struct {
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	pending      prometheus.Gauge
}

func NewOutbox(reg prometheus.Registerer) *Outbox {
	if reg == nil {
		return &Outbox{}
	}
	o := &Outbox{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events delivered to the broker.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Publish attempts that will be retried.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dead_lettered_total",
			Help:      "Outbox events moved to the dead letter table.",
		}, []string{"reason"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending_events",
			Help:      "Unpublished outbox rows at the last poll.",
		}),
	}
	reg.MustRegister(o.published, o.failed, o.deadLettered, o.pending)
	return o
}

func (o *Outbox) Published(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(eventType).Inc()
}

func (o *Outbox) Failed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(eventType).Inc()
}

func (o *Outbox) DeadLettered(reason string) {
	if o == nil || o.deadLettered == nil {
		return
	}
	o.deadLettered.WithLabelValues(reason).Inc()
}

func (o *Outbox) SetPending(n int64) {
	if o == nil || o.pending == nil {
		return
	}
	o.pending.Set(float64(n))
}
