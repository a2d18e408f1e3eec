package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records metadata for scheduled jobs and the findings of the
// reconciliation jobs.
type CronJobMetrics struct {
	duration        *prometheus.HistogramVec
	success         *prometheus.CounterVec
	failure         *prometheus.CounterVec
	inventoryDrift  prometheus.Gauge
	discountRepairs prometheus.Counter
	outboxPruned    prometheus.Counter
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of cron jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_success",
		Help:      "Successful cron job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_failure",
		Help:      "Failed cron job executions.",
	}, []string{"job"})
	inventoryDrift := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inventory_drifted_variants",
		Help:      "Variants whose stock counter differs from the inventory aggregate.",
	})
	discountRepairs := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_usage_repairs_total",
		Help:      "Discount used_count values corrected from the usage rows.",
	})
	outboxPruned := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_rows_pruned_total",
		Help:      "Settled outbox rows removed by the retention job.",
	})
	reg.MustRegister(duration, success, failure, inventoryDrift, discountRepairs, outboxPruned)
	return &CronJobMetrics{
		duration:        duration,
		success:         success,
		failure:         failure,
		inventoryDrift:  inventoryDrift,
		discountRepairs: discountRepairs,
		outboxPruned:    outboxPruned,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// SetInventoryDrift publishes the number of drifted variants found by the last run.
func (c *CronJobMetrics) SetInventoryDrift(n int) {
	if c == nil || c.inventoryDrift == nil {
		return
	}
	c.inventoryDrift.Set(float64(n))
}

// AddDiscountRepairs counts corrected discount counters.
func (c *CronJobMetrics) AddDiscountRepairs(n int64) {
	if c == nil || c.discountRepairs == nil || n <= 0 {
		return
	}
	c.discountRepairs.Add(float64(n))
}

// AddOutboxPruned counts outbox rows deleted by retention.
func (c *CronJobMetrics) AddOutboxPruned(n int64) {
	if c == nil || c.outboxPruned == nil || n <= 0 {
		return
	}
	c.outboxPruned.Add(float64(n))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
