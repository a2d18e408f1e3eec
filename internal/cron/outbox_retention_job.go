package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDeadAttempts    = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	Metrics    *metrics.CronJobMetrics
	Retention  time.Duration
	// MinAttempts marks a never-published row as dead; it should match the
	// publisher's attempt ceiling so pending rows are never pruned.
	MinAttempts int
}

type outboxRetentionJob struct {
	params OutboxRetentionJobParams
	now    func() time.Time
}

// NewOutboxRetentionJob prunes settled outbox rows older than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	if params.Retention <= 0 {
		params.Retention = defaultOutboxRetention
	}
	if params.MinAttempts <= 0 {
		params.MinAttempts = defaultDeadAttempts
	}
	return &outboxRetentionJob{params: params, now: time.Now}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	p := j.params
	cutoff := j.now().UTC().Add(-p.Retention)

	var pruned int64
	if err := p.DB.WithTx(ctx, func(tx *gorm.DB) (err error) {
		pruned, err = p.Repository.DeletePublishedBefore(ctx, tx, cutoff, p.MinAttempts)
		return err
	}); err != nil {
		return errors.Join(errors.New("outbox retention"), err)
	}
	p.Metrics.AddOutboxPruned(pruned)

	p.Logger.Info(p.Logger.WithFields(ctx, map[string]any{
		"cutoff":      cutoff.Format(time.RFC3339),
		"dead_after":  p.MinAttempts,
		"rows_pruned": pruned,
	}), "outbox.retention_pruned")
	return nil
}
