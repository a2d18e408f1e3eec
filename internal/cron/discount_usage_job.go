package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
)

type usageRepairer interface {
	RepairUsedCounts(ctx context.Context) (int64, error)
}

type DiscountUsageJobParams struct {
	Logger     *logger.Logger
	Repository usageRepairer
	Metrics    *metrics.CronJobMetrics
}

// NewDiscountUsageJob builds the job that realigns discounts.used_count with
// the recorded usages.
func NewDiscountUsageJob(params DiscountUsageJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	return &discountUsageJob{
		logg:    params.Logger,
		repo:    params.Repository,
		metrics: params.Metrics,
	}, nil
}

type discountUsageJob struct {
	logg    *logger.Logger
	repo    usageRepairer
	metrics *metrics.CronJobMetrics
}

func (j *discountUsageJob) Name() string { return "discount-usage-reconcile" }

func (j *discountUsageJob) Run(ctx context.Context) error {
	repaired, err := j.repo.RepairUsedCounts(ctx)
	if err != nil {
		return fmt.Errorf("repair used counts: %w", err)
	}
	j.metrics.AddDiscountRepairs(repaired)

	logCtx := j.logg.WithField(ctx, "discounts_repaired", repaired)
	if repaired > 0 {
		j.logg.Warn(logCtx, "discount usage counters corrected")
		return nil
	}
	j.logg.Info(logCtx, "discount usage counters consistent")
	return nil
}
