package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopflow-backend/internal/catalog"
	"github.com/angelmondragon/shopflow-backend/internal/inventory"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
)

const maxDriftLogged = 50

type variantStockLister interface {
	ListVariantStocks(ctx context.Context) ([]catalog.VariantStock, error)
}

type inventoryStockLister interface {
	ListInventoryStocks(ctx context.Context) ([]inventory.InventoryStock, error)
}

type InventoryDriftJobParams struct {
	Logger    *logger.Logger
	Variants  variantStockLister
	Inventory inventoryStockLister
	Metrics   *metrics.CronJobMetrics
}

// NewInventoryDriftJob builds the job that compares each variant counter with
// its inventory aggregate. It only reports; fixing drift is an operator call.
func NewInventoryDriftJob(params InventoryDriftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Variants == nil {
		return nil, fmt.Errorf("variant stock lister required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory stock lister required")
	}
	return &inventoryDriftJob{
		logg:      params.Logger,
		variants:  params.Variants,
		inventory: params.Inventory,
		metrics:   params.Metrics,
	}, nil
}

type inventoryDriftJob struct {
	logg      *logger.Logger
	variants  variantStockLister
	inventory inventoryStockLister
	metrics   *metrics.CronJobMetrics
}

// stockDrift is one variant whose counter and aggregate disagree.
type stockDrift struct {
	VariantID     uuid.UUID
	SKU           string
	StockQuantity int
	CurrentStock  int
}

func (j *inventoryDriftJob) Name() string { return "inventory-drift" }

func (j *inventoryDriftJob) Run(ctx context.Context) error {
	variants, vErr := j.variants.ListVariantStocks(ctx)
	aggregates, iErr := j.inventory.ListInventoryStocks(ctx)
	if err := multierr.Combine(vErr, iErr); err != nil {
		return fmt.Errorf("load stock snapshots: %w", err)
	}

	drifts := findDrift(variants, aggregates)
	j.metrics.SetInventoryDrift(len(drifts))

	for i, d := range drifts {
		if i == maxDriftLogged {
			break
		}
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"variant_id":     d.VariantID.String(),
			"sku":            d.SKU,
			"stock_quantity": d.StockQuantity,
			"current_stock":  d.CurrentStock,
		}), "inventory.drift")
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"variants_checked": len(variants),
		"drifted":          len(drifts),
	}), "inventory drift scan complete")
	return nil
}

// findDrift ignores variants without an aggregate row; the aggregate is created
// on first movement.
func findDrift(variants []catalog.VariantStock, aggregates []inventory.InventoryStock) []stockDrift {
	current := make(map[uuid.UUID]int, len(aggregates))
	for _, a := range aggregates {
		current[a.VariantID] = a.CurrentStock
	}
	var out []stockDrift
	for _, v := range variants {
		stock, ok := current[v.VariantID]
		if !ok || stock == v.StockQuantity {
			continue
		}
		out = append(out, stockDrift{
			VariantID:     v.VariantID,
			SKU:           v.SKU,
			StockQuantity: v.StockQuantity,
			CurrentStock:  stock,
		})
	}
	return out
}
