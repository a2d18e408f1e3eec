package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Inventory is the denormalized stock summary for one (product, variant) pair.
// AvailableStock, IsLowStock, IsOutOfStock and TotalValue are derived in BeforeSave.
type Inventory struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_inventories_product_variant"`
	VariantID         uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:idx_inventories_product_variant"`
	CurrentStock      int             `gorm:"column:current_stock;not null"`
	ReservedStock     int             `gorm:"column:reserved_stock;not null"`
	AvailableStock    int             `gorm:"column:available_stock;not null"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null"`
	IsLowStock        bool            `gorm:"column:is_low_stock;not null"`
	IsOutOfStock      bool            `gorm:"column:is_out_of_stock;not null"`
	TotalIn           int             `gorm:"column:total_in;not null"`
	TotalOut          int             `gorm:"column:total_out;not null"`
	AverageCost       decimal.Decimal `gorm:"column:average_cost;type:numeric(12,2);not null"`
	TotalValue        decimal.Decimal `gorm:"column:total_value;type:numeric(14,2);not null"`
	LastRestockedAt   *time.Time      `gorm:"column:last_restocked_at"`
	LastSoldAt        *time.Time      `gorm:"column:last_sold_at"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Inventory) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// BeforeSave recomputes the derived columns so they can never drift from the counters.
func (i *Inventory) BeforeSave(*gorm.DB) error {
	i.Recompute()
	return nil
}

// Recompute derives availability, stock flags and valuation from the raw counters.
func (i *Inventory) Recompute() {
	available := i.CurrentStock - i.ReservedStock
	if available < 0 {
		available = 0
	}
	i.AvailableStock = available
	i.IsOutOfStock = available == 0
	i.IsLowStock = !i.IsOutOfStock && available <= i.LowStockThreshold
	i.TotalValue = i.AverageCost.Mul(decimal.NewFromInt(int64(i.CurrentStock))).Round(2)
}
