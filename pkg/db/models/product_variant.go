package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is one purchasable size/color of a product. StockQuantity is only
// written through the conditional counter updates of the catalog repository.
type ProductVariant struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	Size          string              `gorm:"column:size;not null"`
	ColorName     string              `gorm:"column:color_name;not null"`
	ColorHex      *string             `gorm:"column:color_hex"`
	SKU           string              `gorm:"column:sku;not null;uniqueIndex"`
	StockQuantity int                 `gorm:"column:stock_quantity;not null"`
	RegularPrice  decimal.Decimal     `gorm:"column:regular_price;type:numeric(12,2);not null"`
	SalePrice     decimal.NullDecimal `gorm:"column:sale_price;type:numeric(12,2)"`
	CostPrice     decimal.NullDecimal `gorm:"column:cost_price;type:numeric(12,2)"`
	IsActive      bool                `gorm:"column:is_active;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// UnitPrice is the sale price when one is set, otherwise the regular price.
func (v ProductVariant) UnitPrice() decimal.Decimal {
	if v.SalePrice.Valid {
		return v.SalePrice.Decimal
	}
	return v.RegularPrice
}
