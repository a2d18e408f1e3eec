package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// StockMovement is an append-only ledger entry for one stock affecting event.
type StockMovement struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID                   `gorm:"column:product_id;type:uuid;not null"`
	VariantID       uuid.UUID                   `gorm:"column:variant_id;type:uuid;not null"`
	MovementType    enums.MovementType          `gorm:"column:movement_type;type:text;not null"`
	Quantity        int                         `gorm:"column:quantity;not null"`
	PreviousStock   int                         `gorm:"column:previous_stock;not null"`
	NewStock        int                         `gorm:"column:new_stock;not null"`
	Reason          string                      `gorm:"column:reason;not null"`
	ReferenceType   enums.MovementReferenceType `gorm:"column:reference_type;type:text;not null"`
	ReferenceID     *uuid.UUID                  `gorm:"column:reference_id;type:uuid"`
	ReferenceNumber *string                     `gorm:"column:reference_number"`
	PerformedBy     uuid.UUID                   `gorm:"column:performed_by;type:uuid;not null"`
	UnitCost        decimal.NullDecimal         `gorm:"column:unit_cost;type:numeric(12,2)"`
	Notes           *string                     `gorm:"column:notes"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
