package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/shopflow-backend/pkg/db/types"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// Payment is the cash on delivery collection record of an order.
type Payment struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CustomerID          uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	DeliveryPersonID    *uuid.UUID             `gorm:"column:delivery_person_id;type:uuid"`
	Method              enums.PaymentMethod    `gorm:"column:method;type:text;not null"`
	ExpectedAmount      decimal.Decimal        `gorm:"column:expected_amount;type:numeric(12,2);not null"`
	CollectedAmount     decimal.Decimal        `gorm:"column:collected_amount;type:numeric(12,2);not null"`
	BalanceAmount       decimal.Decimal        `gorm:"column:balance_amount;type:numeric(12,2);not null"`
	CollectionStatus    enums.CollectionStatus `gorm:"column:collection_status;type:text;not null"`
	Status              enums.PaymentStatus    `gorm:"column:status;type:text;not null"`
	IsOutstanding       bool                   `gorm:"column:is_outstanding;not null"`
	DeliveryAttempts    int                    `gorm:"column:delivery_attempts;not null"`
	CollectionTimestamp *time.Time             `gorm:"column:collection_timestamp"`
	Notes               *string                `gorm:"column:notes"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PaymentCollectionAttempt logs one collection or issue report by a delivery person.
type PaymentCollectionAttempt struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID        uuid.UUID           `gorm:"column:payment_id;type:uuid;not null;index"`
	DeliveryPersonID uuid.UUID           `gorm:"column:delivery_person_id;type:uuid;not null"`
	Amount           decimal.NullDecimal `gorm:"column:amount;type:numeric(12,2)"`
	Issues           dbtypes.StringArray `gorm:"column:issues;type:text[];not null"`
	Description      *string             `gorm:"column:description"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (a *PaymentCollectionAttempt) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
