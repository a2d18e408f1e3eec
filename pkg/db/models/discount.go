package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/shopflow-backend/pkg/db/types"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// Discount is a promo code with its eligibility rules and usage counters.
type Discount struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code                  string              `gorm:"column:code;not null;uniqueIndex"`
	Type                  enums.DiscountType  `gorm:"column:type;type:text;not null"`
	Value                 decimal.Decimal     `gorm:"column:value;type:numeric(12,2);not null"`
	MinimumOrderAmount    decimal.Decimal     `gorm:"column:minimum_order_amount;type:numeric(12,2);not null"`
	MaximumDiscountAmount decimal.NullDecimal `gorm:"column:maximum_discount_amount;type:numeric(12,2)"`
	UsageLimit            *int                `gorm:"column:usage_limit"`
	UsedCount             int                 `gorm:"column:used_count;not null"`
	ValidFrom             time.Time           `gorm:"column:valid_from;not null"`
	ValidUntil            time.Time           `gorm:"column:valid_until;not null"`
	ApplicableProducts    dbtypes.UUIDArray   `gorm:"column:applicable_product_ids;type:uuid[];not null"`
	ApplicableCategories  dbtypes.UUIDArray   `gorm:"column:applicable_category_ids;type:uuid[];not null"`
	ApplicableUsers       dbtypes.UUIDArray   `gorm:"column:applicable_user_ids;type:uuid[];not null"`
	IsActive              bool                `gorm:"column:is_active;not null"`
	IsPublic              bool                `gorm:"column:is_public;not null"`
	Usages                []DiscountUsage     `gorm:"foreignKey:DiscountID"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Discount) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// DiscountUsage is one entry of a discount's usedBy list, unique per (discount, user).
type DiscountUsage struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	DiscountID uuid.UUID  `gorm:"column:discount_id;type:uuid;not null;uniqueIndex:idx_discount_usages_discount_user"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_discount_usages_discount_user"`
	OrderID    *uuid.UUID `gorm:"column:order_id;type:uuid"`
	UsedAt     time.Time  `gorm:"column:used_at;not null"`
}

func (u *DiscountUsage) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
