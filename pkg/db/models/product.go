package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// Product is a catalog entry grouping purchasable variants.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name       string              `gorm:"column:name;not null"`
	Brand      string              `gorm:"column:brand;not null"`
	CategoryID *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	Status     enums.ProductStatus `gorm:"column:status;type:text;not null"`
	IsActive   bool                `gorm:"column:is_active;not null"`
	Variants   []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
