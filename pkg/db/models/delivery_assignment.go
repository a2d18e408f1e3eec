package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// DeliveryAssignment captures a delivery person's run for one order.
type DeliveryAssignment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	DeliveryPersonID uuid.UUID              `gorm:"column:delivery_person_id;type:uuid;not null;index"`
	AssignedBy       uuid.UUID              `gorm:"column:assigned_by;type:uuid;not null"`
	Status           enums.AssignmentStatus `gorm:"column:status;type:text;not null"`
	Active           bool                   `gorm:"column:active;not null"`
	AssignedAt       time.Time              `gorm:"column:assigned_at;not null"`
	OutForDeliveryAt *time.Time             `gorm:"column:out_for_delivery_at"`
	DeliveredAt      *time.Time             `gorm:"column:delivered_at"`
}

func (a *DeliveryAssignment) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
