package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// AssignInput hands an order to a delivery person.
type AssignInput struct {
	OrderID          uuid.UUID `json:"-"`
	DeliveryPersonID uuid.UUID `json:"deliveryPersonId" validate:"required"`
	AdminID          uuid.UUID `json:"-"`
	Notes            string    `json:"notes"`
}

// ProgressInput is a delivery person reporting on their run.
type ProgressInput struct {
	OrderID          uuid.UUID `json:"-"`
	DeliveryPersonID uuid.UUID `json:"-"`
	Notes            string    `json:"notes"`
}

type AssignmentDTO struct {
	ID               uuid.UUID              `json:"id"`
	OrderID          uuid.UUID              `json:"orderId"`
	DeliveryPersonID uuid.UUID              `json:"deliveryPersonId"`
	AssignedBy       uuid.UUID              `json:"assignedBy"`
	Status           enums.AssignmentStatus `json:"status"`
	Active           bool                   `json:"active"`
	AssignedAt       time.Time              `json:"assignedAt"`
	OutForDeliveryAt *time.Time             `json:"outForDeliveryAt,omitempty"`
	DeliveredAt      *time.Time             `json:"deliveredAt,omitempty"`
}

func FromModel(a *models.DeliveryAssignment) *AssignmentDTO {
	if a == nil {
		return nil
	}
	return &AssignmentDTO{
		ID:               a.ID,
		OrderID:          a.OrderID,
		DeliveryPersonID: a.DeliveryPersonID,
		AssignedBy:       a.AssignedBy,
		Status:           a.Status,
		Active:           a.Active,
		AssignedAt:       a.AssignedAt,
		OutForDeliveryAt: a.OutForDeliveryAt,
		DeliveredAt:      a.DeliveredAt,
	}
}
