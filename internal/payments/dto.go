package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// CollectInput is a delivery person handing in cash for a payment.
type CollectInput struct {
	PaymentID        uuid.UUID
	DeliveryPersonID uuid.UUID
	Amount           decimal.Decimal
	Notes            *string
}

// IssueInput reports why cash could not be collected.
type IssueInput struct {
	PaymentID        uuid.UUID
	DeliveryPersonID uuid.UUID
	Issues           []enums.CollectionIssue
	Description      *string
}

// Viewer identifies who reads a payment.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

type PaymentDTO struct {
	ID                  uuid.UUID              `json:"id"`
	OrderID             uuid.UUID              `json:"orderId"`
	CustomerID          uuid.UUID              `json:"customerId"`
	DeliveryPersonID    *uuid.UUID             `json:"deliveryPersonId,omitempty"`
	Method              enums.PaymentMethod    `json:"method"`
	ExpectedAmount      decimal.Decimal        `json:"expectedAmount"`
	CollectedAmount     decimal.Decimal        `json:"collectedAmount"`
	BalanceAmount       decimal.Decimal        `json:"balanceAmount"`
	CollectionStatus    enums.CollectionStatus `json:"collectionStatus"`
	Status              enums.PaymentStatus    `json:"status"`
	IsOutstanding       bool                   `json:"isOutstanding"`
	DeliveryAttempts    int                    `json:"deliveryAttempts"`
	CollectionTimestamp *time.Time             `json:"collectionTimestamp,omitempty"`
	Notes               *string                `json:"notes,omitempty"`
	Attempts            []AttemptDTO           `json:"attempts,omitempty"`
}

type AttemptDTO struct {
	ID               uuid.UUID           `json:"id"`
	DeliveryPersonID uuid.UUID           `json:"deliveryPersonId"`
	Amount           decimal.NullDecimal `json:"amount"`
	Issues           []string            `json:"issues,omitempty"`
	Description      *string             `json:"description,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

func FromModel(p *models.Payment) *PaymentDTO {
	if p == nil {
		return nil
	}
	return &PaymentDTO{
		ID:                  p.ID,
		OrderID:             p.OrderID,
		CustomerID:          p.CustomerID,
		DeliveryPersonID:    p.DeliveryPersonID,
		Method:              p.Method,
		ExpectedAmount:      p.ExpectedAmount,
		CollectedAmount:     p.CollectedAmount,
		BalanceAmount:       p.BalanceAmount,
		CollectionStatus:    p.CollectionStatus,
		Status:              p.Status,
		IsOutstanding:       p.IsOutstanding,
		DeliveryAttempts:    p.DeliveryAttempts,
		CollectionTimestamp: p.CollectionTimestamp,
		Notes:               p.Notes,
	}
}

func fromAttempts(rows []models.PaymentCollectionAttempt) []AttemptDTO {
	out := make([]AttemptDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, AttemptDTO{
			ID:               row.ID,
			DeliveryPersonID: row.DeliveryPersonID,
			Amount:           row.Amount,
			Issues:           []string(row.Issues),
			Description:      row.Description,
			CreatedAt:        row.CreatedAt,
		})
	}
	return out
}
