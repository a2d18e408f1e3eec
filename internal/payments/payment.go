package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

// NewCODPayment opens the collection record for a cash on delivery order.
func NewCODPayment(order *models.Order) (*models.Payment, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.PaymentMethod != enums.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not cash on delivery")
	}
	if order.TotalAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}
	p := &models.Payment{
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		Method:           enums.PaymentMethodCOD,
		ExpectedAmount:   order.TotalAmount,
		CollectedAmount:  decimal.Zero,
		CollectionStatus: enums.CollectionNotCollected,
		Status:           enums.PaymentStatusPending,
	}
	recompute(p)
	return p, nil
}

// recompute refreshes the balance and the settlement state. A payment with
// nothing collected and a balance left keeps its current state.
func recompute(p *models.Payment) {
	p.BalanceAmount = p.ExpectedAmount.Sub(p.CollectedAmount)
	if p.BalanceAmount.IsNegative() {
		p.BalanceAmount = decimal.Zero
	}
	p.IsOutstanding = p.BalanceAmount.IsPositive()
	switch {
	case !p.IsOutstanding:
		p.Status = enums.PaymentStatusCompleted
		p.CollectionStatus = enums.CollectionCollected
	case p.CollectedAmount.IsPositive():
		p.Status = enums.PaymentStatusPartial
		p.CollectionStatus = enums.CollectionPartialCollected
	}
}

func applyCollection(p *models.Payment, amount decimal.Decimal, deliveryPersonID uuid.UUID, at time.Time) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !p.IsOutstanding {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment already settled")
	}
	if amount.GreaterThan(p.BalanceAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds outstanding balance").
			WithDetails(map[string]any{"balance": p.BalanceAmount.StringFixed(2), "amount": amount.StringFixed(2)})
	}
	p.CollectedAmount = p.CollectedAmount.Add(amount)
	p.CollectionTimestamp = &at
	p.DeliveryAttempts++
	if p.DeliveryPersonID == nil {
		p.DeliveryPersonID = &deliveryPersonID
	}
	recompute(p)
	return nil
}

func applyIssue(p *models.Payment) {
	p.CollectionStatus = enums.CollectionFailed
	p.Status = enums.PaymentStatusFailed
	p.DeliveryAttempts++
}

func validateIssues(issues []enums.CollectionIssue) error {
	if len(issues) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one issue is required")
	}
	for _, issue := range issues {
		if !issue.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown collection issue").
				WithDetails(map[string]any{"issue": issue})
		}
	}
	return nil
}

func paymentUpdates(p *models.Payment) map[string]any {
	return map[string]any{
		"collected_amount":     p.CollectedAmount,
		"balance_amount":       p.BalanceAmount,
		"collection_status":    p.CollectionStatus,
		"status":               p.Status,
		"is_outstanding":       p.IsOutstanding,
		"delivery_attempts":    p.DeliveryAttempts,
		"collection_timestamp": p.CollectionTimestamp,
		"delivery_person_id":   p.DeliveryPersonID,
		"notes":                p.Notes,
	}
}
