package inventory

import (
	"strings"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementParams describes one ledger entry. PreviousStock and NewStock are the
// variant counter around the write the movement documents.
type MovementParams struct {
	ProductID       uuid.UUID
	VariantID       uuid.UUID
	Type            enums.MovementType
	Quantity        int
	PreviousStock   int
	NewStock        int
	Reason          string
	ReferenceType   enums.MovementReferenceType
	ReferenceID     *uuid.UUID
	ReferenceNumber *string
	PerformedBy     uuid.UUID
	UnitCost        decimal.NullDecimal
	Notes           *string
}

// NewStockMovement validates params and builds the immutable ledger row.
func NewStockMovement(p MovementParams) (*models.StockMovement, error) {
	if p.ProductID == uuid.Nil || p.VariantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and variant are required")
	}
	if !p.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if p.Quantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement quantity must not be zero")
	}
	if !p.Type.AcceptsQuantity(p.Quantity) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement quantity sign does not match its type").
			WithDetails(map[string]any{"type": p.Type, "quantity": p.Quantity})
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement reason is required")
	}
	if !p.ReferenceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement reference type")
	}
	if p.PerformedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performed by is required")
	}
	if p.PreviousStock < 0 || p.NewStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock snapshot must not be negative")
	}
	if p.UnitCost.Valid && p.UnitCost.Decimal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}

	return &models.StockMovement{
		ProductID:       p.ProductID,
		VariantID:       p.VariantID,
		MovementType:    p.Type,
		Quantity:        p.Quantity,
		PreviousStock:   p.PreviousStock,
		NewStock:        p.NewStock,
		Reason:          reason,
		ReferenceType:   p.ReferenceType,
		ReferenceID:     p.ReferenceID,
		ReferenceNumber: p.ReferenceNumber,
		PerformedBy:     p.PerformedBy,
		UnitCost:        p.UnitCost,
		Notes:           p.Notes,
	}, nil
}
