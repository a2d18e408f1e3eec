package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type movementRequest struct {
	ProductID uuid.UUID           `json:"productId" validate:"required"`
	VariantID uuid.UUID           `json:"variantId" validate:"required"`
	Type      string              `json:"movementType" validate:"required"`
	Quantity  int                 `json:"quantity"`
	Reason    string              `json:"reason" validate:"required,max=255"`
	UnitCost  decimal.NullDecimal `json:"unitCost"`
	Notes     string              `json:"notes"`
}

type transferEndpoint struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	VariantID uuid.UUID `json:"variantId" validate:"required"`
}

type transferRequest struct {
	From     transferEndpoint `json:"from"`
	To       transferEndpoint `json:"to"`
	Quantity int              `json:"quantity" validate:"required,gt=0"`
	Reason   string           `json:"reason" validate:"required,max=255"`
	Notes    string           `json:"notes"`
}
