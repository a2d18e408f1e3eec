package inventory

import (
	"strings"
	"time"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustStockInput is an admin stock change. Quantity is signed the way the ledger
// stores it: in is positive, out is negative, adjustment may be either.
type AdjustStockInput struct {
	ProductID   uuid.UUID
	VariantID   uuid.UUID
	Type        enums.MovementType
	Quantity    int
	Reason      string
	UnitCost    decimal.NullDecimal
	Notes       *string
	PerformedBy uuid.UUID
}

func (in AdjustStockInput) validate() error {
	switch in.Type {
	case enums.MovementIn, enums.MovementOut, enums.MovementAdjustment:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "type must be one of in, out, adjustment")
	}
	if in.ProductID == uuid.Nil || in.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product and variant ids are required")
	}
	if !in.Type.AcceptsQuantity(in.Quantity) {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity sign does not match movement type").
			WithDetails(map[string]any{"type": in.Type, "quantity": in.Quantity})
	}
	if strings.TrimSpace(in.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if in.PerformedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "performed by is required")
	}
	return nil
}

// TransferInput moves Quantity units from one variant to another.
type TransferInput struct {
	FromProductID uuid.UUID
	FromVariantID uuid.UUID
	ToProductID   uuid.UUID
	ToVariantID   uuid.UUID
	Quantity      int
	Reason        string
	Notes         *string
	PerformedBy   uuid.UUID
}

func (in TransferInput) validate() error {
	if in.FromProductID == uuid.Nil || in.FromVariantID == uuid.Nil || in.ToProductID == uuid.Nil || in.ToVariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source and target variants are required")
	}
	if in.FromVariantID == in.ToVariantID {
		return pkgerrors.New(pkgerrors.CodeValidation, "source and target variants must differ")
	}
	if in.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if in.PerformedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "performed by is required")
	}
	return nil
}

type ListMovementsInput struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Limit     int
	Cursor    string
}

type MovementDTO struct {
	ID              uuid.UUID                   `json:"id"`
	ProductID       uuid.UUID                   `json:"productId"`
	VariantID       uuid.UUID                   `json:"variantId"`
	Type            enums.MovementType          `json:"movementType"`
	Quantity        int                         `json:"quantity"`
	PreviousStock   int                         `json:"previousStock"`
	NewStock        int                         `json:"newStock"`
	Reason          string                      `json:"reason"`
	ReferenceType   enums.MovementReferenceType `json:"referenceType"`
	ReferenceID     *uuid.UUID                  `json:"referenceId,omitempty"`
	ReferenceNumber *string                     `json:"referenceNumber,omitempty"`
	PerformedBy     uuid.UUID                   `json:"performedBy"`
	UnitCost        decimal.NullDecimal         `json:"unitCost"`
	Notes           *string                     `json:"notes,omitempty"`
	CreatedAt       time.Time                   `json:"createdAt"`
}

type MovementList struct {
	Items  []MovementDTO `json:"items"`
	Cursor string        `json:"cursor,omitempty"`
}

type InventoryDTO struct {
	ProductID         uuid.UUID       `json:"productId"`
	VariantID         uuid.UUID       `json:"variantId"`
	CurrentStock      int             `json:"currentStock"`
	ReservedStock     int             `json:"reservedStock"`
	AvailableStock    int             `json:"availableStock"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	IsLowStock        bool            `json:"isLowStock"`
	IsOutOfStock      bool            `json:"isOutOfStock"`
	TotalIn           int             `json:"totalIn"`
	TotalOut          int             `json:"totalOut"`
	AverageCost       decimal.Decimal `json:"averageCost"`
	TotalValue        decimal.Decimal `json:"totalValue"`
	LastRestockedAt   *time.Time      `json:"lastRestockedAt,omitempty"`
	LastSoldAt        *time.Time      `json:"lastSoldAt,omitempty"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type AdjustStockResult struct {
	Movement  *MovementDTO  `json:"movement"`
	Inventory *InventoryDTO `json:"inventory"`
}

type TransferResult struct {
	TransferID uuid.UUID         `json:"transferId"`
	Source     AdjustStockResult `json:"source"`
	Target     AdjustStockResult `json:"target"`
}

func FromMovement(m *models.StockMovement) *MovementDTO {
	if m == nil {
		return nil
	}
	return &MovementDTO{
		ID:              m.ID,
		ProductID:       m.ProductID,
		VariantID:       m.VariantID,
		Type:            m.MovementType,
		Quantity:        m.Quantity,
		PreviousStock:   m.PreviousStock,
		NewStock:        m.NewStock,
		Reason:          m.Reason,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		ReferenceNumber: m.ReferenceNumber,
		PerformedBy:     m.PerformedBy,
		UnitCost:        m.UnitCost,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
}

func FromInventory(inv *models.Inventory) *InventoryDTO {
	if inv == nil {
		return nil
	}
	return &InventoryDTO{
		ProductID:         inv.ProductID,
		VariantID:         inv.VariantID,
		CurrentStock:      inv.CurrentStock,
		ReservedStock:     inv.ReservedStock,
		AvailableStock:    inv.AvailableStock,
		LowStockThreshold: inv.LowStockThreshold,
		IsLowStock:        inv.IsLowStock,
		IsOutOfStock:      inv.IsOutOfStock,
		TotalIn:           inv.TotalIn,
		TotalOut:          inv.TotalOut,
		AverageCost:       inv.AverageCost,
		TotalValue:        inv.TotalValue,
		LastRestockedAt:   inv.LastRestockedAt,
		LastSoldAt:        inv.LastSoldAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}
