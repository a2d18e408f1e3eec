package discounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// CreateDiscountInput is the admin payload for a new promo code.
type CreateDiscountInput struct {
	Code                  string              `json:"code" validate:"required,max=64"`
	Type                  enums.DiscountType  `json:"type" validate:"required,oneof=percentage fixed"`
	Value                 decimal.Decimal     `json:"value"`
	MinimumOrderAmount    decimal.Decimal     `json:"minimumOrderAmount"`
	MaximumDiscountAmount decimal.NullDecimal `json:"maximumDiscountAmount"`
	UsageLimit            *int                `json:"usageLimit" validate:"omitempty,gt=0"`
	ValidFrom             time.Time           `json:"validFrom" validate:"required"`
	ValidUntil            time.Time           `json:"validUntil" validate:"required"`
	ApplicableProducts    []uuid.UUID         `json:"applicableProducts"`
	ApplicableCategories  []uuid.UUID         `json:"applicableCategories"`
	ApplicableUsers       []uuid.UUID         `json:"applicableUsers"`
	IsActive              *bool               `json:"isActive"`
	IsPublic              *bool               `json:"isPublic"`
}

func (in CreateDiscountInput) params() DiscountParams {
	return DiscountParams{
		Code:                  in.Code,
		Type:                  in.Type,
		Value:                 in.Value,
		MinimumOrderAmount:    in.MinimumOrderAmount,
		MaximumDiscountAmount: in.MaximumDiscountAmount,
		UsageLimit:            in.UsageLimit,
		ValidFrom:             in.ValidFrom,
		ValidUntil:            in.ValidUntil,
		ApplicableProducts:    in.ApplicableProducts,
		ApplicableCategories:  in.ApplicableCategories,
		ApplicableUsers:       in.ApplicableUsers,
		IsActive:              boolOr(in.IsActive, true),
		IsPublic:              boolOr(in.IsPublic, true),
	}
}

// ValidateInput previews a code against an order amount.
type ValidateInput struct {
	Code        string          `json:"code" validate:"required"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
}

// ValidationResult is the preview answer for a valid code.
type ValidationResult struct {
	Code           string             `json:"code"`
	Type           enums.DiscountType `json:"type"`
	Value          decimal.Decimal    `json:"value"`
	DiscountAmount decimal.Decimal    `json:"discountAmount"`
	FinalAmount    decimal.Decimal    `json:"finalAmount"`
}

type DiscountDTO struct {
	ID                    uuid.UUID           `json:"id"`
	Code                  string              `json:"code"`
	Type                  enums.DiscountType  `json:"type"`
	Value                 decimal.Decimal     `json:"value"`
	MinimumOrderAmount    decimal.Decimal     `json:"minimumOrderAmount"`
	MaximumDiscountAmount decimal.NullDecimal `json:"maximumDiscountAmount"`
	UsageLimit            *int                `json:"usageLimit,omitempty"`
	UsedCount             int                 `json:"usedCount"`
	ValidFrom             time.Time           `json:"validFrom"`
	ValidUntil            time.Time           `json:"validUntil"`
	ApplicableProducts    []uuid.UUID         `json:"applicableProducts"`
	ApplicableCategories  []uuid.UUID         `json:"applicableCategories"`
	ApplicableUsers       []uuid.UUID         `json:"applicableUsers"`
	IsActive              bool                `json:"isActive"`
	IsPublic              bool                `json:"isPublic"`
	CreatedAt             time.Time           `json:"createdAt"`
}

func FromModel(d *models.Discount) *DiscountDTO {
	if d == nil {
		return nil
	}
	return &DiscountDTO{
		ID:                    d.ID,
		Code:                  d.Code,
		Type:                  d.Type,
		Value:                 d.Value,
		MinimumOrderAmount:    d.MinimumOrderAmount,
		MaximumDiscountAmount: d.MaximumDiscountAmount,
		UsageLimit:            d.UsageLimit,
		UsedCount:             d.UsedCount,
		ValidFrom:             d.ValidFrom,
		ValidUntil:            d.ValidUntil,
		ApplicableProducts:    []uuid.UUID(d.ApplicableProducts),
		ApplicableCategories:  []uuid.UUID(d.ApplicableCategories),
		ApplicableUsers:       []uuid.UUID(d.ApplicableUsers),
		IsActive:              d.IsActive,
		IsPublic:              d.IsPublic,
		CreatedAt:             d.CreatedAt,
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
