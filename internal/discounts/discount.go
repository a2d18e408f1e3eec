package discounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/shopflow-backend/pkg/db/types"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// DiscountParams is the raw input of NewDiscount.
type DiscountParams struct {
	Code                  string
	Type                  enums.DiscountType
	Value                 decimal.Decimal
	MinimumOrderAmount    decimal.Decimal
	MaximumDiscountAmount decimal.NullDecimal
	UsageLimit            *int
	ValidFrom             time.Time
	ValidUntil            time.Time
	ApplicableProducts    []uuid.UUID
	ApplicableCategories  []uuid.UUID
	ApplicableUsers       []uuid.UUID
	IsActive              bool
	IsPublic              bool
}

// NewDiscount builds a discount that satisfies the code, window and value rules.
func NewDiscount(p DiscountParams) (*models.Discount, error) {
	code := NormalizeCode(p.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	if strings.ContainsAny(code, " \t\n") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code must not contain whitespace")
	}
	if !p.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if !p.Value.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if p.Type == enums.DiscountPercentage && p.Value.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if p.MinimumOrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount cannot be negative")
	}
	if p.MaximumDiscountAmount.Valid && !p.MaximumDiscountAmount.Decimal.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maximum discount amount must be positive")
	}
	if p.UsageLimit != nil && *p.UsageLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive")
	}
	if p.ValidFrom.IsZero() || p.ValidUntil.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity window is required")
	}
	if !p.ValidFrom.Before(p.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validFrom must be before validUntil")
	}

	return &models.Discount{
		Code:                  code,
		Type:                  p.Type,
		Value:                 p.Value.Round(2),
		MinimumOrderAmount:    p.MinimumOrderAmount.Round(2),
		MaximumDiscountAmount: p.MaximumDiscountAmount,
		UsageLimit:            p.UsageLimit,
		ValidFrom:             p.ValidFrom.UTC(),
		ValidUntil:            p.ValidUntil.UTC(),
		ApplicableProducts:    uuidArray(p.ApplicableProducts),
		ApplicableCategories:  uuidArray(p.ApplicableCategories),
		ApplicableUsers:       uuidArray(p.ApplicableUsers),
		IsActive:              p.IsActive,
		IsPublic:              p.IsPublic,
	}, nil
}

// NormalizeCode is the lookup form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CalculateDiscountAmount returns the discount for orderAmount. The result never
// exceeds the configured maximum or the order amount and is never negative.
func CalculateDiscountAmount(d *models.Discount, orderAmount decimal.Decimal) decimal.Decimal {
	if d == nil || !orderAmount.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch d.Type {
	case enums.DiscountPercentage:
		amount = orderAmount.Mul(d.Value).Div(hundred).Round(2)
	case enums.DiscountFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}
	if d.MaximumDiscountAmount.Valid && amount.GreaterThan(d.MaximumDiscountAmount.Decimal) {
		amount = d.MaximumDiscountAmount.Decimal
	}
	if amount.GreaterThan(orderAmount) {
		amount = orderAmount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// ruleFailure names the first static rule d fails for userID at now, or "" when
// every rule that needs no usage lookup passes. The minimum amount rule is
// checked separately after the per-user usage lookup.
func ruleFailure(d *models.Discount, userID uuid.UUID, now time.Time) string {
	switch {
	case !d.IsActive:
		return "inactive"
	case now.Before(d.ValidFrom):
		return "not_started"
	case now.After(d.ValidUntil):
		return "expired"
	case d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit:
		return "usage_limit_reached"
	case len(d.ApplicableUsers) > 0 && !d.ApplicableUsers.Contains(userID):
		return "user_not_eligible"
	}
	return ""
}

func uuidArray(ids []uuid.UUID) dbtypes.UUIDArray {
	if ids == nil {
		return dbtypes.UUIDArray{}
	}
	return dbtypes.UUIDArray(ids)
}
