package discounts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validParams() DiscountParams {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return DiscountParams{
		Code:       " save10 ",
		Type:       enums.DiscountPercentage,
		Value:      dec("10"),
		ValidFrom:  from,
		ValidUntil: from.AddDate(0, 1, 0),
		IsActive:   true,
	}
}

func TestNewDiscountNormalizesCode(t *testing.T) {
	d, err := NewDiscount(validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Code != "SAVE10" {
		t.Fatalf("expected SAVE10, got %q", d.Code)
	}
	if d.ApplicableUsers == nil || len(d.ApplicableUsers) != 0 {
		t.Fatalf("expected empty allow-list, got %v", d.ApplicableUsers)
	}
}

func TestNewDiscountRejectsInvalidInput(t *testing.T) {
	limit := 0
	cases := map[string]func(p *DiscountParams){
		"empty code":       func(p *DiscountParams) { p.Code = "  " },
		"code with space":  func(p *DiscountParams) { p.Code = "SAVE 10" },
		"unknown type":     func(p *DiscountParams) { p.Type = "bogus" },
		"zero value":       func(p *DiscountParams) { p.Value = decimal.Zero },
		"percentage > 100": func(p *DiscountParams) { p.Value = dec("100.01") },
		"negative minimum": func(p *DiscountParams) { p.MinimumOrderAmount = dec("-1") },
		"zero maximum":     func(p *DiscountParams) { p.MaximumDiscountAmount = decimal.NewNullDecimal(decimal.Zero) },
		"zero usage limit": func(p *DiscountParams) { p.UsageLimit = &limit },
		"window inverted":  func(p *DiscountParams) { p.ValidUntil = p.ValidFrom },
		"missing window":   func(p *DiscountParams) { p.ValidFrom = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			mutate(&p)
			if _, err := NewDiscount(p); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewDiscountAllowsFixedAboveHundred(t *testing.T) {
	p := validParams()
	p.Type = enums.DiscountFixed
	p.Value = dec("250")
	if _, err := NewDiscount(p); err != nil {
		t.Fatalf("fixed discounts are not capped at 100: %v", err)
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	cases := []struct {
		name     string
		discount models.Discount
		amount   string
		want     string
	}{
		{
			name:     "percentage",
			discount: models.Discount{Type: enums.DiscountPercentage, Value: dec("10")},
			amount:   "500",
			want:     "50",
		},
		{
			name:     "percentage rounds to cents",
			discount: models.Discount{Type: enums.DiscountPercentage, Value: dec("15")},
			amount:   "33.33",
			want:     "5",
		},
		{
			name: "percentage clamped to maximum",
			discount: models.Discount{
				Type:                  enums.DiscountPercentage,
				Value:                 dec("50"),
				MaximumDiscountAmount: decimal.NewNullDecimal(dec("20")),
			},
			amount: "100",
			want:   "20",
		},
		{
			name:     "fixed",
			discount: models.Discount{Type: enums.DiscountFixed, Value: dec("15")},
			amount:   "100",
			want:     "15",
		},
		{
			name:     "fixed clamped to order amount",
			discount: models.Discount{Type: enums.DiscountFixed, Value: dec("150")},
			amount:   "40",
			want:     "40",
		},
		{
			name: "fixed clamped to maximum then order amount",
			discount: models.Discount{
				Type:                  enums.DiscountFixed,
				Value:                 dec("150"),
				MaximumDiscountAmount: decimal.NewNullDecimal(dec("60")),
			},
			amount: "40",
			want:   "40",
		},
		{
			name:     "zero order",
			discount: models.Discount{Type: enums.DiscountFixed, Value: dec("10")},
			amount:   "0",
			want:     "0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateDiscountAmount(&tc.discount, dec(tc.amount))
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCalculateDiscountAmountNeverExceedsBounds(t *testing.T) {
	ceiling := decimal.NewNullDecimal(dec("25"))
	for _, value := range []string{"1", "5", "33.3", "99", "100"} {
		for _, amount := range []string{"0.01", "3", "24.99", "80", "1000"} {
			for _, typ := range []enums.DiscountType{enums.DiscountPercentage, enums.DiscountFixed} {
				d := models.Discount{Type: typ, Value: dec(value), MaximumDiscountAmount: ceiling}
				got := CalculateDiscountAmount(&d, dec(amount))
				if got.GreaterThan(dec(amount)) || got.GreaterThan(ceiling.Decimal) || got.IsNegative() {
					t.Fatalf("%s %s on %s gave %s", typ, value, amount, got)
				}
			}
		}
	}
}

func TestRuleFailureOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limit := 1
	user := uuid.New()
	base := models.Discount{
		IsActive:   true,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
	}

	if got := ruleFailure(&base, user, now); got != "" {
		t.Fatalf("expected pass, got %s", got)
	}

	inactive := base
	inactive.IsActive = false
	inactive.ValidUntil = now.Add(-time.Minute)
	if got := ruleFailure(&inactive, user, now); got != "inactive" {
		t.Fatalf("inactive should win, got %s", got)
	}

	future := base
	future.ValidFrom = now.Add(time.Minute)
	if got := ruleFailure(&future, user, now); got != "not_started" {
		t.Fatalf("expected not_started, got %s", got)
	}

	expired := base
	expired.ValidUntil = now.Add(-time.Minute)
	if got := ruleFailure(&expired, user, now); got != "expired" {
		t.Fatalf("expected expired, got %s", got)
	}

	exhausted := base
	exhausted.UsageLimit = &limit
	exhausted.UsedCount = 1
	if got := ruleFailure(&exhausted, user, now); got != "usage_limit_reached" {
		t.Fatalf("expected usage_limit_reached, got %s", got)
	}

	restricted := base
	restricted.ApplicableUsers = []uuid.UUID{uuid.New()}
	if got := ruleFailure(&restricted, user, now); got != "user_not_eligible" {
		t.Fatalf("expected user_not_eligible, got %s", got)
	}
	restricted.ApplicableUsers = append(restricted.ApplicableUsers, user)
	if got := ruleFailure(&restricted, user, now); got != "" {
		t.Fatalf("listed user should pass, got %s", got)
	}
}
