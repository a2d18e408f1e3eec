package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeliveryQuote(t *testing.T) {
	policy := DeliveryPolicy{StandardCost: dec("50"), StandardDays: 5, ExpressCost: dec("120"), ExpressDays: 2}

	cost, days, err := policy.Quote(enums.ShippingStandard)
	if err != nil || !cost.Equal(dec("50")) || days != 5 {
		t.Fatalf("unexpected standard quote %s %d %v", cost, days, err)
	}
	cost, days, err = policy.Quote(enums.ShippingExpress)
	if err != nil || !cost.Equal(dec("120")) || days != 2 {
		t.Fatalf("unexpected express quote %s %d %v", cost, days, err)
	}
	if _, _, err := policy.Quote("drone"); err == nil {
		t.Fatalf("expected unknown method to fail")
	}
}

func TestOrderTotalNeverNegative(t *testing.T) {
	cases := []struct {
		subtotal, delivery, discount, want string
	}{
		{"100", "50", "0", "150"},
		{"100", "50", "10", "140"},
		{"100", "0", "100", "0"},
		{"10", "0", "25", "0"},
		{"19.999", "0", "0", "20"},
	}
	for _, tc := range cases {
		got := orderTotal(dec(tc.subtotal), dec(tc.delivery), dec(tc.discount))
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("total(%s, %s, %s): expected %s, got %s", tc.subtotal, tc.delivery, tc.discount, tc.want, got)
		}
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-20260615-[0-9A-F]{8}$`)
	now := time.Date(2026, 6, 15, 23, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number, err := newOrderNumber(now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected order number %q", number)
		}
		if seen[number] {
			t.Fatalf("duplicate order number %q", number)
		}
		seen[number] = true
	}
}

func TestNormalizeMergesDuplicateLines(t *testing.T) {
	product := uuid.New()
	input := CreateOrderInput{
		CustomerID:    uuid.New(),
		CustomerEmail: "buyer@example.com",
		Items: []ItemInput{
			{ProductID: product, Size: "42", ColorName: "Black", SKU: "tr-42", Quantity: 1},
			{ProductID: product, Size: " 42 ", ColorName: "Black", SKU: "TR-42", Quantity: 2},
			{ProductID: product, Size: "43", ColorName: "Black", SKU: "TR-43", Quantity: 1},
		},
		Shipping: ShippingInput{Address: "1 Main St", City: "Springfield", Phone: "555-0100"},
	}
	if err := input.normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(input.Items) != 2 {
		t.Fatalf("expected 2 merged lines, got %d", len(input.Items))
	}
	if input.Items[0].Quantity != 3 || input.Items[0].SKU != "TR-42" {
		t.Fatalf("unexpected merged line %+v", input.Items[0])
	}
	if input.PaymentMethod != enums.PaymentMethodCOD || input.Shipping.Method != enums.ShippingStandard {
		t.Fatalf("expected cod and standard defaults, got %s %s", input.PaymentMethod, input.Shipping.Method)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	valid := func() CreateOrderInput {
		return CreateOrderInput{
			CustomerID:    uuid.New(),
			CustomerEmail: "buyer@example.com",
			Items:         []ItemInput{{ProductID: uuid.New(), Size: "42", ColorName: "Black", SKU: "A", Quantity: 1}},
			Shipping:      ShippingInput{Address: "1 Main St", City: "Springfield", Phone: "555-0100"},
		}
	}
	cases := map[string]func(in *CreateOrderInput){
		"no items":        func(in *CreateOrderInput) { in.Items = nil },
		"zero quantity":   func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
		"missing sku":     func(in *CreateOrderInput) { in.Items[0].SKU = " " },
		"bad payment":     func(in *CreateOrderInput) { in.PaymentMethod = "barter" },
		"bad shipping":    func(in *CreateOrderInput) { in.Shipping.Method = "drone" },
		"missing city":    func(in *CreateOrderInput) { in.Shipping.City = "" },
		"missing email":   func(in *CreateOrderInput) { in.CustomerEmail = "" },
		"missing product": func(in *CreateOrderInput) { in.Items[0].ProductID = uuid.Nil },
	}
	for name, mutate := range cases {
		in := valid()
		mutate(&in)
		if err := in.normalize(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
