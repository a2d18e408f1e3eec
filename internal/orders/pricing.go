package orders

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

// DeliveryPolicy prices a shipping method.
type DeliveryPolicy struct {
	StandardCost decimal.Decimal
	StandardDays int
	ExpressCost  decimal.Decimal
	ExpressDays  int
}

// DeliveryPolicyFromConfig reads the policy from the orders config.
func DeliveryPolicyFromConfig(cfg config.OrdersConfig) DeliveryPolicy {
	return DeliveryPolicy{
		StandardCost: cfg.StandardDeliveryCost,
		StandardDays: cfg.StandardDeliveryDays,
		ExpressCost:  cfg.ExpressDeliveryCost,
		ExpressDays:  cfg.ExpressDeliveryDays,
	}
}

// Quote returns the cost and lead time of method.
func (p DeliveryPolicy) Quote(method enums.ShippingMethod) (decimal.Decimal, int, error) {
	switch method {
	case enums.ShippingStandard:
		return p.StandardCost, p.StandardDays, nil
	case enums.ShippingExpress:
		return p.ExpressCost, p.ExpressDays, nil
	default:
		return decimal.Zero, 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}
}

// orderTotal is subtotal plus delivery minus discount, never below zero.
func orderTotal(subtotal, deliveryCost, discountAmount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(deliveryCost).Sub(discountAmount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

// newOrderNumber builds a human friendly unique reference like ORD-20260615-9F2C41AB.
func newOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
