package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once the order transaction commits.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID            `json:"orderId"`
	OrderNumber    string               `json:"orderNumber"`
	CustomerID     uuid.UUID            `json:"customerId"`
	CustomerEmail  string               `json:"customerEmail"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	DiscountAmount decimal.Decimal      `json:"discountAmount"`
	DeliveryCost   decimal.Decimal      `json:"deliveryCost"`
	TotalAmount    decimal.Decimal      `json:"totalAmount"`
	PaymentMethod  enums.PaymentMethod  `json:"paymentMethod"`
	ShippingMethod enums.ShippingMethod `json:"shippingMethod"`
	DeliveryDays   int                  `json:"deliveryDays"`
	Items          []OrderItemLine      `json:"items"`
}

// OrderItemLine is the e-mail friendly view of an order item.
type OrderItemLine struct {
	ProductName string          `json:"productName"`
	Size        string          `json:"size"`
	ColorName   string          `json:"colorName"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// OrderStatusChangedEvent is emitted for every accepted transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"orderId"`
	OrderNumber    string            `json:"orderNumber"`
	CustomerEmail  string            `json:"customerEmail"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber *string           `json:"trackingNumber,omitempty"`
	Carrier        *string           `json:"carrier,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

// OrderCancelledEvent carries the compensation summary of a cancellation.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID         `json:"orderId"`
	OrderNumber   string            `json:"orderNumber"`
	CustomerEmail string            `json:"customerEmail"`
	PreviousState enums.OrderStatus `json:"previousState"`
	RestoredUnits int               `json:"restoredUnits"`
	CancelledAt   time.Time         `json:"cancelledAt"`
	Reason        string            `json:"reason,omitempty"`
}

// CashCollectedEvent reports a successful COD collection.
type CashCollectedEvent struct {
	PaymentID        uuid.UUID              `json:"paymentId"`
	OrderID          uuid.UUID              `json:"orderId"`
	DeliveryPersonID uuid.UUID              `json:"deliveryPersonId"`
	Amount           decimal.Decimal        `json:"amount"`
	CollectedTotal   decimal.Decimal        `json:"collectedTotal"`
	Balance          decimal.Decimal        `json:"balance"`
	CollectionStatus enums.CollectionStatus `json:"collectionStatus"`
	Status           enums.PaymentStatus    `json:"status"`
}

// PaymentCollectionFailedEvent reports the issues raised at the doorstep.
type PaymentCollectionFailedEvent struct {
	PaymentID        uuid.UUID               `json:"paymentId"`
	OrderID          uuid.UUID               `json:"orderId"`
	DeliveryPersonID uuid.UUID               `json:"deliveryPersonId"`
	Issues           []enums.CollectionIssue `json:"issues"`
	Description      string                  `json:"description,omitempty"`
	Attempts         int                     `json:"attempts"`
}

// StockLowEvent is emitted when a variant's available stock crosses its threshold.
type StockLowEvent struct {
	ProductID      uuid.UUID `json:"productId"`
	VariantID      uuid.UUID `json:"variantId"`
	AvailableStock int       `json:"availableStock"`
	Threshold      int       `json:"threshold"`
	OutOfStock     bool      `json:"outOfStock"`
}
