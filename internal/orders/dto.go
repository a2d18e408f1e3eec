package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

// Actor is whoever drives an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) validate() error {
	if a.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	return nil
}

func (a Actor) privileged() bool {
	return a.Role == enums.RoleAdmin || a.Role == enums.RoleSystem
}

// ItemInput selects a variant of a product by size, color and SKU.
type ItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Size      string    `json:"size" validate:"required"`
	ColorName string    `json:"colorName" validate:"required"`
	SKU       string    `json:"sku" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// ShippingInput is where and how the order travels.
type ShippingInput struct {
	Method  enums.ShippingMethod `json:"method"`
	Address string               `json:"address" validate:"required"`
	City    string               `json:"city" validate:"required"`
	Phone   string               `json:"phone" validate:"required"`
}

// CreateOrderInput is a customer's order request.
type CreateOrderInput struct {
	CustomerID    uuid.UUID           `json:"-"`
	CustomerEmail string              `json:"-"`
	Items         []ItemInput         `json:"items" validate:"required,min=1,dive"`
	DiscountCode  string              `json:"discountCode"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Shipping      ShippingInput       `json:"shipping" validate:"required"`
}

func (in *CreateOrderInput) normalize() error {
	if in.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(in.CustomerEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if len(in.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for i := range in.Items {
		item := &in.Items[i]
		if item.ProductID == uuid.Nil {
			return itemError(i, "productId is required")
		}
		item.Size = strings.TrimSpace(item.Size)
		item.ColorName = strings.TrimSpace(item.ColorName)
		item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
		if item.Size == "" || item.ColorName == "" || item.SKU == "" {
			return itemError(i, "size, colorName and sku are required")
		}
		if item.Quantity <= 0 {
			return itemError(i, "quantity must be positive")
		}
	}
	in.Items = mergeItems(in.Items)

	method, err := enums.ParsePaymentMethod(string(in.PaymentMethod))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	in.PaymentMethod = method

	shipping, err := enums.ParseShippingMethod(string(in.Shipping.Method))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping method")
	}
	in.Shipping.Method = shipping
	in.Shipping.Address = strings.TrimSpace(in.Shipping.Address)
	in.Shipping.City = strings.TrimSpace(in.Shipping.City)
	in.Shipping.Phone = strings.TrimSpace(in.Shipping.Phone)
	if in.Shipping.Address == "" || in.Shipping.City == "" || in.Shipping.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address, city and phone are required")
	}
	in.DiscountCode = strings.TrimSpace(in.DiscountCode)
	return nil
}

// mergeItems folds repeated selections of the same variant into one line.
func mergeItems(items []ItemInput) []ItemInput {
	type key struct {
		product          uuid.UUID
		size, color, sku string
	}
	out := make([]ItemInput, 0, len(items))
	seen := make(map[key]int, len(items))
	for _, item := range items {
		k := key{item.ProductID, item.Size, item.ColorName, item.SKU}
		if idx, ok := seen[k]; ok {
			out[idx].Quantity += item.Quantity
			continue
		}
		seen[k] = len(out)
		out = append(out, item)
	}
	return out
}

func itemError(index int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"item": index})
}

// CancelOrderInput asks for an order to be cancelled and its stock returned.
type CancelOrderInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Reason  string
}

// UpdateStatusInput is the admin status override. Force skips the state machine
// check but never leaves a cancelled order or enters a delivery step.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	Status         enums.OrderStatus
	Actor          Actor
	Notes          string
	TrackingNumber string
	Carrier        string
	Force          bool
}

// ShipOrderInput marks an order shipped with its tracking details.
type ShipOrderInput struct {
	OrderID        uuid.UUID
	Actor          Actor
	TrackingNumber string
	Carrier        string
	Notes          string
}

// TransitionInput moves an order one step inside a caller's transaction. Updates
// carries extra columns written with the status.
type TransitionInput struct {
	OrderID uuid.UUID
	To      enums.OrderStatus
	Actor   Actor
	Notes   string
	Updates map[string]any
}

// ListOrdersInput pages a customer's orders.
type ListOrdersInput struct {
	CustomerID uuid.UUID
	Limit      int
	Cursor     string
}

type OrderItemDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	VariantID   uuid.UUID       `json:"variantId"`
	ProductName string          `json:"productName"`
	Size        string          `json:"size"`
	ColorName   string          `json:"colorName"`
	ColorHex    *string         `json:"colorHex,omitempty"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type StatusHistoryDTO struct {
	Status    enums.OrderStatus `json:"status"`
	ActorID   uuid.UUID         `json:"actorId"`
	ActorRole enums.UserRole    `json:"actorRole"`
	Notes     *string           `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type DiscountDTO struct {
	Code   string              `json:"code"`
	Type   enums.DiscountType  `json:"type"`
	Value  decimal.NullDecimal `json:"value"`
	Amount decimal.Decimal     `json:"amount"`
}

type OrderDTO struct {
	ID               uuid.UUID            `json:"id"`
	OrderNumber      string               `json:"orderNumber"`
	CustomerID       uuid.UUID            `json:"customerId"`
	Items            []OrderItemDTO       `json:"items"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	DeliveryCost     decimal.Decimal      `json:"deliveryCost"`
	Discount         *DiscountDTO         `json:"discount,omitempty"`
	DiscountAmount   decimal.Decimal      `json:"discountAmount"`
	TotalAmount      decimal.Decimal      `json:"totalAmount"`
	Status           enums.OrderStatus    `json:"status"`
	PaymentMethod    enums.PaymentMethod  `json:"paymentMethod"`
	PaymentStatus    enums.PaymentStatus  `json:"paymentStatus"`
	PaymentID        *uuid.UUID           `json:"paymentId,omitempty"`
	ShippingMethod   enums.ShippingMethod `json:"shippingMethod"`
	ShippingAddress  string               `json:"shippingAddress"`
	ShippingCity     string               `json:"shippingCity"`
	ShippingPhone    string               `json:"shippingPhone"`
	DeliveryDays     int                  `json:"deliveryDays"`
	TrackingNumber   *string              `json:"trackingNumber,omitempty"`
	Carrier          *string              `json:"carrier,omitempty"`
	DeliveryPersonID *uuid.UUID           `json:"deliveryPersonId,omitempty"`
	StatusHistory    []StatusHistoryDTO   `json:"statusHistory,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

type OrderList struct {
	Orders []OrderDTO `json:"orders"`
	Cursor string     `json:"cursor,omitempty"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		CustomerID:       o.CustomerID,
		Items:            make([]OrderItemDTO, 0, len(o.Items)),
		Subtotal:         o.Subtotal,
		DeliveryCost:     o.DeliveryCost,
		DiscountAmount:   o.DiscountAmount,
		TotalAmount:      o.TotalAmount,
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		PaymentID:        o.PaymentID,
		ShippingMethod:   o.ShippingMethod,
		ShippingAddress:  o.ShippingAddress,
		ShippingCity:     o.ShippingCity,
		ShippingPhone:    o.ShippingPhone,
		DeliveryDays:     o.DeliveryDays,
		TrackingNumber:   o.TrackingNumber,
		Carrier:          o.Carrier,
		DeliveryPersonID: o.DeliveryPersonID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.DiscountCode != nil {
		d := &DiscountDTO{Code: *o.DiscountCode, Value: o.DiscountValue, Amount: o.DiscountAmount}
		if o.DiscountType != nil {
			d.Type = *o.DiscountType
		}
		dto.Discount = d
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Size:        item.Size,
			ColorName:   item.ColorName,
			ColorHex:    item.ColorHex,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	for _, h := range o.StatusHistory {
		dto.StatusHistory = append(dto.StatusHistory, StatusHistoryDTO{
			Status:    h.Status,
			ActorID:   h.ActorID,
			ActorRole: h.ActorRole,
			Notes:     h.Notes,
			CreatedAt: h.CreatedAt,
		})
	}
	return dto
}
