package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
)

// Order is a customer order with immutable item snapshots and a status history.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string               `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID       uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	CustomerEmail    string               `gorm:"column:customer_email;not null"`
	Subtotal         decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryCost     decimal.Decimal      `gorm:"column:delivery_cost;type:numeric(12,2);not null"`
	DiscountID       *uuid.UUID           `gorm:"column:discount_id;type:uuid"`
	DiscountCode     *string              `gorm:"column:discount_code"`
	DiscountType     *enums.DiscountType  `gorm:"column:discount_type;type:text"`
	DiscountValue    decimal.NullDecimal  `gorm:"column:discount_value;type:numeric(12,2)"`
	DiscountAmount   decimal.Decimal      `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount      decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status           enums.OrderStatus    `gorm:"column:status;type:text;not null"`
	PaymentMethod    enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus    enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null"`
	PaymentID        *uuid.UUID           `gorm:"column:payment_id;type:uuid"`
	ShippingMethod   enums.ShippingMethod `gorm:"column:shipping_method;type:text;not null"`
	ShippingAddress  string               `gorm:"column:shipping_address;not null"`
	ShippingCity     string               `gorm:"column:shipping_city;not null"`
	ShippingPhone    string               `gorm:"column:shipping_phone;not null"`
	DeliveryDays     int                  `gorm:"column:delivery_days;not null"`
	TrackingNumber   *string              `gorm:"column:tracking_number"`
	Carrier          *string              `gorm:"column:carrier"`
	DeliveryPersonID *uuid.UUID           `gorm:"column:delivery_person_id;type:uuid"`
	Items            []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory    []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem snapshots the variant and price at order time. It is never updated.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID   uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Size        string          `gorm:"column:size;not null"`
	ColorName   string          `gorm:"column:color_name;not null"`
	ColorHex    *string         `gorm:"column:color_hex"`
	SKU         string          `gorm:"column:sku;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// OrderStatusHistory is one append-only entry of an order's status log.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	ActorID   uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole enums.UserRole    `gorm:"column:actor_role;type:text;not null"`
	Notes     *string           `gorm:"column:notes"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}
