package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/internal/catalog"
	"github.com/angelmondragon/shopflow-backend/internal/discounts"
	"github.com/angelmondragon/shopflow-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopflow-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// stockLedger appends a movement and folds it into the inventory aggregate.
type stockLedger interface {
	RecordAndApply(ctx context.Context, tx *gorm.DB, params inventory.MovementParams) (*models.StockMovement, *models.Inventory, error)
}

type discountEvaluator interface {
	FindValidDiscount(ctx context.Context, tx *gorm.DB, code string, userID uuid.UUID, orderAmount decimal.Decimal) (*models.Discount, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, discountID, userID uuid.UUID, orderID *uuid.UUID) error
}

type paymentRecorder interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Payment, error)
	FailOutstanding(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// Service exposes the order workflow.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, viewer Actor) (*OrderDTO, error)
	ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	ShipOrder(ctx context.Context, input ShipOrderInput) (*OrderDTO, error)
	Transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
}

// ServiceParams wires the order workflow.
type ServiceParams struct {
	DB        txRunner
	Repo      Repository
	Catalog   *catalog.Repository
	Ledger    stockLedger
	Discounts discountEvaluator
	Payments  paymentRecorder
	Outbox    outboxPublisher
	Delivery  DeliveryPolicy
	Logger    *logger.Logger
	Metrics   *metrics.Workflow
}

type service struct {
	db        txRunner
	repo      Repository
	catalog   *catalog.Repository
	ledger    stockLedger
	discounts discountEvaluator
	payments  paymentRecorder
	outbox    outboxPublisher
	delivery  DeliveryPolicy
	logg      *logger.Logger
	metrics   *metrics.Workflow
	now       func() time.Time
}

// NewService builds the order workflow with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Discounts == nil {
		return nil, fmt.Errorf("discount evaluator required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		catalog:   params.Catalog,
		ledger:    params.Ledger,
		discounts: params.Discounts,
		payments:  params.Payments,
		outbox:    params.Outbox,
		delivery:  params.Delivery,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

// CreateOrder validates the items, prices them, applies the discount and commits
// the order, its payment record, the stock decrements with their ledger entries
// and the order_created event in one transaction.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	order, err := s.createOrder(ctx, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.OrderFailed(string(typed.Code()))
		} else {
			s.metrics.OrderFailed(string(pkgerrors.CodeInternal))
		}
		return nil, err
	}

	s.metrics.OrderCreated(string(order.PaymentMethod), order.DiscountID != nil)
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"order_number": order.OrderNumber,
			"customer_id":  order.CustomerID.String(),
			"items":        len(order.Items),
			"total":        order.TotalAmount.StringFixed(2),
		})
		s.logg.Info(logCtx, "order.created")
	}
	return FromModel(order), nil
}

func (s *service) createOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	deliveryCost, deliveryDays, err := s.delivery.Quote(input.Shipping.Method)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	number, err := newOrderNumber(now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	var order *models.Order
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)
		repo := s.repo.WithTx(tx)

		items := make([]models.OrderItem, 0, len(input.Items))
		subtotal := decimal.Zero
		for i, line := range input.Items {
			product, err := catalogRepo.FindProductByID(ctx, line.ProductID)
			if err != nil {
				return withItem(err, i)
			}
			if !product.IsActive || product.Status != enums.ProductStatusPublished {
				return withItem(pkgerrors.New(pkgerrors.CodeNotFound, "product not found"), i)
			}
			variant, err := catalogRepo.FindVariant(ctx, product.ID, catalog.VariantKey{
				Size:      line.Size,
				ColorName: line.ColorName,
				SKU:       line.SKU,
			})
			if err != nil {
				return withItem(err, i)
			}
			if !variant.IsActive {
				return withItem(pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found"), i)
			}
			if variant.StockQuantity < line.Quantity {
				return insufficientStock(variant.SKU, variant.StockQuantity, line.Quantity)
			}
			unit := variant.UnitPrice()
			lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				VariantID:   variant.ID,
				ProductName: product.Name,
				Size:        variant.Size,
				ColorName:   variant.ColorName,
				ColorHex:    variant.ColorHex,
				SKU:         variant.SKU,
				Quantity:    line.Quantity,
				UnitPrice:   unit,
				LineTotal:   lineTotal,
			})
		}

		var discount *models.Discount
		discountAmount := decimal.Zero
		if input.DiscountCode != "" {
			found, err := s.discounts.FindValidDiscount(ctx, tx, input.DiscountCode, input.CustomerID, subtotal)
			if err != nil {
				return err
			}
			if found == nil {
				return discounts.ErrInvalidDiscount()
			}
			discount = found
			discountAmount = discounts.CalculateDiscountAmount(discount, subtotal)
		}

		order = &models.Order{
			OrderNumber:     number,
			CustomerID:      input.CustomerID,
			CustomerEmail:   strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
			Subtotal:        subtotal,
			DeliveryCost:    deliveryCost,
			DiscountAmount:  discountAmount,
			TotalAmount:     orderTotal(subtotal, deliveryCost, discountAmount),
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusPending,
			ShippingMethod:  input.Shipping.Method,
			ShippingAddress: input.Shipping.Address,
			ShippingCity:    input.Shipping.City,
			ShippingPhone:   input.Shipping.Phone,
			DeliveryDays:    deliveryDays,
			Items:           items,
			StatusHistory: []models.OrderStatusHistory{{
				Status:    enums.OrderStatusPending,
				ActorID:   input.CustomerID,
				ActorRole: enums.RoleCustomer,
			}},
		}
		if discount != nil {
			order.DiscountID = &discount.ID
			order.DiscountCode = &discount.Code
			order.DiscountType = &discount.Type
			order.DiscountValue = decimal.NewNullDecimal(discount.Value)
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if order.PaymentMethod == enums.PaymentMethodCOD {
			payment, err := s.payments.CreateForOrder(ctx, tx, order)
			if err != nil {
				return err
			}
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"payment_id":     payment.ID,
				"payment_status": payment.Status,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link payment")
			}
		}

		reference := order.OrderNumber
		for _, item := range order.Items {
			current, err := catalogRepo.CurrentStock(ctx, item.VariantID)
			if err != nil {
				return err
			}
			if current < item.Quantity {
				return insufficientStock(item.SKU, current, item.Quantity)
			}
			affected, err := catalogRepo.DecrementVariantStock(ctx, item.VariantID, item.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeStockUpdateFailed, "stock changed while placing the order, please retry").
					WithDetails(map[string]any{"sku": item.SKU})
			}
			if _, _, err := s.ledger.RecordAndApply(ctx, tx, inventory.MovementParams{
				ProductID:       item.ProductID,
				VariantID:       item.VariantID,
				Type:            enums.MovementOut,
				Quantity:        -item.Quantity,
				PreviousStock:   current,
				NewStock:        current - item.Quantity,
				Reason:          "order placed",
				ReferenceType:   enums.MovementReferenceOrder,
				ReferenceID:     &order.ID,
				ReferenceNumber: &reference,
				PerformedBy:     input.CustomerID,
			}); err != nil {
				return err
			}
		}

		if discount != nil {
			if err := s.discounts.IncrementUsage(ctx, tx, discount.ID, input.CustomerID, &order.ID); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: enums.RoleCustomer},
			OccurredAt:    now,
			Data:          orderCreatedPayload(order),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order with its history. Customers only see their own and
// delivery persons only the ones assigned to them.
func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, viewer Actor) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := viewer.validate(); err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, orderLoadError(err)
	}
	if !canView(order, viewer) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return FromModel(order), nil
}

// ListOrders pages a customer's orders newest first.
func (s *service) ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	params := listOrdersParams{Limit: input.Limit}
	if input.Cursor != "" {
		cursor, err := pagination.Decode(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}
	rows, next, err := s.repo.ListByCustomer(ctx, input.CustomerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, *FromModel(&rows[i]))
	}
	if next != nil {
		out.Cursor = next.Encode()
	}
	return out, nil
}

// CancelOrder returns every item's units to stock and cancels the order. An
// order that is already cancelled is returned unchanged.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := input.Actor.validate(); err != nil {
		return nil, err
	}
	if input.Actor.Role != enums.RoleCustomer && !input.Actor.privileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers and admins may cancel orders")
	}

	var (
		previous enums.OrderStatus
		restored int
		changed  bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockByID(ctx, input.OrderID)
		if err != nil {
			return orderLoadError(err)
		}
		if input.Actor.Role == enums.RoleCustomer && order.CustomerID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if !Cancellable(order.Status) {
			return invalidTransition(order.Status, enums.OrderStatusCancelled)
		}
		previous = order.Status
		restored, err = s.cancelInTx(ctx, tx, order, input.Actor, input.Reason)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.OrderCancelled()
		s.metrics.StatusChanged(string(enums.OrderStatusCancelled))
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"previous_status": previous,
				"restored_units":  restored,
				"actor_role":      input.Actor.Role,
			})
			s.logg.Info(logCtx, "order.cancelled")
		}
	}
	return s.reload(ctx, input.OrderID)
}

// cancelInTx runs the compensation for a locked order: each item goes back to
// the variant counter with a restoration movement, then the status, history,
// payment and event follow.
func (s *service) cancelInTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, reason string) (int, error) {
	catalogRepo := s.catalog.WithTx(tx)
	repo := s.repo.WithTx(tx)
	reference := order.OrderNumber
	restored := 0
	for _, item := range order.Items {
		current, err := catalogRepo.CurrentStock(ctx, item.VariantID)
		if err != nil {
			return 0, err
		}
		affected, err := catalogRepo.IncrementVariantStock(ctx, item.VariantID, item.Quantity)
		if err != nil {
			return 0, err
		}
		if affected == 0 {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"sku": item.SKU})
		}
		if _, _, err := s.ledger.RecordAndApply(ctx, tx, inventory.MovementParams{
			ProductID:       item.ProductID,
			VariantID:       item.VariantID,
			Type:            enums.MovementRestoration,
			Quantity:        item.Quantity,
			PreviousStock:   current,
			NewStock:        current + item.Quantity,
			Reason:          "order cancelled",
			ReferenceType:   enums.MovementReferenceOrder,
			ReferenceID:     &order.ID,
			ReferenceNumber: &reference,
			PerformedBy:     actor.UserID,
		}); err != nil {
			return 0, err
		}
		restored += item.Quantity
	}

	updates := map[string]any{"status": enums.OrderStatusCancelled}
	failed, err := s.payments.FailOutstanding(ctx, tx, order.ID)
	if err != nil {
		return 0, err
	}
	if failed {
		updates["payment_status"] = enums.PaymentStatusFailed
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if err := repo.AppendHistory(ctx, historyEntry(order.ID, enums.OrderStatusCancelled, actor, reason)); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}
	if _, err := repo.ReleaseAssignments(ctx, order.ID); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release delivery assignment")
	}

	now := s.now().UTC()
	actorRef := &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef,
		OccurredAt:    now,
		Data: payloads.OrderCancelledEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerEmail: order.CustomerEmail,
			PreviousState: order.Status,
			RestoredUnits: restored,
			CancelledAt:   now,
			Reason:        reason,
		},
	}); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled event")
	}
	return restored, nil
}

// UpdateStatus is the admin override. Without Force the state machine decides;
// with Force any status is accepted except leaving cancelled. The assigned and
// out_for_delivery steps belong to the delivery flow and are refused here.
// Cancellation always runs the stock compensation, and closing an order
// releases its delivery assignment.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := input.Actor.validate(); err != nil {
		return nil, err
	}
	if !input.Actor.privileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Status.IsValid() || input.Status == enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status").
			WithDetails(map[string]any{"status": input.Status})
	}
	switch input.Status {
	case enums.OrderStatusAssigned:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the assign endpoint to hand an order to a delivery person")
	case enums.OrderStatusOutForDelivery:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only the assigned delivery person can start the delivery run")
	}
	tracking := strings.TrimSpace(input.TrackingNumber)
	if input.Status == enums.OrderStatusShipped && tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required to ship an order")
	}

	var (
		from    enums.OrderStatus
		changed bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).LockByID(ctx, input.OrderID)
		if err != nil {
			return orderLoadError(err)
		}
		from = order.Status
		if order.Status == input.Status {
			return nil
		}
		if order.Status == enums.OrderStatusCancelled {
			return invalidTransition(order.Status, input.Status)
		}
		if !input.Force && !CanTransitionAs(order.Status, input.Status, input.Actor.Role) {
			return invalidTransition(order.Status, input.Status)
		}

		if input.Status == enums.OrderStatusCancelled {
			if _, err := s.cancelInTx(ctx, tx, order, input.Actor, input.Notes); err != nil {
				return err
			}
			changed = true
			return nil
		}

		updates := map[string]any{}
		if tracking != "" {
			updates["tracking_number"] = tracking
		}
		if carrier := strings.TrimSpace(input.Carrier); carrier != "" {
			updates["carrier"] = carrier
		}
		if err := s.applyTransition(ctx, tx, order, input.Status, input.Actor, input.Notes, updates); err != nil {
			return err
		}
		if input.Status == enums.OrderStatusDelivered || input.Status == enums.OrderStatusCompleted {
			if _, err := s.repo.WithTx(tx).ReleaseAssignments(ctx, order.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release delivery assignment")
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.statusChanged(ctx, input.OrderID, from, input.Status, input.Force)
		if input.Status == enums.OrderStatusCancelled {
			s.metrics.OrderCancelled()
		}
	}
	return s.reload(ctx, input.OrderID)
}

// ShipOrder moves a pending or confirmed order to shipped with its tracking info.
func (s *service) ShipOrder(ctx context.Context, input ShipOrderInput) (*OrderDTO, error) {
	return s.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:        input.OrderID,
		Status:         enums.OrderStatusShipped,
		Actor:          input.Actor,
		Notes:          input.Notes,
		TrackingNumber: input.TrackingNumber,
		Carrier:        input.Carrier,
	})
}

// Transition moves an order one step of the state machine inside tx for the
// actor's role. Cancellation is not accepted here since it needs compensation.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := input.Actor.validate(); err != nil {
		return nil, err
	}
	if input.To == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation must go through CancelOrder")
	}
	order, err := s.repo.WithTx(tx).LockByID(ctx, input.OrderID)
	if err != nil {
		return nil, orderLoadError(err)
	}
	if !CanTransitionAs(order.Status, input.To, input.Actor.Role) {
		return nil, invalidTransition(order.Status, input.To)
	}
	from := order.Status
	if err := s.applyTransition(ctx, tx, order, input.To, input.Actor, input.Notes, input.Updates); err != nil {
		return nil, err
	}
	dbpkg.AfterCommit(tx, func() {
		s.statusChanged(ctx, input.OrderID, from, input.To, false)
	})
	return order, nil
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor Actor, notes string, extra map[string]any) error {
	repo := s.repo.WithTx(tx)
	updates := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		updates[k] = v
	}
	updates["status"] = to
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if err := repo.AppendHistory(ctx, historyEntry(order.ID, to, actor, notes)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}

	from := order.Status
	order.Status = to
	if v, ok := updates["tracking_number"].(string); ok {
		order.TrackingNumber = &v
	}
	if v, ok := updates["carrier"].(string); ok {
		order.Carrier = &v
	}
	if v, ok := updates["delivery_person_id"].(uuid.UUID); ok {
		order.DeliveryPersonID = &v
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
		OccurredAt:    s.now().UTC(),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			CustomerEmail:  order.CustomerEmail,
			From:           from,
			To:             to,
			TrackingNumber: order.TrackingNumber,
			Carrier:        order.Carrier,
			Notes:          notes,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status changed event")
	}
	return nil
}

func (s *service) statusChanged(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, forced bool) {
	s.metrics.StatusChanged(string(to))
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"from":   from,
		"to":     to,
		"forced": forced,
	})
	s.logg.Info(logCtx, "order.status_changed")
}

func (s *service) reload(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, orderLoadError(err)
	}
	return FromModel(order), nil
}

func canView(order *models.Order, viewer Actor) bool {
	switch viewer.Role {
	case enums.RoleAdmin, enums.RoleSystem:
		return true
	case enums.RoleCustomer:
		return order.CustomerID == viewer.UserID
	case enums.RoleDeliveryPerson:
		return order.DeliveryPersonID != nil && *order.DeliveryPersonID == viewer.UserID
	}
	return false
}

func historyEntry(orderID uuid.UUID, status enums.OrderStatus, actor Actor, notes string) *models.OrderStatusHistory {
	entry := &models.OrderStatusHistory{
		OrderID:   orderID,
		Status:    status,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
	}
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		entry.Notes = &trimmed
	}
	return entry
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	lines := make([]payloads.OrderItemLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderItemLine{
			ProductName: item.ProductName,
			Size:        item.Size,
			ColorName:   item.ColorName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		CustomerEmail:  order.CustomerEmail,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		DeliveryCost:   order.DeliveryCost,
		TotalAmount:    order.TotalAmount,
		PaymentMethod:  order.PaymentMethod,
		ShippingMethod: order.ShippingMethod,
		DeliveryDays:   order.DeliveryDays,
		Items:          lines,
	}
}

func orderLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to, "allowed": NextStatuses(from)})
}

func insufficientStock(sku string, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("Insufficient stock for %s", sku)).
		WithDetails(map[string]any{
			"sku":       sku,
			"available": available,
			"requested": requested,
		})
}

// withItem tags a lookup failure with the index of the offending line.
func withItem(err error, index int) error {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return err
	}
	return pkgerrors.New(typed.Code(), typed.Message()).WithDetails(map[string]any{"item": index})
}
