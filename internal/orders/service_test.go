package orders

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/internal/catalog"
	"github.com/angelmondragon/shopflow-backend/internal/discounts"
	"github.com/angelmondragon/shopflow-backend/internal/inventory"
	"github.com/angelmondragon/shopflow-backend/internal/payments"
	"github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
)

type workflowFixture struct {
	client    *db.Client
	gdb       *gorm.DB
	svc       *service
	catalog   catalog.Service
	discounts *discounts.Service
	admin     Actor
	customer  Actor
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	client := dbtest.Open(t)
	gdb := client.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), nil)
	catalogRepo := catalog.NewRepository(gdb)

	inv, err := inventory.NewService(inventory.ServiceParams{
		DB:                client,
		Repo:              inventory.NewRepository(gdb),
		Catalog:           catalogRepo,
		Outbox:            emitter,
		LowStockThreshold: 1,
	})
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(client, catalogRepo, inv, nil)
	require.NoError(t, err)
	discountSvc, err := discounts.NewService(discounts.NewRepository(gdb), nil)
	require.NoError(t, err)
	paymentSvc, err := payments.NewService(client, payments.NewRepository(gdb), emitter, nil, nil)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		DB:        client,
		Repo:      NewRepository(gdb),
		Catalog:   catalogRepo,
		Ledger:    inv,
		Discounts: discountSvc,
		Payments:  paymentSvc,
		Outbox:    emitter,
		Delivery: DeliveryPolicy{
			StandardCost: dec("50"),
			StandardDays: 5,
			ExpressCost:  dec("120"),
			ExpressDays:  2,
		},
	})
	require.NoError(t, err)

	return &workflowFixture{
		client:    client,
		gdb:       gdb,
		svc:       svc.(*service),
		catalog:   catalogSvc,
		discounts: discountSvc,
		admin:     Actor{UserID: uuid.New(), Role: enums.RoleAdmin},
		customer:  Actor{UserID: uuid.New(), Role: enums.RoleCustomer},
	}
}

func (f *workflowFixture) seedProduct(t *testing.T, sku string, price string, stock int) *catalog.ProductDTO {
	t.Helper()
	product, err := f.catalog.CreateProduct(context.Background(), f.admin.UserID, catalog.CreateProductInput{
		Name:   "Runner " + sku,
		Brand:  "Acme",
		Status: enums.ProductStatusPublished,
		Variants: []catalog.CreateVariantInput{{
			Size:         "42",
			ColorName:    "Black",
			SKU:          sku,
			RegularPrice: dec(price),
			InitialStock: stock,
		}},
	})
	require.NoError(t, err)
	return product
}

func (f *workflowFixture) orderInput(customer Actor, product *catalog.ProductDTO, qty int) CreateOrderInput {
	v := product.Variants[0]
	return CreateOrderInput{
		CustomerID:    customer.UserID,
		CustomerEmail: "buyer@example.com",
		Items: []ItemInput{{
			ProductID: product.ID,
			Size:      v.Size,
			ColorName: v.ColorName,
			SKU:       v.SKU,
			Quantity:  qty,
		}},
		Shipping: ShippingInput{Address: "1 Main St", City: "Springfield", Phone: "555-0100"},
	}
}

func (f *workflowFixture) stock(t *testing.T, product *catalog.ProductDTO) int {
	t.Helper()
	stock, err := catalog.NewRepository(f.gdb).CurrentStock(context.Background(), product.Variants[0].ID)
	require.NoError(t, err)
	return stock
}

func (f *workflowFixture) ledgerSum(t *testing.T, product *catalog.ProductDTO) (int, int64) {
	t.Helper()
	var row struct {
		Total int
		Count int64
	}
	require.NoError(t, f.gdb.Model(&models.StockMovement{}).
		Select("COALESCE(SUM(quantity), 0) AS total, COUNT(*) AS count").
		Where("variant_id = ?", product.Variants[0].ID).
		Scan(&row).Error)
	return row.Total, row.Count
}

func (f *workflowFixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.gdb.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (f *workflowFixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.gdb.Model(model).Count(&n).Error)
	return n
}

func TestCreateOrderDecrementsStockAndRecordsMovement(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)

	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 3))
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.True(t, order.Subtotal.Equal(dec("300")))
	require.True(t, order.DeliveryCost.Equal(dec("50")))
	require.True(t, order.TotalAmount.Equal(dec("350")))
	require.Equal(t, 5, order.DeliveryDays)
	require.Len(t, order.Items, 1)
	require.Equal(t, "TR-42", order.Items[0].SKU)
	require.True(t, order.Items[0].LineTotal.Equal(dec("300")))
	require.Equal(t, 2, f.stock(t, product))

	var movement models.StockMovement
	require.NoError(t, f.gdb.Where("reference_id = ?", order.ID).First(&movement).Error)
	require.Equal(t, enums.MovementOut, movement.MovementType)
	require.Equal(t, -3, movement.Quantity)
	require.Equal(t, 5, movement.PreviousStock)
	require.Equal(t, 2, movement.NewStock)
	require.Equal(t, int64(1), f.events(t, enums.EventOrderCreated))

	stored, err := f.svc.GetOrder(ctx, order.ID, f.customer)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 1)
	require.Equal(t, enums.OrderStatusPending, stored.StatusHistory[0].Status)
}

func TestCreateOrderInsufficientStockLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 2)
	_, seeded := f.ledgerSum(t, product)

	_, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 3))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details := typed.Details().(map[string]any)
	require.Equal(t, "TR-42", details["sku"])
	require.Equal(t, 2, details["available"])
	require.Equal(t, 3, details["requested"])

	require.Equal(t, 2, f.stock(t, product))
	_, movements := f.ledgerSum(t, product)
	require.Equal(t, seeded, movements)
	require.Equal(t, int64(0), f.count(t, &models.Order{}))
	require.Equal(t, int64(0), f.events(t, enums.EventOrderCreated))
}

func TestCreateOrderUnknownOrInactiveProduct(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)

	input := f.orderInput(f.customer, product, 1)
	input.Items[0].ProductID = uuid.New()
	_, err := f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	input = f.orderInput(f.customer, product, 1)
	input.Items[0].ColorName = "Red"
	_, err = f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, f.gdb.Model(&models.Product{}).Where("id = ?", product.ID).Update("status", enums.ProductStatusDraft).Error)
	_, err = f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, 5, f.stock(t, product))
}

func TestLastUnitGoesToExactlyOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 1)
	other := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	_, firstErr := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	_, secondErr := f.svc.CreateOrder(ctx, f.orderInput(other, product, 1))

	require.NoError(t, firstErr)
	require.True(t, pkgerrors.HasCode(secondErr, pkgerrors.CodeInsufficientStock))
	require.Equal(t, 0, f.stock(t, product))
	require.Equal(t, int64(1), f.count(t, &models.Order{}))
}

// drainBeforeDecrement empties the variant inside the placing transaction right
// before the conditional decrement runs, as a concurrent buyer would.
func drainBeforeDecrement(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	fired := false
	require.NoError(t, gdb.Callback().Raw().Before("gorm:raw").Register("test:drain_stock", func(db *gorm.DB) {
		sql := strings.TrimSpace(db.Statement.SQL.String())
		if fired || !strings.HasPrefix(sql, "UPDATE product_variants SET stock_quantity = stock_quantity -") {
			return
		}
		fired = true
		variantID := db.Statement.Vars[1]
		require.NoError(t, db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE product_variants SET stock_quantity = 0 WHERE id = ?", variantID).Error)
	}))
}

func TestCreateOrderLosesRaceAtDecrement(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	_, seeded := f.ledgerSum(t, product)
	drainBeforeDecrement(t, f.gdb)

	_, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 2))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStockUpdateFailed, typed.Code())
	require.Equal(t, "TR-42", typed.Details().(map[string]any)["sku"])

	require.Equal(t, 5, f.stock(t, product))
	_, movements := f.ledgerSum(t, product)
	require.Equal(t, seeded, movements)
	require.Equal(t, int64(0), f.count(t, &models.Order{}))
	require.Equal(t, int64(0), f.count(t, &models.OrderItem{}))
	require.Equal(t, int64(0), f.count(t, &models.Payment{}))
	require.Equal(t, int64(0), f.events(t, enums.EventOrderCreated))
}

func TestCancelOrderRestoresStockOnce(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)

	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 3))
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, product))

	cancelled, err := f.svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Actor: f.customer, Reason: "changed my mind"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, enums.PaymentStatusFailed, cancelled.PaymentStatus)
	require.Equal(t, 5, f.stock(t, product))
	require.Len(t, cancelled.StatusHistory, 2)

	var restoration models.StockMovement
	require.NoError(t, f.gdb.Where("reference_id = ? AND movement_type = ?", order.ID, enums.MovementRestoration).First(&restoration).Error)
	require.Equal(t, 3, restoration.Quantity)
	require.Equal(t, 2, restoration.PreviousStock)
	require.Equal(t, 5, restoration.NewStock)

	again, err := f.svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Actor: f.customer})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, again.Status)
	require.Equal(t, 5, f.stock(t, product))
	require.Equal(t, int64(1), f.events(t, enums.EventOrderCancelled))

	var payment models.Payment
	require.NoError(t, f.gdb.First(&payment, "order_id = ?", order.ID).Error)
	require.Equal(t, enums.PaymentStatusFailed, payment.Status)
}

func TestCancelOrderRules(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)

	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)

	stranger := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err = f.svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Actor: stranger})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	rider := Actor{UserID: uuid.New(), Role: enums.RoleDeliveryPerson}
	_, err = f.svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Actor: rider})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.ShipOrder(ctx, ShipOrderInput{OrderID: order.ID, Actor: f.admin, TrackingNumber: "TRK-1", Carrier: "DHL"})
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, Actor: f.admin})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
	require.Equal(t, 4, f.stock(t, product))
}

func TestStockConservationAcrossWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "40.00", 10)

	first, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 4))
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 3))
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 5))
	require.Error(t, err)
	_, err = f.svc.CancelOrder(ctx, CancelOrderInput{OrderID: first.ID, Actor: f.admin})
	require.NoError(t, err)

	total, _ := f.ledgerSum(t, product)
	require.Equal(t, 7, f.stock(t, product))
	require.Equal(t, f.stock(t, product), total)
}

func TestCreateOrderWithDiscount(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "600.00", 5)
	now := time.Now().UTC()
	_, err := f.discounts.CreateDiscount(ctx, f.admin.UserID, discounts.CreateDiscountInput{
		Code:               "save10",
		Type:               enums.DiscountPercentage,
		Value:              dec("10"),
		MinimumOrderAmount: dec("1000"),
		ValidFrom:          now.Add(-time.Hour),
		ValidUntil:         now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	input := f.orderInput(f.customer, product, 2)
	input.DiscountCode = "SAVE10"
	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, order.Discount)
	require.Equal(t, "SAVE10", order.Discount.Code)
	require.True(t, order.DiscountAmount.Equal(dec("120")))
	require.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.DeliveryCost).Sub(order.DiscountAmount)))
	require.True(t, order.TotalAmount.Equal(dec("1130")))

	var discount models.Discount
	require.NoError(t, f.gdb.First(&discount, "code = ?", "SAVE10").Error)
	require.Equal(t, 1, discount.UsedCount)
	require.Equal(t, int64(1), f.count(t, &models.DiscountUsage{}))

	again := f.orderInput(f.customer, product, 2)
	again.DiscountCode = "save10"
	_, err = f.svc.CreateOrder(ctx, again)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidDiscount))
	require.Equal(t, 3, f.stock(t, product))
}

func TestInvalidDiscountRollsBackOrder(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)

	input := f.orderInput(f.customer, product, 1)
	input.DiscountCode = "NOPE"
	_, err := f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidDiscount))
	require.Equal(t, 5, f.stock(t, product))
	require.Equal(t, int64(0), f.count(t, &models.Order{}))
	require.Equal(t, int64(0), f.count(t, &models.Payment{}))
}

func TestCODOrderLinksPayment(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)

	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)
	require.Equal(t, enums.PaymentMethodCOD, order.PaymentMethod)
	require.NotNil(t, order.PaymentID)

	var payment models.Payment
	require.NoError(t, f.gdb.First(&payment, "id = ?", *order.PaymentID).Error)
	require.Equal(t, order.ID, payment.OrderID)
	require.True(t, payment.ExpectedAmount.Equal(order.TotalAmount))
	require.True(t, payment.CollectedAmount.IsZero())

	prepaid := f.orderInput(f.customer, product, 1)
	prepaid.PaymentMethod = enums.PaymentMethodPrepaid
	prepaid.Shipping.Method = enums.ShippingExpress
	out, err := f.svc.CreateOrder(ctx, prepaid)
	require.NoError(t, err)
	require.Nil(t, out.PaymentID)
	require.True(t, out.DeliveryCost.Equal(dec("120")))
	require.Equal(t, int64(1), f.count(t, &models.Payment{}))
}

func TestUpdateStatusFollowsStateMachine(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.customer})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	confirmed, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusDelivered, Actor: f.admin})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusShipped, Actor: f.admin})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	forced, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusDelivered, Actor: f.admin, Force: true, Notes: "delivered by hand"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, forced.Status)
	require.Len(t, forced.StatusHistory, 3)
	require.Equal(t, int64(2), f.events(t, enums.EventOrderStatusChanged))
}

func TestForcedCancelRestoresStockAndTerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 2))
	require.NoError(t, err)

	_, err = f.svc.ShipOrder(ctx, ShipOrderInput{OrderID: order.ID, Actor: f.admin, TrackingNumber: "TRK-9"})
	require.NoError(t, err)
	cancelled, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: f.admin, Force: true})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, 5, f.stock(t, product))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin, Force: true})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
}

func TestShipOrderStoresTracking(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)

	shipped, err := f.svc.ShipOrder(ctx, ShipOrderInput{OrderID: order.ID, Actor: f.admin, TrackingNumber: " TRK-1 ", Carrier: "DHL"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, shipped.Status)
	require.NotNil(t, shipped.TrackingNumber)
	require.Equal(t, "TRK-1", *shipped.TrackingNumber)
	require.Equal(t, "DHL", *shipped.Carrier)
}

func TestTransitionInsideCallerTransaction(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)
	rider := uuid.New()

	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Transition(ctx, tx, TransitionInput{
			OrderID: order.ID,
			To:      enums.OrderStatusAssigned,
			Actor:   f.admin,
			Updates: map[string]any{"delivery_person_id": rider},
		})
		return err
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin})
	require.NoError(t, err)
	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := f.svc.Transition(ctx, tx, TransitionInput{
			OrderID: order.ID,
			To:      enums.OrderStatusAssigned,
			Actor:   f.admin,
			Updates: map[string]any{"delivery_person_id": rider},
		})
		if err != nil {
			return err
		}
		require.Equal(t, rider, *moved.DeliveryPersonID)
		return nil
	})
	require.NoError(t, err)

	viewer := Actor{UserID: rider, Role: enums.RoleDeliveryPerson}
	got, err := f.svc.GetOrder(ctx, order.ID, viewer)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusAssigned, got.Status)

	_, err = f.svc.GetOrder(ctx, order.ID, Actor{UserID: uuid.New(), Role: enums.RoleDeliveryPerson})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestTransitionReportsOnlyCommittedChanges(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin})
	require.NoError(t, err)

	var buf bytes.Buffer
	f.svc.logg = logger.New(logger.Options{ServiceName: "orders-test", Output: &buf})
	assign := func(tx *gorm.DB) error {
		_, err := f.svc.Transition(ctx, tx, TransitionInput{
			OrderID: order.ID,
			To:      enums.OrderStatusAssigned,
			Actor:   f.admin,
			Updates: map[string]any{"delivery_person_id": uuid.New()},
		})
		return err
	}

	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := assign(tx); err != nil {
			return err
		}
		return errors.New("assignment conflict")
	})
	require.EqualError(t, err, "assignment conflict")
	require.NotContains(t, buf.String(), "order.status_changed")
	got, err := f.svc.GetOrder(ctx, order.ID, f.admin)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, got.Status)

	require.NoError(t, f.client.WithTx(ctx, assign))
	require.Equal(t, 1, strings.Count(buf.String(), "order.status_changed"))
}

func (f *workflowFixture) assignRider(t *testing.T, orderID uuid.UUID) uuid.UUID {
	t.Helper()
	rider := uuid.New()
	require.NoError(t, f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if _, err := f.svc.Transition(context.Background(), tx, TransitionInput{
			OrderID: orderID,
			To:      enums.OrderStatusAssigned,
			Actor:   f.admin,
			Updates: map[string]any{"delivery_person_id": rider},
		}); err != nil {
			return err
		}
		return tx.Create(&models.DeliveryAssignment{
			OrderID:          orderID,
			DeliveryPersonID: rider,
			AssignedBy:       f.admin.UserID,
			Status:           enums.AssignmentAssigned,
			Active:           true,
			AssignedAt:       time.Now().UTC(),
		}).Error
	}))
	return rider
}

func (f *workflowFixture) activeAssignments(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.gdb.Model(&models.DeliveryAssignment{}).Where("order_id = ? AND active = ?", orderID, true).Count(&n).Error)
	return n
}

func TestForcedCancelReleasesDeliveryAssignment(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 2))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin})
	require.NoError(t, err)
	f.assignRider(t, order.ID)
	require.Equal(t, int64(1), f.activeAssignments(t, order.ID))

	cancelled, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: f.admin, Force: true})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, 5, f.stock(t, product))
	require.Zero(t, f.activeAssignments(t, order.ID))
}

func TestForcedDeliveryReleasesAssignment(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin})
	require.NoError(t, err)
	f.assignRider(t, order.ID)

	delivered, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusDelivered, Actor: f.admin, Force: true})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.Zero(t, f.activeAssignments(t, order.ID))
}

func TestUpdateStatusRefusesDeliverySteps(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "100.00", 5)
	order, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusConfirmed, Actor: f.admin})
	require.NoError(t, err)

	for _, status := range []enums.OrderStatus{enums.OrderStatusAssigned, enums.OrderStatusOutForDelivery} {
		_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: status, Actor: f.admin, Force: true})
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), status)
	}
	got, err := f.svc.GetOrder(ctx, order.ID, f.admin)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, got.Status)
	require.Zero(t, f.activeAssignments(t, order.ID))
}

func TestListOrdersPaginates(t *testing.T) {
	ctx := context.Background()
	f := newWorkflowFixture(t)
	product := f.seedProduct(t, "tr-42", "10.00", 50)
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateOrder(ctx, f.orderInput(f.customer, product, 1))
		require.NoError(t, err)
	}
	other := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err := f.svc.CreateOrder(ctx, f.orderInput(other, product, 1))
	require.NoError(t, err)

	page, err := f.svc.ListOrders(ctx, ListOrdersInput{CustomerID: f.customer.UserID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.Cursor)

	next, err := f.svc.ListOrders(ctx, ListOrdersInput{CustomerID: f.customer.UserID, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	require.Empty(t, next.Cursor)

	_, err = f.svc.ListOrders(ctx, ListOrdersInput{CustomerID: f.customer.UserID, Cursor: "garbage"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
