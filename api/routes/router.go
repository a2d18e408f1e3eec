package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/api/controllers"
	catalogcontrollers "github.com/angelmondragon/shopflow-backend/api/controllers/catalog"
	deliverycontrollers "github.com/angelmondragon/shopflow-backend/api/controllers/delivery"
	discountcontrollers "github.com/angelmondragon/shopflow-backend/api/controllers/discounts"
	inventorycontrollers "github.com/angelmondragon/shopflow-backend/api/controllers/inventory"
	ordercontrollers "github.com/angelmondragon/shopflow-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/shopflow-backend/api/controllers/payments"
	"github.com/angelmondragon/shopflow-backend/api/middleware"
	"github.com/angelmondragon/shopflow-backend/internal/catalog"
	"github.com/angelmondragon/shopflow-backend/internal/delivery"
	"github.com/angelmondragon/shopflow-backend/internal/discounts"
	"github.com/angelmondragon/shopflow-backend/internal/inventory"
	"github.com/angelmondragon/shopflow-backend/internal/orders"
	"github.com/angelmondragon/shopflow-backend/internal/payments"
	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
)

// RedisStore is what the HTTP layer needs from redis.
type RedisStore interface {
	middleware.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// DeliveryService drives assignment and the delivery run.
type DeliveryService interface {
	Assign(ctx context.Context, input delivery.AssignInput) (*delivery.AssignmentDTO, error)
	MarkOutForDelivery(ctx context.Context, input delivery.ProgressInput) (*delivery.AssignmentDTO, error)
	MarkDelivered(ctx context.Context, input delivery.ProgressInput) (*delivery.AssignmentDTO, error)
	ListAssignments(ctx context.Context, deliveryPersonID uuid.UUID, activeOnly bool) ([]delivery.AssignmentDTO, error)
}

// Params carries everything the router wires. Nil services leave their routes
// registered but unusable, which is only expected in tests.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       RedisStore
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTP
	Catalog     catalog.Service
	Discounts   *discounts.Service
	Inventory   *inventory.Service
	Orders      orders.Service
	Delivery    DeliveryService
	Payments    *payments.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	var store middleware.IdempotencyStore
	if p.Redis != nil {
		store = p.Redis
	}
	idempotent := middleware.Idempotent(store, middleware.IdempotencyTTLStandard, logg)
	moneyIdempotent := middleware.Idempotent(store, middleware.IdempotencyTTLMoney, logg)
	createLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "orders.create",
		Limit:  int64(cfg.Orders.CreateRateLimit),
		Window: cfg.Orders.CreateRateWindow,
	}, p.Redis, logg)

	admin := middleware.RequireRole(logg, enums.RoleAdmin)
	customer := middleware.RequireRole(logg, enums.RoleCustomer)
	rider := middleware.RequireRole(logg, enums.RoleDeliveryPerson)
	canCancel := middleware.RequireRole(logg, enums.RoleCustomer, enums.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/v1/products/{productId}", catalogcontrollers.GetProduct(p.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(admin, idempotent).Post("/v1/products", catalogcontrollers.CreateProduct(p.Catalog, logg))
			r.With(admin).Patch("/v1/products/{productId}", catalogcontrollers.UpdateProduct(p.Catalog, logg))

			r.With(admin, idempotent).Post("/v1/discounts", discountcontrollers.Create(p.Discounts, logg))
			r.Post("/v1/discounts/validate", discountcontrollers.Validate(p.Discounts, logg))

			r.With(admin, idempotent).Post("/v1/inventory/movements", inventorycontrollers.RecordMovement(p.Inventory, logg))
			r.With(admin, idempotent).Post("/v1/inventory/transfers", inventorycontrollers.Transfer(p.Inventory, logg))
			r.With(admin).Get("/v1/inventory/{productId}/{variantId}", inventorycontrollers.Get(p.Inventory, logg))
			r.With(admin).Get("/v1/inventory/{productId}/{variantId}/movements", inventorycontrollers.ListMovements(p.Inventory, logg))

			r.With(customer, createLimit, moneyIdempotent).Post("/orders", ordercontrollers.Create(p.Orders, logg))
			r.With(customer).Get("/orders", ordercontrollers.List(p.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Get(p.Orders, logg))
			r.With(canCancel, moneyIdempotent).Put("/orders/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.With(admin).Put("/orders/{orderId}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
			r.With(admin).Put("/orders/{orderId}/ship", ordercontrollers.Ship(p.Orders, logg))
			r.With(admin, idempotent).Put("/orders/{orderId}/assign", ordercontrollers.Assign(p.Delivery, logg))

			r.Get("/payments/{paymentId}", paymentcontrollers.Get(p.Payments, logg))

			r.Group(func(r chi.Router) {
				r.Use(rider)
				r.Get("/delivery/assignments", deliverycontrollers.Assignments(p.Delivery, logg))
				r.Put("/delivery/orders/{orderId}/out-for-delivery", deliverycontrollers.OutForDelivery(p.Delivery, logg))
				r.Put("/delivery/orders/{orderId}/delivered", deliverycontrollers.Delivered(p.Delivery, logg))
				r.With(moneyIdempotent).Post("/delivery/payments/{paymentId}/collect", paymentcontrollers.Collect(p.Payments, logg))
				r.With(idempotent).Post("/delivery/payments/{paymentId}/issues", paymentcontrollers.ReportIssue(p.Payments, logg))
			})
		})
	})

	return r
}
