package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopflow-backend/api/routes"
	"github.com/angelmondragon/shopflow-backend/internal/catalog"
	"github.com/angelmondragon/shopflow-backend/internal/delivery"
	"github.com/angelmondragon/shopflow-backend/internal/discounts"
	"github.com/angelmondragon/shopflow-backend/internal/inventory"
	"github.com/angelmondragon/shopflow-backend/internal/orders"
	"github.com/angelmondragon/shopflow-backend/internal/payments"
	"github.com/angelmondragon/shopflow-backend/internal/users"
	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/db"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
	"github.com/angelmondragon/shopflow-backend/pkg/migrate"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	params, err := buildRouterParams(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func buildRouterParams(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Params, error) {
	gdb := dbClient.DB()
	workflowMetrics := metrics.NewWorkflow(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)
	catalogRepo := catalog.NewRepository(gdb)

	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		DB:                dbClient,
		Repo:              inventory.NewRepository(gdb),
		Catalog:           catalogRepo,
		Outbox:            outboxService,
		Logger:            logg,
		Metrics:           workflowMetrics,
		LowStockThreshold: cfg.Inventory.DefaultLowStockThreshold,
	})
	if err != nil {
		return routes.Params{}, err
	}

	catalogService, err := catalog.NewService(dbClient, catalogRepo, inventoryService, logg)
	if err != nil {
		return routes.Params{}, err
	}

	discountService, err := discounts.NewService(discounts.NewRepository(gdb), logg)
	if err != nil {
		return routes.Params{}, err
	}

	paymentService, err := payments.NewService(dbClient, payments.NewRepository(gdb), outboxService, logg, workflowMetrics)
	if err != nil {
		return routes.Params{}, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		DB:        dbClient,
		Repo:      orders.NewRepository(gdb),
		Catalog:   catalogRepo,
		Ledger:    inventoryService,
		Discounts: discountService,
		Payments:  paymentService,
		Outbox:    outboxService,
		Delivery:  orders.DeliveryPolicyFromConfig(cfg.Orders),
		Logger:    logg,
		Metrics:   workflowMetrics,
	})
	if err != nil {
		return routes.Params{}, err
	}

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		DB:       dbClient,
		Repo:     delivery.NewRepository(gdb),
		Users:    users.NewRepository(gdb),
		Orders:   orderService,
		Payments: paymentService,
		Logger:   logg,
	})
	if err != nil {
		return routes.Params{}, err
	}

	return routes.Params{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Metrics:     promhttp.Handler(),
		HTTPMetrics: metrics.NewHTTP(prometheus.DefaultRegisterer),
		Catalog:     catalogService,
		Discounts:   discountService,
		Inventory:   inventoryService,
		Orders:      orderService,
		Delivery:    deliveryService,
		Payments:    paymentService,
	}, nil
}
