package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopflow-backend/internal/notifications"
	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/email"
	"github.com/angelmondragon/shopflow-backend/pkg/kafka"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopflow-backend/pkg/pubsub"
	"github.com/angelmondragon/shopflow-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	source, closeSource := newSource(ctx, cfg, logg)
	defer closeSource()

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Sender:      newSender(ctx, cfg, logg),
		Source:      source,
		Idempotency: manager,
		Renderer:    notifications.NewRenderer(cfg.Notifications.StorefrontURL),
		Retry:       notifications.RetryPolicyFromConfig(cfg.Notifications),
		Logger:      logg,
	})
	requireResource(ctx, logg, "notification consumer", err)

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Redis:    redisClient,
		Consumer: consumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"broker":      cfg.Eventing.Broker,
	})
	logg.Info(runCtx, "worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker failed", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}

// newSource subscribes to order events on the configured broker. Kafka shares
// the Pub/Sub topic names so the outbox publisher routes identically.
func newSource(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notifications.Source, func()) {
	if strings.EqualFold(cfg.Eventing.Broker, config.BrokerKafka) {
		group, err := kafka.NewConsumerGroup(cfg.Kafka, cfg.Kafka.NotificationGroup, []string{cfg.PubSub.OrdersTopic}, logg)
		requireResource(ctx, logg, "kafka consumer group", err)
		source, err := notifications.KafkaSource(group)
		requireResource(ctx, logg, "kafka source", err)
		return source, func() {
			if err := group.Close(); err != nil {
				logg.Error(ctx, "failed to close kafka consumer group", err)
			}
		}
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.WorkerResources(cfg.PubSub), logg)
	requireResource(ctx, logg, "pubsub", err)
	source, err := notifications.PubSubSource(client.NotificationSubscription(), client.Ping)
	requireResource(ctx, logg, "notification subscription", err)
	return source, func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}
}

// newSender picks SendGrid when a key is configured and the log sender otherwise.
func newSender(ctx context.Context, cfg *config.Config, logg *logger.Logger) email.Sender {
	if cfg.Sendgrid.APIKey == "" {
		logg.Warn(ctx, "sendgrid api key missing, e-mails will only be logged")
		return email.NewLogSender(logg)
	}
	client, err := email.NewSendgridClient(cfg.Sendgrid)
	requireResource(ctx, logg, "sendgrid", err)
	return client
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
