package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/pkg/email"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/registry"
)

const orderEmailConsumer = "order-emails"

type processedTracker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ConsumerParams wires the order e-mail consumer.
type ConsumerParams struct {
	Sender      email.Sender
	Source      Source
	Idempotency *idempotency.Manager
	Renderer    *Renderer
	Retry       RetryPolicy
	Logger      *logger.Logger
}

// Consumer turns order events into customer e-mails.
type Consumer struct {
	sender    email.Sender
	source    Source
	processed processedTracker
	renderer  *Renderer
	decoders  *registry.DecoderRegistry
	retry     RetryPolicy
	logg      *logger.Logger
	sleep     func(context.Context, time.Duration) error
}

// NewConsumer builds the e-mail consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("notification source required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return newConsumer(params.Sender, params.Source, params.Idempotency, params.Renderer, params.Retry, params.Logger), nil
}

func newConsumer(sender email.Sender, source Source, processed processedTracker, renderer *Renderer, retry RetryPolicy, logg *logger.Logger) *Consumer {
	if renderer == nil {
		renderer = NewRenderer("")
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Consumer{
		sender:    sender,
		source:    source,
		processed: processed,
		renderer:  renderer,
		decoders:  orderDecoders(),
		retry:     retry,
		logg:      logg,
		sleep:     sleepCtx,
	}
}

func orderDecoders() *registry.DecoderRegistry {
	r := registry.NewDecoderRegistry()
	registry.RegisterJSON[payloads.OrderCreatedEvent](r, enums.EventOrderCreated, 1)
	registry.RegisterJSON[payloads.OrderStatusChangedEvent](r, enums.EventOrderStatusChanged, 1)
	registry.RegisterJSON[payloads.OrderCancelledEvent](r, enums.EventOrderCancelled, 1)
	return r
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.source.Receive(ctx, func(ctx context.Context, d Delivery) bool {
		return !c.process(ctx, d).nack
	})
}

// Ping checks the broker behind the source.
func (c *Consumer) Ping(ctx context.Context) error {
	return c.source.Ping(ctx)
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg Delivery) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !c.decoders.Handles(eventType) {
		c.logg.Debug(logCtx, "notification.skipped_event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, _ := envelope.ID()
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	message, send, err := c.compose(decoded)
	if err != nil {
		c.logg.Error(logCtx, "failed to render email", err)
		return processResult{ack: true}
	}
	if !send {
		c.logg.Debug(logCtx, "notification.skipped_status")
		return processResult{ack: true}
	}
	if strings.TrimSpace(message.To) == "" {
		c.logg.Warn(logCtx, "notification.missing_recipient")
		return processResult{ack: true}
	}

	claimed, err := c.processed.Claim(ctx, orderEmailConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	result, err := c.sendWithRetry(logCtx, message)
	if err != nil && !retryable(err) {
		c.logg.Error(logCtx, "notification.dropped", err)
		return processResult{ack: true}
	}
	if err != nil {
		c.logg.Error(logCtx, "notification.send_failed", err)
		if delErr := c.processed.Release(ctx, orderEmailConsumer, eventID); delErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency marker", delErr)
		}
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"category":            message.Category,
		"provider_message_id": result.MessageID,
	}), "notification.sent")
	return processResult{ack: true}
}

func (c *Consumer) compose(decoded interface{}) (email.Message, bool, error) {
	switch evt := decoded.(type) {
	case payloads.OrderCreatedEvent:
		msg, err := c.renderer.OrderCreated(evt)
		return msg, true, err
	case payloads.OrderStatusChangedEvent:
		return c.renderer.StatusChanged(evt)
	case payloads.OrderCancelledEvent:
		msg, err := c.renderer.OrderCancelled(evt)
		return msg, true, err
	default:
		return email.Message{}, false, fmt.Errorf("unexpected payload %T", decoded)
	}
}

func (c *Consumer) sendWithRetry(ctx context.Context, msg email.Message) (email.Result, error) {
	delays := c.retry.delays()
	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		result, err := c.sender.Send(ctx, msg)
		if err == nil {
			if attempt > 0 {
				c.logg.Info(c.logg.WithField(ctx, "attempt", attempt+1), "notification.sent_after_retry")
			}
			return result, nil
		}
		lastErr = err
		if !retryable(err) || attempt == len(delays) {
			break
		}
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"attempt": attempt + 1,
			"delay":   delays[attempt].String(),
			"error":   err.Error(),
		}), "notification.send_retry")
		if err := c.sleep(ctx, delays[attempt]); err != nil {
			return email.Result{}, err
		}
	}
	return email.Result{}, lastErr
}
