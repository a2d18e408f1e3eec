package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/metrics"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10

	// maxBackoff caps the idle sleep after failed batches.
	maxBackoff = 10 * time.Second
	// retryBase and maxRetryDelay bound the per-row next_attempt_at schedule.
	retryBase     = 2 * time.Second
	maxRetryDelay = 10 * time.Minute
	jitterWindow  = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAfter time.Duration) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(ctx context.Context) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Broker        broker
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.Outbox
}

// Service drains the transactional outbox into the configured broker. Each
// claimed row ends the batch published, rescheduled or dead lettered.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	repo     outboxRepository
	broker   broker
	registry registryResolver
	dlq      dlqRepository
	metrics  *metrics.Outbox

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	jitter       func(time.Duration) time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("broker is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	poll := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		broker:       params.Broker,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: poll,
		jitter: func(d time.Duration) time.Duration {
			if d <= 0 {
				return 0
			}
			return d + time.Duration(rng.Int63n(int64(jitterWindow)))
		},
		now: time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is done. Empty polls sleep one interval; failed batches
// back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{{"database", s.db.Ping}, {s.broker.Name(), s.broker.Ping}}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.pollInterval
	for ctx.Err() == nil {
		claimed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
		case claimed:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
			s.reportPending(ctx)
		}
		if err := sleepCtx(ctx, s.jitter(wait)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

func (s *Service) reportPending(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	pending, err := s.repo.CountPending(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox.pending_count_failed")
		return
	}
	s.metrics.SetPending(pending)
}

// processBatch claims due rows under SKIP LOCKED and settles them in the same
// transaction. It reports whether anything was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events) > 0
		for i := range events {
			if err := s.apply(ctx, tx, s.deliver(ctx, events[i])); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// delivery is the outcome of one publish attempt.
type delivery struct {
	event   models.OutboxEvent
	fields  map[string]any
	err     error
	reason  enums.OutboxDLQErrorReason
	retryIn time.Duration
}

func (d delivery) published() bool { return d.err == nil }

func (d delivery) deadLettered() bool { return d.reason != "" }

func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	d := delivery{event: event, fields: s.logFields(event, nil)}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		d.err, d.reason = err, enums.OutboxDLQReasonUnknownEvent
		return d
	}
	d.fields = s.logFields(event, resolved)

	d.err = s.publish(ctx, event, resolved)
	var nonRetryable registry.NonRetryableError
	switch attempt := event.AttemptCount + 1; {
	case d.err == nil:
	case errors.As(d.err, &nonRetryable), errors.Is(d.err, errTopicNotConfigured):
		d.reason = enums.OutboxDLQReasonNonRetryable
	case attempt >= s.maxAttempts:
		d.fields["attempt_count"] = attempt
		d.err = fmt.Errorf("max publish attempts reached: %w", d.err)
		d.reason = enums.OutboxDLQReasonMaxAttempts
	default:
		d.fields["attempt_count"] = attempt
		d.retryIn = s.jitter(retryDelay(attempt))
	}
	return d
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, d delivery) error {
	id := d.event.ID
	eventType := string(d.event.EventType)
	switch {
	case d.published():
		if err := s.repo.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
		s.metrics.Published(eventType)
		s.logg.Info(s.logg.WithFields(ctx, d.fields), "outbox.published")
		return nil

	case d.deadLettered():
		d.fields["error_reason"] = d.reason
		d.fields["error"] = d.err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, d.fields), "outbox.dead_lettered")
		msg := d.err.Error()
		if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       id,
			EventType:     d.event.EventType,
			AggregateType: d.event.AggregateType,
			AggregateID:   d.event.AggregateID,
			Payload:       d.event.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &msg,
			AttemptCount:  d.event.AttemptCount,
			FailedAt:      s.now().UTC(),
		}); err != nil {
			return fmt.Errorf("insert dlq %s: %w", id, err)
		}
		if err := s.repo.MarkTerminalTx(tx, id, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", id, err)
		}
		s.metrics.DeadLettered(string(d.reason))
		return nil

	default:
		d.fields["retry_after_ms"] = d.retryIn.Milliseconds()
		d.fields["error"] = d.err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, d.fields), "outbox.publish_retry")
		s.metrics.Failed(eventType)
		if err := s.repo.MarkFailedTx(tx, id, d.err, d.retryIn); err != nil {
			return fmt.Errorf("mark failure %s: %w", id, err)
		}
		return nil
	}
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	aggregateID := event.AggregateID.String()
	return s.broker.Publish(ctx, resolved.Descriptor.Topic, brokerMessage{
		Key:  aggregateID,
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   aggregateID,
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

func (s *Service) logFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"broker":         s.broker.Name(),
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		if env := resolved.Envelope; env.EventID != "" {
			fields["event_id"] = env.EventID
			fields["occurred_at"] = env.OccurredAt.Format(time.RFC3339Nano)
		}
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDelay is retryBase doubled per prior attempt, capped at maxRetryDelay.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 20 {
		return maxRetryDelay
	}
	d := retryBase << (attempt - 1)
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < limit {
		return next
	}
	return limit
}
