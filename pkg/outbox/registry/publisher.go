package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/db/models"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: which aggregate may emit it and which
// topic carries it.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation, with its typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row the publisher must dead letter instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry validates outbox rows before they are published. Payload
// schemas live in a DecoderRegistry shared with the consumers.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NewEventRegistry routes order, payment and inventory events to their topics.
// Topic names double as Kafka topics when that broker is selected.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []error
	for name, topic := range map[string]string{
		"orders":    cfg.OrdersTopic,
		"payments":  cfg.PaymentsTopic,
		"inventory": cfg.InventoryTopic,
	} {
		if topic == "" {
			missing = append(missing, fmt.Errorf("%s topic is required", name))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	r := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]EventDescriptor),
		decoders: NewDecoderRegistry(),
	}
	route[payloads.OrderCreatedEvent](r, enums.EventOrderCreated, enums.AggregateOrder, cfg.OrdersTopic)
	route[payloads.OrderStatusChangedEvent](r, enums.EventOrderStatusChanged, enums.AggregateOrder, cfg.OrdersTopic)
	route[payloads.OrderCancelledEvent](r, enums.EventOrderCancelled, enums.AggregateOrder, cfg.OrdersTopic)
	route[payloads.CashCollectedEvent](r, enums.EventCashCollected, enums.AggregatePayment, cfg.PaymentsTopic)
	route[payloads.PaymentCollectionFailedEvent](r, enums.EventPaymentCollectionFailed, enums.AggregatePayment, cfg.PaymentsTopic)
	route[payloads.StockLowEvent](r, enums.EventStockLow, enums.AggregateInventory, cfg.InventoryTopic)
	return r, nil
}

func route[T any](r *EventRegistry, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	r.routes[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic}
	RegisterJSON[T](r.decoders, eventType, 1)
}

// Topics lists each distinct destination topic, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, len(r.routes))
	for _, d := range r.routes {
		set[d.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks routing, aggregate identity, envelope and payload schema.
// Every failure is non-retryable: republishing the same row cannot fix it.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("%s: missing aggregate_id", event.EventType)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryable("%s: %w", event.EventType, err)
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
