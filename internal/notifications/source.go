package notifications

import (
	"context"
	"errors"

	gpubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/shopflow-backend/pkg/kafka"
)

// Delivery is one broker message stripped down to what the consumer reads.
type Delivery struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Source feeds deliveries to handle until ctx ends. handle reports whether the
// delivery is settled; false asks the broker to redeliver it.
type Source interface {
	Receive(ctx context.Context, handle func(context.Context, Delivery) bool) error
	Ping(ctx context.Context) error
}

type pubsubSource struct {
	sub  *gpubsub.Subscriber
	ping func(context.Context) error
}

// PubSubSource reads from a Pub/Sub subscription. ping checks the broker.
func PubSubSource(sub *gpubsub.Subscriber, ping func(context.Context) error) (Source, error) {
	if sub == nil {
		return nil, errors.New("notification subscription required")
	}
	return &pubsubSource{sub: sub, ping: ping}, nil
}

func (s *pubsubSource) Receive(ctx context.Context, handle func(context.Context, Delivery) bool) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *gpubsub.Message) {
		if handle(ctx, Delivery{ID: msg.ID, Data: msg.Data, Attributes: msg.Attributes}) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (s *pubsubSource) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

type kafkaSource struct {
	group *kafka.ConsumerGroup
}

// KafkaSource reads from a Kafka consumer group. Record headers become attributes.
func KafkaSource(group *kafka.ConsumerGroup) (Source, error) {
	if group == nil {
		return nil, errors.New("kafka consumer group required")
	}
	return &kafkaSource{group: group}, nil
}

func (s *kafkaSource) Receive(ctx context.Context, handle func(context.Context, Delivery) bool) error {
	return s.group.Receive(ctx, func(ctx context.Context, msg kafka.Message) bool {
		return handle(ctx, Delivery{ID: msg.ID(), Data: msg.Value, Attributes: msg.Headers})
	})
}

func (s *kafkaSource) Ping(ctx context.Context) error {
	return s.group.Ping(ctx)
}
