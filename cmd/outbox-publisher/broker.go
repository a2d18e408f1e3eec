package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/shopflow-backend/pkg/kafka"
	"github.com/angelmondragon/shopflow-backend/pkg/pubsub"
)

// brokerMessage is a broker-neutral outbox delivery.
type brokerMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

// broker delivers one message and blocks until the broker acknowledged it.
type broker interface {
	Name() string
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, msg brokerMessage) error
	Close() error
}

// errTopicNotConfigured is never retried.
var errTopicNotConfigured = errors.New("publisher not configured for topic")

type pubsubBroker struct {
	client *pubsub.Client

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubBroker(client *pubsub.Client) *pubsubBroker {
	return &pubsubBroker{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (b *pubsubBroker) Name() string { return "pubsub" }

func (b *pubsubBroker) Ping(ctx context.Context) error { return b.client.Ping(ctx) }

func (b *pubsubBroker) publisher(topic string) *gcppubsub.Publisher {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.publishers[topic]; ok {
		return p
	}
	p := b.client.Publisher(topic)
	if p != nil {
		b.publishers[topic] = p
	}
	return p
}

func (b *pubsubBroker) Publish(ctx context.Context, topic string, msg brokerMessage) error {
	pub := b.publisher(topic)
	if pub == nil {
		return fmt.Errorf("%w %s", errTopicNotConfigured, topic)
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	_, err := result.Get(ctx)
	return err
}

func (b *pubsubBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, p := range b.publishers {
		p.Stop()
		delete(b.publishers, topic)
	}
	return b.client.Close()
}

type kafkaBroker struct {
	producer *kafka.Producer
}

func (b *kafkaBroker) Name() string { return "kafka" }

func (b *kafkaBroker) Ping(ctx context.Context) error { return b.producer.Ping(ctx) }

// Publish keys by aggregate id so one order's events land on one partition.
func (b *kafkaBroker) Publish(ctx context.Context, topic string, msg brokerMessage) error {
	if topic == "" {
		return fmt.Errorf("%w %q", errTopicNotConfigured, topic)
	}
	return b.producer.Publish(ctx, topic, msg.Key, msg.Data, msg.Attributes)
}

func (b *kafkaBroker) Close() error { return b.producer.Close() }
