package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

const defaultRedeliveryBackoff = 5 * time.Second

// Message is one record handed to a consumer callback.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       string
	Value     []byte
	Headers   map[string]string
}

// ID is stable across redeliveries of the same record.
func (m Message) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
}

// HandleFunc returns true once the record is done with (handled or dropped).
// False asks for redelivery.
type HandleFunc func(ctx context.Context, msg Message) bool

// ConsumerGroup reads topics as a member of a sarama consumer group.
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	brokers []string
	topics  []string
	backoff time.Duration
	logg    *logger.Logger
}

// NewConsumerGroup joins groupID for topics. Offsets start at the oldest record
// the first time the group is seen so no event emitted before deploy is lost.
func NewConsumerGroup(cfg config.KafkaConfig, groupID string, topics []string, logg *logger.Logger) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, errors.New("kafka consumer group id is required")
	}
	if len(topics) == 0 {
		return nil, errors.New("kafka consumer needs at least one topic")
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, newConsumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("joining consumer group %s: %w", groupID, err)
	}
	backoff := cfg.RedeliveryBackoff
	if backoff <= 0 {
		backoff = defaultRedeliveryBackoff
	}
	return &ConsumerGroup{group: group, brokers: cfg.Brokers, topics: topics, backoff: backoff, logg: logg}, nil
}

func newConsumerConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = time.Second
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	sc.Consumer.Return.Errors = true
	return sc
}

// Receive blocks consuming until ctx ends. Rebalances re-enter Consume.
func (c *ConsumerGroup) Receive(ctx context.Context, handle HandleFunc) error {
	if c == nil || c.group == nil {
		return errors.New("kafka consumer group not initialized")
	}
	go c.drainErrors(ctx)
	h := &groupHandler{handle: handle, backoff: c.backoff, logg: c.logg}
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume %v: %w", c.topics, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *ConsumerGroup) drainErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			if c.logg != nil {
				c.logg.Error(ctx, "kafka.consumer_error", err)
			}
		}
	}
}

// Ping checks that broker metadata is reachable.
func (c *ConsumerGroup) Ping(context.Context) error {
	client, err := sarama.NewClient(c.brokers, sarama.NewConfig())
	if err != nil {
		return fmt.Errorf("kafka ping: %w", err)
	}
	return client.Close()
}

func (c *ConsumerGroup) Close() error {
	if c == nil || c.group == nil {
		return nil
	}
	return c.group.Close()
}

// groupHandler processes one partition claim at a time. A record the callback
// refuses is retried in place after backoff, which keeps per-partition order.
type groupHandler struct {
	handle  HandleFunc
	backoff time.Duration
	logg    *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case record, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			msg := fromRecord(record)
			for !h.handle(ctx, msg) {
				if h.logg != nil {
					h.logg.Warn(h.logg.WithField(ctx, "record", msg.ID()), "kafka.redelivery_scheduled")
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(h.backoff):
				}
			}
			session.MarkMessage(record, "")
		}
	}
}

func fromRecord(record *sarama.ConsumerMessage) Message {
	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		if h != nil {
			headers[string(h.Key)] = string(h.Value)
		}
	}
	return Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       string(record.Key),
		Value:     record.Value,
		Headers:   headers,
	}
}
