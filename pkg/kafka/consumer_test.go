package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimOf(records ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func record(offset int64, eventType string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "shopflow-order-events",
		Partition: 2,
		Offset:    offset,
		Key:       []byte("order-1"),
		Value:     []byte(`{"version":1}`),
		Headers:   []*sarama.RecordHeader{{Key: []byte("event_type"), Value: []byte(eventType)}},
	}
}

func TestConsumeClaimMarksHandledRecords(t *testing.T) {
	session := &fakeSession{ctx: context.Background()}
	var seen []Message
	h := &groupHandler{handle: func(_ context.Context, msg Message) bool {
		seen = append(seen, msg)
		return true
	}, backoff: time.Millisecond}

	require.NoError(t, h.ConsumeClaim(session, claimOf(record(10, "order_created"), record(11, "order_cancelled"))))

	assert.Equal(t, []int64{10, 11}, session.marked)
	require.Len(t, seen, 2)
	assert.Equal(t, "order_created", seen[0].Headers["event_type"])
	assert.Equal(t, "order-1", seen[0].Key)
	assert.Equal(t, "shopflow-order-events/2/10", seen[0].ID())
}

func TestConsumeClaimRedeliversRefusedRecordInPlace(t *testing.T) {
	session := &fakeSession{ctx: context.Background()}
	var offsets []int64
	h := &groupHandler{handle: func(_ context.Context, msg Message) bool {
		offsets = append(offsets, msg.Offset)
		return len(offsets) > 2
	}, backoff: time.Millisecond}

	require.NoError(t, h.ConsumeClaim(session, claimOf(record(5, "order_created"), record(6, "order_created"))))

	assert.Equal(t, []int64{5, 5, 5, 6}, offsets)
	assert.Equal(t, []int64{5, 6}, session.marked)
}

func TestConsumeClaimStopsWithSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	h := &groupHandler{handle: func(context.Context, Message) bool {
		cancel()
		return false
	}, backoff: time.Hour}

	require.NoError(t, h.ConsumeClaim(session, claimOf(record(1, "order_created"))))
	assert.Empty(t, session.marked)
}

func TestNewConsumerGroupValidates(t *testing.T) {
	_, err := NewConsumerGroup(config.KafkaConfig{}, "g", []string{"t"}, nil)
	require.Error(t, err)
	_, err = NewConsumerGroup(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, " ", []string{"t"}, nil)
	require.Error(t, err)
	_, err = NewConsumerGroup(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "g", nil, nil)
	require.Error(t, err)
}

func TestConsumerConfigStartsAtOldest(t *testing.T) {
	sc := newConsumerConfig(config.KafkaConfig{ClientID: "shopflow-worker"})
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.Equal(t, "shopflow-worker", sc.ClientID)
	require.NoError(t, sc.Validate())
}
