package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopflow-backend/pkg/email"
	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox"
	"github.com/angelmondragon/shopflow-backend/pkg/outbox/payloads"
)

type stubSender struct {
	errs []error
	sent []email.Message
}

func (s *stubSender) Send(_ context.Context, msg email.Message) (email.Result, error) {
	s.sent = append(s.sent, msg)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return email.Result{}, err
		}
	}
	return email.Result{MessageID: "msg-1"}, nil
}

type memoryTracker struct {
	seen    map[uuid.UUID]bool
	deleted int
	err     error
}

func (m *memoryTracker) Claim(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memoryTracker) Release(_ context.Context, _ string, id uuid.UUID) error {
	delete(m.seen, id)
	m.deleted++
	return nil
}

func newTestConsumer(sender *stubSender, tracker *memoryTracker) (*Consumer, *[]time.Duration) {
	log := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	c := newConsumer(sender, nil, tracker, NewRenderer("https://shop.example.com/"), RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      150 * time.Millisecond,
		BackoffFactor: 2,
	}, log)
	waits := &[]time.Duration{}
	c.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return c, waits
}

func message(t *testing.T, eventType enums.OutboxEventType, data any) (Delivery, uuid.UUID) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	id := uuid.New()
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: id.String(), OccurredAt: time.Now().UTC(), Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return Delivery{
		ID:         "m-" + id.String()[:8],
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType)},
	}, id
}

func createdEvent() payloads.OrderCreatedEvent {
	return payloads.OrderCreatedEvent{
		OrderID:        uuid.New(),
		OrderNumber:    "ORD-20260615-ABCDEF12",
		CustomerEmail:  "buyer@example.com",
		Subtotal:       decimal.RequireFromString("200"),
		DiscountAmount: decimal.RequireFromString("20"),
		DeliveryCost:   decimal.RequireFromString("5"),
		TotalAmount:    decimal.RequireFromString("185"),
		PaymentMethod:  enums.PaymentMethodCOD,
		ShippingMethod: enums.ShippingStandard,
		DeliveryDays:   5,
		Items: []payloads.OrderItemLine{{
			ProductName: "Runner <Pro>",
			Size:        "42",
			ColorName:   "Black",
			SKU:         "TR-42",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("100"),
			LineTotal:   decimal.RequireFromString("200"),
		}},
	}
}

func TestProcessOrderCreatedSendsOnce(t *testing.T) {
	sender := &stubSender{}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}}
	c, _ := newTestConsumer(sender, tracker)
	msg, _ := message(t, enums.EventOrderCreated, createdEvent())

	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack on redelivery, got %+v", res)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	sent := sender.sent[0]
	if sent.To != "buyer@example.com" || sent.Category != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected message %+v", sent)
	}
	if !strings.Contains(sent.Subject, "ORD-20260615-ABCDEF12") {
		t.Fatalf("expected order number in subject, got %q", sent.Subject)
	}
	if !strings.Contains(sent.HTMLBody, "Runner &lt;Pro&gt;") {
		t.Fatalf("expected escaped product name in body")
	}
	if !strings.Contains(sent.HTMLBody, "https://shop.example.com/orders/") {
		t.Fatalf("expected storefront link in body")
	}
	if !strings.Contains(sent.TextBody, "Total: 185.00") {
		t.Fatalf("expected total in text body, got %q", sent.TextBody)
	}
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	sender := &stubSender{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}}
	c, waits := newTestConsumer(sender, tracker)
	msg, _ := message(t, enums.EventOrderCreated, createdEvent())

	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(sender.sent))
	}
	want := []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}
	if len(*waits) != len(want) || (*waits)[0] != want[0] || (*waits)[1] != want[1] {
		t.Fatalf("expected waits %v, got %v", want, *waits)
	}
}

func TestProcessNacksAndReleasesMarkerAfterFinalFailure(t *testing.T) {
	fail := errors.New("503")
	sender := &stubSender{errs: []error{fail, fail, fail}}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}}
	c, _ := newTestConsumer(sender, tracker)
	msg, id := message(t, enums.EventOrderCreated, createdEvent())

	if res := c.process(context.Background(), msg); !res.nack {
		t.Fatalf("expected nack, got %+v", res)
	}
	if tracker.deleted != 1 || tracker.seen[id] {
		t.Fatalf("expected idempotency marker released")
	}
}

func TestProcessDropsValidationErrors(t *testing.T) {
	sender := &stubSender{errs: []error{pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")}}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}}
	c, waits := newTestConsumer(sender, tracker)
	msg, _ := message(t, enums.EventOrderCancelled, payloads.OrderCancelledEvent{
		OrderID:       uuid.New(),
		OrderNumber:   "ORD-1",
		CustomerEmail: "buyer@example.com",
		Reason:        "changed my mind",
	})

	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(sender.sent) != 1 || len(*waits) != 0 {
		t.Fatalf("expected a single attempt, got %d sends and %d waits", len(sender.sent), len(*waits))
	}
}

func TestProcessSkipsQuietEvents(t *testing.T) {
	sender := &stubSender{}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}}
	c, _ := newTestConsumer(sender, tracker)

	other, _ := message(t, enums.EventCashCollected, map[string]string{"paymentId": uuid.NewString()})
	if res := c.process(context.Background(), other); !res.ack {
		t.Fatalf("expected ack for unrelated event")
	}

	assigned, _ := message(t, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
		OrderID:       uuid.New(),
		OrderNumber:   "ORD-1",
		CustomerEmail: "buyer@example.com",
		From:          enums.OrderStatusConfirmed,
		To:            enums.OrderStatusAssigned,
	})
	if res := c.process(context.Background(), assigned); !res.ack {
		t.Fatalf("expected ack for assigned status")
	}

	garbage := Delivery{ID: "bad", Data: []byte("{"), Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)}}
	if res := c.process(context.Background(), garbage); !res.ack {
		t.Fatalf("expected ack for undecodable message")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(sender.sent))
	}
}

func TestProcessNacksWhenIdempotencyStoreFails(t *testing.T) {
	sender := &stubSender{}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}, err: errors.New("redis down")}
	c, _ := newTestConsumer(sender, tracker)
	msg, _ := message(t, enums.EventOrderCreated, createdEvent())

	if res := c.process(context.Background(), msg); !res.nack {
		t.Fatalf("expected nack, got %+v", res)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no email")
	}
}

func TestShippedEmailCarriesTracking(t *testing.T) {
	r := NewRenderer("https://shop.example.com")
	tracking, carrier := "TRK-1", "DHL"
	msg, send, err := r.StatusChanged(payloads.OrderStatusChangedEvent{
		OrderID:        uuid.New(),
		OrderNumber:    "ORD-1",
		CustomerEmail:  "buyer@example.com",
		From:           enums.OrderStatusConfirmed,
		To:             enums.OrderStatusShipped,
		TrackingNumber: &tracking,
		Carrier:        &carrier,
	})
	if err != nil || !send {
		t.Fatalf("expected shipped email, err=%v send=%v", err, send)
	}
	if !strings.Contains(msg.HTMLBody, "TRK-1") || !strings.Contains(msg.TextBody, "DHL") {
		t.Fatalf("expected tracking details in email")
	}
}

func TestRetryPolicyDelays(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}
	got := p.delays()
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if d := (RetryPolicy{MaxAttempts: 1}).delays(); len(d) != 0 {
		t.Fatalf("expected no delays for a single attempt")
	}
}

type scriptedSource struct {
	deliveries []Delivery
	settled    []bool
}

func (s *scriptedSource) Receive(ctx context.Context, handle func(context.Context, Delivery) bool) error {
	for _, d := range s.deliveries {
		s.settled = append(s.settled, handle(ctx, d))
	}
	return nil
}

func (s *scriptedSource) Ping(context.Context) error { return nil }

func TestRunSettlesThroughSource(t *testing.T) {
	sender := &stubSender{errs: []error{nil, pkgerrors.New(pkgerrors.CodeDependency, "provider down")}}
	tracker := &memoryTracker{seen: map[uuid.UUID]bool{}}
	c, _ := newTestConsumer(sender, tracker)
	c.retry = RetryPolicy{MaxAttempts: 1}

	first, _ := message(t, enums.EventOrderCreated, createdEvent())
	second, _ := message(t, enums.EventOrderCreated, createdEvent())
	src := &scriptedSource{deliveries: []Delivery{first, second}}
	c.source = src

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(src.settled) != 2 || !src.settled[0] || src.settled[1] {
		t.Fatalf("expected first settled and second redelivered, got %v", src.settled)
	}
}
