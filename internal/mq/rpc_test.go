package mq

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAck записывает подтверждения доставок.
type fakeAck struct {
	acked   []uint64
	nacked  []uint64
	requeue map[uint64]bool
}

func newFakeAck() *fakeAck {
	return &fakeAck{requeue: make(map[uint64]bool)}
}

func (a *fakeAck) Ack(tag uint64, _ bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAck) Nack(tag uint64, _ bool, requeue bool) error {
	a.nacked = append(a.nacked, tag)
	a.requeue[tag] = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func delivery(ack *fakeAck, tag uint64, correlationID string, body []byte) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger:  ack,
		DeliveryTag:   tag,
		CorrelationId: correlationID,
		Body:          body,
	}
}

func TestAwaitReply_MatchingReplyIsAcked(t *testing.T) {
	ack := newFakeAck()
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- delivery(ack, 1, "corr-1", []byte(`{"ok":true}`))

	body, err := awaitReply(context.Background(), deliveries, "corr-1", time.Second, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
	if len(ack.acked) != 1 || ack.acked[0] != 1 {
		t.Errorf("reply should be acked, got %v", ack.acked)
	}
}

func TestAwaitReply_ForeignCorrelationIsRequeued(t *testing.T) {
	ack := newFakeAck()
	deliveries := make(chan amqp.Delivery, 2)
	// Чужой ответ, затем наш
	deliveries <- delivery(ack, 1, "someone-else", []byte(`{}`))
	deliveries <- delivery(ack, 2, "corr-1", []byte(`{"n":1}`))

	body, err := awaitReply(context.Background(), deliveries, "corr-1", time.Second, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"n":1}` {
		t.Errorf("unexpected body: %s", body)
	}

	// Чужое сообщение возвращено в очередь для владельца
	if len(ack.nacked) != 1 || ack.nacked[0] != 1 {
		t.Fatalf("foreign reply should be nacked, got %v", ack.nacked)
	}
	if !ack.requeue[1] {
		t.Error("foreign reply must be requeued")
	}
}

func TestAwaitReply_PoisonReplyIsDropped(t *testing.T) {
	ack := newFakeAck()
	deliveries := make(chan amqp.Delivery, 2)
	// Наш correlation id, но битое тело — яд, дальше ждём нормальный ответ
	deliveries <- delivery(ack, 1, "corr-1", []byte("{broken"))
	deliveries <- delivery(ack, 2, "corr-1", []byte(`{"n":2}`))

	body, err := awaitReply(context.Background(), deliveries, "corr-1", time.Second, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"n":2}` {
		t.Errorf("unexpected body: %s", body)
	}

	if len(ack.nacked) != 1 || ack.nacked[0] != 1 {
		t.Fatalf("poison reply should be nacked, got %v", ack.nacked)
	}
	if ack.requeue[1] {
		t.Error("poison reply must not be requeued")
	}
}

func TestAwaitReply_Timeout(t *testing.T) {
	deliveries := make(chan amqp.Delivery)

	start := time.Now()
	_, err := awaitReply(context.Background(), deliveries, "corr-1", 50*time.Millisecond, testLogger())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRPCTimeout) {
		t.Fatalf("expected ErrRPCTimeout, got %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("returned before timeout: %v", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestAwaitReply_ContextCancel(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitReply(ctx, deliveries, "corr-1", time.Second, testLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAwaitReply_ClosedChannel(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	close(deliveries)

	_, err := awaitReply(context.Background(), deliveries, "corr-1", time.Second, testLogger())
	if !errors.Is(err, ErrRepliesClosed) {
		t.Fatalf("expected ErrRepliesClosed, got %v", err)
	}
}
