package lookup

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/domain"
	"github.com/dolya-app/dolya/internal/mq"
)

func lookupCfg() config.Rabbit {
	return config.Rabbit{
		UserLookupExchange:    "user.lookup.exchange",
		UserLookupResponseKey: "user.lookup.response",
	}
}

func strPtr(s string) *string { return &s }

func TestSingleHandler_UserFound(t *testing.T) {
	store := &fakeStore{users: map[string]domain.User{
		"u1": {ID: "u1", Name: "Борис", Email: strPtr("boris@example.com")},
	}}
	rep := &fakeReplier{}
	h := NewSingleHandler(lookupCfg(), store, testLogger())

	d := amqp.Delivery{Body: mustBody(t, SingleRequest{
		RequestID:    "r1",
		PhoneOrEmail: "boris@example.com",
		GroupSlug:    "trip-2026",
	})}

	if err := h.handle(context.Background(), rep, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, ok := rep.payload.(SingleResponse)
	if !ok {
		t.Fatalf("payload should be SingleResponse, got %T", rep.payload)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.UserData == nil || resp.UserData.UserID != "u1" {
		t.Errorf("expected user_data for u1, got %+v", resp.UserData)
	}
	if resp.ErrorMessage != nil {
		t.Errorf("unexpected error_message: %s", *resp.ErrorMessage)
	}

	// Ответ уходит в lookup exchange с correlation id = request_id
	if rep.exchange != "user.lookup.exchange" || rep.routingKey != "user.lookup.response" {
		t.Errorf("response misrouted: exchange=%q key=%q", rep.exchange, rep.routingKey)
	}
	if rep.correlationID != "r1" {
		t.Errorf("expected correlation r1, got %s", rep.correlationID)
	}
}

func TestSingleHandler_UserNotFoundIsStillAReply(t *testing.T) {
	store := &fakeStore{users: map[string]domain.User{}}
	rep := &fakeReplier{}
	h := NewSingleHandler(lookupCfg(), store, testLogger())

	d := amqp.Delivery{Body: mustBody(t, SingleRequest{
		RequestID:    "r2",
		PhoneOrEmail: "+79990000000",
	})}

	// Ненайденный пользователь — нормальный исход, не ошибка обработки
	if err := h.handle(context.Background(), rep, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp := rep.payload.(SingleResponse)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.UserData != nil {
		t.Errorf("unexpected user_data: %+v", resp.UserData)
	}
	if resp.ErrorMessage == nil || *resp.ErrorMessage != "User not found: +79990000000" {
		t.Errorf("unexpected error_message: %v", resp.ErrorMessage)
	}
}

func TestSingleHandler_MalformedBodyIsRejected(t *testing.T) {
	rep := &fakeReplier{}
	h := NewSingleHandler(lookupCfg(), &fakeStore{}, testLogger())

	err := h.handle(context.Background(), rep, amqp.Delivery{Body: []byte("???")})
	if !errors.Is(err, mq.ErrReject) {
		t.Fatalf("expected ErrReject, got %v", err)
	}
	if rep.calls != 0 {
		t.Error("nothing should be published")
	}
}

func TestSingleHandler_MissingRequestIDIsRejected(t *testing.T) {
	rep := &fakeReplier{}
	h := NewSingleHandler(lookupCfg(), &fakeStore{}, testLogger())

	d := amqp.Delivery{Body: mustBody(t, SingleRequest{PhoneOrEmail: "a@b.c"})}

	err := h.handle(context.Background(), rep, d)
	if !errors.Is(err, mq.ErrReject) {
		t.Fatalf("expected ErrReject, got %v", err)
	}
}

func TestSingleHandler_MissingIdentifierIsRequeued(t *testing.T) {
	rep := &fakeReplier{}
	h := NewSingleHandler(lookupCfg(), &fakeStore{}, testLogger())

	d := amqp.Delivery{Body: mustBody(t, SingleRequest{RequestID: "r3"})}

	err := h.handle(context.Background(), rep, d)
	if err == nil || errors.Is(err, mq.ErrReject) {
		t.Fatalf("expected requeueable error, got %v", err)
	}
}

func TestSingleHandler_StoreErrorIsRequeued(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	rep := &fakeReplier{}
	h := NewSingleHandler(lookupCfg(), store, testLogger())

	d := amqp.Delivery{Body: mustBody(t, SingleRequest{RequestID: "r4", PhoneOrEmail: "a@b.c"})}

	err := h.handle(context.Background(), rep, d)
	if err == nil || errors.Is(err, mq.ErrReject) {
		t.Fatalf("transient store error must requeue, got %v", err)
	}
	if rep.calls != 0 {
		t.Error("nothing should be published on store failure")
	}
}
