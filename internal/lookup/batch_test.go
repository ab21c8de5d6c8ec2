package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/domain"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/repo"
)

// fakeStore — хранилище пользователей в памяти.
type fakeStore struct {
	users map[string]domain.User
	err   error
}

func (s *fakeStore) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) GetByIdentifier(_ context.Context, phoneOrEmail string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if (u.PhoneNumber != nil && *u.PhoneNumber == phoneOrEmail) ||
			(u.Email != nil && *u.Email == phoneOrEmail) {
			return &u, nil
		}
	}
	return nil, repo.ErrNotFound
}

// fakeReplier записывает публикации.
type fakeReplier struct {
	exchange      string
	routingKey    string
	payload       any
	correlationID string
	calls         int
	err           error
}

func (r *fakeReplier) Publish(_ context.Context, exchange, routingKey string, payload any, correlationID string) error {
	r.calls++
	r.exchange = exchange
	r.routingKey = routingKey
	r.payload = payload
	r.correlationID = correlationID
	return r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func mustBody(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestBatchHandler_DeduplicatesAndOmitsMissing(t *testing.T) {
	store := &fakeStore{users: map[string]domain.User{
		"u1": {ID: "u1", Name: "Анна", CreatedAt: time.Now()},
	}}
	rep := &fakeReplier{}
	h := NewBatchHandler(store, testLogger())

	// u1 дважды, u2 отсутствует в хранилище
	d := amqp.Delivery{
		Body: mustBody(t, BatchRequest{
			RequestID: "r1",
			GroupID:   "g1",
			UserIDs:   []string{"u1", "u1", "u2"},
		}),
		ReplyTo:       "reply_queue",
		CorrelationId: "corr-1",
	}

	if err := h.handle(context.Background(), rep, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, ok := rep.payload.(BatchResponse)
	if !ok {
		t.Fatalf("payload should be BatchResponse, got %T", rep.payload)
	}

	// Ровно одна запись: дубликат схлопнут, ненайденный u2 опущен
	if len(resp.Users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(resp.Users))
	}
	if resp.Users[0].UserID != "u1" {
		t.Errorf("expected u1, got %s", resp.Users[0].UserID)
	}

	// Эхо request_id и group_id
	if resp.RequestID != "r1" || resp.GroupID != "g1" {
		t.Errorf("request echo broken: %+v", resp)
	}
	if resp.Timestamp == "" {
		t.Error("timestamp should be set")
	}

	// Ответ уходит в reply_to через default exchange с corr id запроса
	if rep.exchange != "" || rep.routingKey != "reply_queue" {
		t.Errorf("response misrouted: exchange=%q key=%q", rep.exchange, rep.routingKey)
	}
	if rep.correlationID != "corr-1" {
		t.Errorf("expected correlation corr-1, got %s", rep.correlationID)
	}
}

func TestBatchHandler_CorrelationFallsBackToRequestID(t *testing.T) {
	store := &fakeStore{users: map[string]domain.User{}}
	rep := &fakeReplier{}
	h := NewBatchHandler(store, testLogger())

	d := amqp.Delivery{
		Body:    mustBody(t, BatchRequest{RequestID: "r2", GroupID: "g1", UserIDs: []string{"u9"}}),
		ReplyTo: "reply_queue",
		// CorrelationId отсутствует
	}

	if err := h.handle(context.Background(), rep, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.correlationID != "r2" {
		t.Errorf("expected fallback to request_id, got %s", rep.correlationID)
	}
}

func TestBatchHandler_EmptyIDsStillReplies(t *testing.T) {
	store := &fakeStore{users: map[string]domain.User{}}
	rep := &fakeReplier{}
	h := NewBatchHandler(store, testLogger())

	d := amqp.Delivery{
		Body:          mustBody(t, BatchRequest{RequestID: "r3", GroupID: "g1"}),
		ReplyTo:       "reply_queue",
		CorrelationId: "corr-3",
	}

	if err := h.handle(context.Background(), rep, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.calls != 1 {
		t.Fatalf("expected 1 publish, got %d", rep.calls)
	}

	resp := rep.payload.(BatchResponse)
	if resp.Users == nil || len(resp.Users) != 0 {
		t.Errorf("expected empty users slice, got %#v", resp.Users)
	}
}

func TestBatchHandler_MalformedBodyIsRejected(t *testing.T) {
	rep := &fakeReplier{}
	h := NewBatchHandler(&fakeStore{}, testLogger())

	d := amqp.Delivery{Body: []byte("{not json"), ReplyTo: "reply_queue"}

	err := h.handle(context.Background(), rep, d)
	if !errors.Is(err, mq.ErrReject) {
		t.Fatalf("expected ErrReject, got %v", err)
	}
	if rep.calls != 0 {
		t.Error("nothing should be published for a malformed request")
	}
}

func TestBatchHandler_MissingRequestIDIsRejected(t *testing.T) {
	rep := &fakeReplier{}
	h := NewBatchHandler(&fakeStore{}, testLogger())

	d := amqp.Delivery{
		Body:    mustBody(t, BatchRequest{GroupID: "g1", UserIDs: []string{"u1"}}),
		ReplyTo: "reply_queue",
	}

	// Без request_id повтор бессмысленен — постоянный отказ
	err := h.handle(context.Background(), rep, d)
	if !errors.Is(err, mq.ErrReject) {
		t.Fatalf("expected ErrReject, got %v", err)
	}
}

func TestBatchHandler_MissingReplyToIsRequeued(t *testing.T) {
	rep := &fakeReplier{}
	h := NewBatchHandler(&fakeStore{}, testLogger())

	d := amqp.Delivery{
		Body: mustBody(t, BatchRequest{RequestID: "r4", UserIDs: []string{"u1"}}),
	}

	err := h.handle(context.Background(), rep, d)
	if err == nil {
		t.Fatal("expected error")
	}
	// Ответ некуда доставить, но причина может быть временной — requeue
	if errors.Is(err, mq.ErrReject) {
		t.Fatalf("missing reply_to must not be a permanent reject: %v", err)
	}
}

func TestBatchHandler_StoreErrorIsRequeued(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	rep := &fakeReplier{}
	h := NewBatchHandler(store, testLogger())

	d := amqp.Delivery{
		Body:    mustBody(t, BatchRequest{RequestID: "r5", UserIDs: []string{"u1"}}),
		ReplyTo: "reply_queue",
	}

	err := h.handle(context.Background(), rep, d)
	if err == nil || errors.Is(err, mq.ErrReject) {
		t.Fatalf("transient store error must requeue, got %v", err)
	}
	if rep.calls != 0 {
		t.Error("nothing should be published on store failure")
	}
}

func TestBatchHandler_PublishFailureIsRequeued(t *testing.T) {
	store := &fakeStore{users: map[string]domain.User{"u1": {ID: "u1"}}}
	rep := &fakeReplier{err: errors.New("broker gone")}
	h := NewBatchHandler(store, testLogger())

	d := amqp.Delivery{
		Body:    mustBody(t, BatchRequest{RequestID: "r6", UserIDs: []string{"u1"}}),
		ReplyTo: "reply_queue",
	}

	// Ответ не ушёл — сообщение нельзя подтверждать
	err := h.handle(context.Background(), rep, d)
	if err == nil || errors.Is(err, mq.ErrReject) {
		t.Fatalf("publish failure must requeue, got %v", err)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", "", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}
