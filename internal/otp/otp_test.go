package otp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dolya-app/dolya/internal/config"
)

// fakeCodeStore хранит записи в памяти, повторяя JSON-контракт кэша.
type fakeCodeStore struct {
	data    map[string][]byte
	setFail bool
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{data: make(map[string][]byte)}
}

func (s *fakeCodeStore) Get(_ context.Context, key string, dest any) bool {
	b, ok := s.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

func (s *fakeCodeStore) Set(_ context.Context, key string, value any, _ time.Duration) bool {
	if s.setFail {
		return false
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false
	}
	s.data[key] = b
	return true
}

func (s *fakeCodeStore) Delete(_ context.Context, key string) bool {
	delete(s.data, key)
	return true
}

func newTestService(store codeStore) *Service {
	return NewService(store, config.Rabbit{}, slog.New(slog.DiscardHandler))
}

func TestGenerateCode(t *testing.T) {
	code := GenerateCode(0)
	if len(code) != defaultCodeLength {
		t.Fatalf("expected %d digits, got %q", defaultCodeLength, code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit in code: %q", code)
		}
	}

	if got := GenerateCode(8); len(got) != 8 {
		t.Errorf("expected 8 digits, got %q", got)
	}
}

func TestService_CreateAndValidate(t *testing.T) {
	store := newFakeCodeStore()
	svc := newTestService(store)
	ctx := context.Background()

	code := svc.Create(ctx, "u1")
	if len(code) != defaultCodeLength {
		t.Fatalf("unexpected code: %q", code)
	}

	if !svc.Validate(ctx, "u1", code) {
		t.Fatal("fresh code should validate")
	}

	// Код одноразовый
	if svc.Validate(ctx, "u1", code) {
		t.Fatal("code must not validate twice")
	}
}

func TestService_ValidateWrongCode(t *testing.T) {
	store := newFakeCodeStore()
	svc := newTestService(store)
	ctx := context.Background()

	code := svc.Create(ctx, "u1")

	if svc.Validate(ctx, "u1", code+"0") {
		t.Fatal("wrong code must not validate")
	}
	// Неудачная проверка не гасит код
	if !svc.Validate(ctx, "u1", code) {
		t.Fatal("correct code should still validate after a wrong attempt")
	}
}

func TestService_ValidateUnknownUser(t *testing.T) {
	svc := newTestService(newFakeCodeStore())

	if svc.Validate(context.Background(), "nobody", "12345") {
		t.Fatal("unknown user must not validate")
	}
}

func TestService_ValidateExpiredCode(t *testing.T) {
	store := newFakeCodeStore()
	svc := newTestService(store)
	ctx := context.Background()

	// Запись старше TTL: хранилище без вытеснения её не удалило
	stale := record{
		Code:      "12345",
		CreatedAt: time.Now().UTC().Add(-codeTTL - time.Minute).Format(time.RFC3339),
	}
	store.Set(ctx, "otp:u1", stale, codeTTL)

	if svc.Validate(ctx, "u1", "12345") {
		t.Fatal("expired code must not validate")
	}
	// Протухшая запись вычищена
	if _, ok := store.data["otp:u1"]; ok {
		t.Error("expired record should be deleted")
	}
}

func TestService_CreateSurvivesStoreFailure(t *testing.T) {
	store := newFakeCodeStore()
	store.setFail = true
	svc := newTestService(store)

	// Код выдаётся даже если кэш недоступен
	if code := svc.Create(context.Background(), "u1"); len(code) != defaultCodeLength {
		t.Fatalf("expected a code despite store failure, got %q", code)
	}
}

func TestIdentifierType(t *testing.T) {
	tests := []struct {
		identifier string
		want       string
	}{
		{"user@example.com", IdentifierEmail},
		{"ivan.petrov+tag@mail.co", IdentifierEmail},
		{"+79991234567", IdentifierPhone},
		{"89991234567", IdentifierPhone},
		{"not-an-email", IdentifierPhone},
		{"@example.com", IdentifierPhone},
	}

	for _, tt := range tests {
		if got := IdentifierType(tt.identifier); got != tt.want {
			t.Errorf("IdentifierType(%q) = %s, want %s", tt.identifier, got, tt.want)
		}
	}
}
