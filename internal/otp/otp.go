// Package otp — одноразовые коды подтверждения входа и изменений профиля.
package otp

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"regexp"
	"time"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/mq"
)

// Параметры OTP.
const (
	defaultCodeLength = 5
	codeTTL           = 10 * time.Minute
)

// Типы идентификатора получателя.
const (
	IdentifierEmail = "email"
	IdentifierPhone = "phone_number"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// codeStore — хранилище кодов (Redis-кэш в production).
type codeStore interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, expire time.Duration) bool
	Delete(ctx context.Context, key string) bool
}

// record — кэшированный код.
type record struct {
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
	IsUsed    bool   `json:"is_used"`
}

// Service управляет жизненным циклом OTP-кодов: генерация, хранение
// с TTL, одноразовая проверка, рассылка через брокер.
type Service struct {
	store  codeStore
	rabbit config.Rabbit
	logger *slog.Logger
}

// NewService создаёт OTP-сервис.
func NewService(store codeStore, rabbit config.Rabbit, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		rabbit: rabbit,
		logger: logger,
	}
}

// GenerateCode возвращает случайный цифровой код заданной длины.
func GenerateCode(length int) string {
	if length <= 0 {
		length = defaultCodeLength
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand на исправной системе не падает
			panic(err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}

// Create генерирует код для пользователя и кладёт его в хранилище
// с TTL. Возвращает код; неудача записи в кэш логируется, но код
// всё равно выдаётся (Validate его тогда не примет — деградация,
// не отказ).
func (s *Service) Create(ctx context.Context, userID string) string {
	code := GenerateCode(defaultCodeLength)

	rec := record{
		Code:      code,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if !s.store.Set(ctx, cacheKey(userID), rec, codeTTL) {
		s.logger.Warn("failed to store OTP code", "user_id", userID)
	}

	return code
}

// Validate проверяет код и гасит его: успешная проверка удаляет запись,
// второй раз тот же код не пройдёт.
func (s *Service) Validate(ctx context.Context, userID, code string) bool {
	key := cacheKey(userID)

	var rec record
	if !s.store.Get(ctx, key, &rec) {
		return false
	}
	if rec.IsUsed || rec.Code != code {
		return false
	}

	// TTL в хранилище — основная защита; отметка времени — страховка
	// на случай хранилища без вытеснения.
	if created, err := time.Parse(time.RFC3339, rec.CreatedAt); err != nil || time.Since(created) > codeTTL {
		s.store.Delete(ctx, key)
		return false
	}

	s.store.Delete(ctx, key)
	return true
}

// IdentifierType классифицирует идентификатор получателя.
func IdentifierType(identifier string) string {
	if emailPattern.MatchString(identifier) {
		return IdentifierEmail
	}
	return IdentifierPhone
}

// Send публикует код в OTP exchange для notification-сервиса.
//
// Доставка best effort: соединение открывается на время одной публикации,
// ошибка возвращается вызывающему, который логирует её и продолжает —
// недоступность брокера не должна валить поток запроса.
func (s *Service) Send(ctx context.Context, identifier, code string) error {
	routingKey := s.rabbit.SMSRoutingKey
	if IdentifierType(identifier) == IdentifierEmail {
		routingKey = s.rabbit.EmailRoutingKey
	}

	conn := mq.NewConn(s.rabbit, s.logger)
	if err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Close()

	return mq.NewProducer(conn, s.logger).PublishOTP(ctx, identifier, code, routingKey)
}

func cacheKey(userID string) string {
	return "otp:" + userID
}
