package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/domain"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/telemetry"
)

// Store — хранилище пользователей (коллаборатор обработчиков).
type Store interface {
	ListByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	GetByIdentifier(ctx context.Context, phoneOrEmail string) (*domain.User, error)
}

// replier — публикация ответа. Реализуется mq.Producer-ом воркера.
type replier interface {
	Publish(ctx context.Context, exchange, routingKey string, payload any, correlationID string) error
}

// BatchHandler обрабатывает батчевые запросы информации о пользователях.
type BatchHandler struct {
	store  Store
	logger *slog.Logger
}

// NewBatchHandler создаёт обработчик батчевых запросов.
func NewBatchHandler(store Store, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		store:  store,
		logger: logger,
	}
}

// Handler адаптирует BatchHandler к сигнатуре mq.Handler.
func (h *BatchHandler) Handler() mq.Handler {
	return func(ctx context.Context, replier *mq.Producer, d amqp.Delivery) error {
		return h.handle(ctx, replier, d)
	}
}

// handle обрабатывает один батчевый запрос.
//
// Итог кодируется ошибкой по контракту mq.Handler: ack произойдёт только
// если ответ успешно опубликован; битое тело и отсутствующий request_id
// отвергаются навсегда — без идентификатора сообщение нельзя осмысленно
// повторить.
func (h *BatchHandler) handle(ctx context.Context, rep replier, d amqp.Delivery) error {
	var req BatchRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		return fmt.Errorf("%w: decode batch request: %v", mq.ErrReject, err)
	}

	if req.RequestID == "" {
		return fmt.Errorf("%w: missing request_id in batch request", mq.ErrReject)
	}

	log := telemetry.WithRequestID(h.logger, req.RequestID)

	// Без reply_to ответ некуда доставить; requeue дёшев, а причина
	// может оказаться временной ошибкой публикатора.
	if d.ReplyTo == "" {
		return errors.New("missing reply_to in batch request properties")
	}

	uniqueIDs := dedupe(req.UserIDs)
	if len(uniqueIDs) == 0 {
		log.Warn("empty user_ids in batch request", "group_id", req.GroupID)
	}

	log.Info("processing batch user info request",
		"group_id", req.GroupID,
		"user_count", len(uniqueIDs),
	)

	users := make([]MemberInfo, 0, len(uniqueIDs))
	if len(uniqueIDs) > 0 {
		records, err := h.store.ListByIDs(ctx, uniqueIDs)
		if err != nil {
			return fmt.Errorf("lookup users: %w", err)
		}
		for i := range records {
			users = append(users, memberInfo(&records[i]))
		}
	}

	resp := BatchResponse{
		RequestID: req.RequestID,
		GroupID:   req.GroupID,
		Users:     users,
		Timestamp: nowISO(),
	}

	// Ответ уходит прямо в reply-to очередь через default exchange.
	// Correlation id эхом из запроса, fallback на request_id.
	correlationID := d.CorrelationId
	if correlationID == "" {
		correlationID = req.RequestID
	}

	if err := rep.Publish(ctx, "", d.ReplyTo, resp, correlationID); err != nil {
		return fmt.Errorf("publish batch response: %w", err)
	}

	log.Info("published batch user info response",
		"requested", len(uniqueIDs),
		"returned", len(users),
	)
	return nil
}

// NewBatchConsumer создаёт воркер батчевых lookup-запросов.
func NewBatchConsumer(cfg config.Rabbit, store Store, logger *slog.Logger) *mq.Consumer {
	h := NewBatchHandler(store, logger)
	return mq.NewConsumer(cfg, logger, mq.ConsumerConfig{
		Name:    "user-info-consumer",
		Queue:   cfg.UserInfoRequestQueue,
		Handler: h.Handler(),
	})
}
