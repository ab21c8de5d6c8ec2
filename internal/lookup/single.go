package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/repo"
	"github.com/dolya-app/dolya/internal/telemetry"
)

// SingleHandler обрабатывает одиночные lookup-запросы
// (поиск пользователя по телефону или email при добавлении в группу).
type SingleHandler struct {
	cfg    config.Rabbit
	store  Store
	logger *slog.Logger
}

// NewSingleHandler создаёт обработчик одиночных запросов.
func NewSingleHandler(cfg config.Rabbit, store Store, logger *slog.Logger) *SingleHandler {
	return &SingleHandler{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Handler адаптирует SingleHandler к сигнатуре mq.Handler.
func (h *SingleHandler) Handler() mq.Handler {
	return func(ctx context.Context, replier *mq.Producer, d amqp.Delivery) error {
		return h.handle(ctx, replier, d)
	}
}

// handle обрабатывает один запрос. В отличие от батчевого обработчика,
// ненайденный пользователь — не пропуск, а ответ с success=false.
func (h *SingleHandler) handle(ctx context.Context, rep replier, d amqp.Delivery) error {
	var req SingleRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		return fmt.Errorf("%w: decode lookup request: %v", mq.ErrReject, err)
	}

	if req.RequestID == "" {
		return fmt.Errorf("%w: missing request_id in lookup request", mq.ErrReject)
	}

	log := telemetry.WithRequestID(h.logger, req.RequestID)

	if req.PhoneOrEmail == "" {
		return errors.New("missing phone_or_email in lookup request")
	}

	log.Info("processing user lookup request", "group_slug", req.GroupSlug)

	resp := SingleResponse{
		RequestID: req.RequestID,
		Timestamp: nowISO(),
	}

	user, err := h.store.GetByIdentifier(ctx, req.PhoneOrEmail)
	switch {
	case err == nil:
		resp.Success = true
		resp.UserData = userData(user)
		log.Info("user found", "user_id", user.ID)
	case errors.Is(err, repo.ErrNotFound):
		msg := "User not found: " + req.PhoneOrEmail
		resp.ErrorMessage = &msg
		log.Info("user not found")
	default:
		return fmt.Errorf("lookup user: %w", err)
	}

	err = rep.Publish(ctx, h.cfg.UserLookupExchange, h.cfg.UserLookupResponseKey, resp, req.RequestID)
	if err != nil {
		return fmt.Errorf("publish lookup response: %w", err)
	}

	log.Info("published user lookup response", "success", resp.Success)
	return nil
}

// NewSingleConsumer создаёт воркер одиночных lookup-запросов.
func NewSingleConsumer(cfg config.Rabbit, store Store, logger *slog.Logger) *mq.Consumer {
	h := NewSingleHandler(cfg, store, logger)
	return mq.NewConsumer(cfg, logger, mq.ConsumerConfig{
		Name:    "user-lookup-consumer",
		Queue:   cfg.UserLookupRequestQueue,
		Handler: h.Handler(),
	})
}
