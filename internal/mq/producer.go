package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/telemetry"
)

// Producer публикует JSON-сообщения через принадлежащее ему соединение.
//
// Producer наследует модель владения Conn: пользоваться им может только
// горутина-владелец соединения.
type Producer struct {
	conn   *Conn
	logger *slog.Logger
}

// NewProducer создаёт Producer поверх соединения.
func NewProducer(conn *Conn, logger *slog.Logger) *Producer {
	return &Producer{
		conn:   conn,
		logger: logger,
	}
}

// OTPMessage — сообщение с одноразовым кодом для notification-сервиса.
type OTPMessage struct {
	Identifier string `json:"identifier"`
	OTPCode    string `json:"otp_code"`
	Timestamp  string `json:"timestamp"`
}

// Publish публикует payload как JSON в exchange с routing key.
//
// Пустой exchange и routing key, равный имени очереди, адресуют сообщение
// напрямую в очередь (default exchange) — так публикуются ответы в
// reply-to очереди RPC-клиентов без отдельного binding.
//
// Ошибка транспорта возвращается вызывающему; паник и ретраев внутри нет.
func (p *Producer) Publish(ctx context.Context, exchange, routingKey string, payload any, correlationID string) error {
	if !p.conn.IsConnected() {
		if err := p.conn.Connect(); err != nil {
			telemetry.MessagesPublished.WithLabelValues(exchange, telemetry.OutcomeError).Inc()
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.conn.Channel().PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent, // сообщение переживёт рестарт брокера
			CorrelationId: correlationID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		telemetry.MessagesPublished.WithLabelValues(exchange, telemetry.OutcomeError).Inc()
		p.logger.Error("failed to publish message",
			"exchange", exchange,
			"routing_key", routingKey,
			"error", err,
		)
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	telemetry.MessagesPublished.WithLabelValues(exchange, telemetry.OutcomeOK).Inc()
	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"correlation_id", correlationID,
	)
	return nil
}

// PublishOTP публикует OTP-код в OTP exchange с заданным routing key
// (otp.email.send / otp.sms.send).
//
// Доставка OTP — best effort: вызывающий логирует ошибку и продолжает
// обслуживание запроса, недоступность брокера не валит сервис.
func (p *Producer) PublishOTP(ctx context.Context, identifier, code, routingKey string) error {
	msg := OTPMessage{
		Identifier: identifier,
		OTPCode:    code,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	if err := p.Publish(ctx, p.conn.cfg.OTPExchange, routingKey, msg, ""); err != nil {
		return err
	}

	p.logger.Info("published OTP message", "routing_key", routingKey, "identifier", identifier)
	return nil
}
