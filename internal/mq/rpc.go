package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/telemetry"
)

// RPCClient выполняет синхронные запрос-ответ вызовы через брокер.
//
// Каждый Call открывает собственное соединение и эксклюзивную reply-очередь
// с именем от брокера, поэтому клиент безопасен для конкурентных вызовов
// из разных горутин. Вызывать Call из обработчика consumer-а нельзя:
// блокирующее ожидание внутри callback-а доставки — реентерабельность
// транспорта.
type RPCClient struct {
	cfg    config.Rabbit
	logger *slog.Logger
}

// NewRPCClient создаёт RPC-клиент.
func NewRPCClient(cfg config.Rabbit, logger *slog.Logger) *RPCClient {
	return &RPCClient{
		cfg:    cfg,
		logger: logger,
	}
}

// Call публикует запрос и блокируется до коррелированного ответа либо
// истечения timeout.
//
// Возвращает тело ответа как есть. На таймаут — ErrRPCTimeout: вызывающий
// трактует его как «ответа нет» и применяет собственный fallback, не
// различая таймаут и прочие причины отсутствия ответа.
func (c *RPCClient) Call(ctx context.Context, exchange, routingKey string, payload any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.RPCTimeout
	}

	start := time.Now()
	body, err := c.call(ctx, exchange, routingKey, payload, timeout)

	outcome := telemetry.OutcomeOK
	switch {
	case errors.Is(err, ErrRPCTimeout):
		outcome = telemetry.OutcomeTimeout
	case err != nil:
		outcome = telemetry.OutcomeError
	}
	telemetry.RPCDuration.WithLabelValues(routingKey, outcome).Observe(time.Since(start).Seconds())

	return body, err
}

func (c *RPCClient) call(ctx context.Context, exchange, routingKey string, payload any, timeout time.Duration) (json.RawMessage, error) {
	conn := NewConn(c.cfg, c.logger)
	if err := conn.Connect(); err != nil {
		return nil, err
	}
	// Teardown на любом пути выхода; вместе с соединением умирает и
	// auto-delete reply-очередь.
	defer conn.Close()

	ch := conn.Channel()

	// Эксклюзивная анонимная очередь: имя назначает брокер, коллизии
	// между конкурентными вызовами исключены.
	replyQueue, err := ch.QueueDeclare(
		"",    // name: broker-assigned
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	// Correlation id свой, случайный — независимый от request_id внутри
	// payload, чтобы корреляция не зависела от дисциплины вызывающих.
	correlationID := uuid.NewString()
	consumerTag := "rpc-" + correlationID

	deliveries, err := ch.Consume(
		replyQueue.Name,
		consumerTag,
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}
	defer ch.Cancel(consumerTag, false)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: correlationID,
			ReplyTo:       replyQueue.Name,
			Body:          body,
		},
	)
	if err != nil {
		c.logger.Error("failed to publish rpc request",
			"exchange", exchange,
			"routing_key", routingKey,
			"error", err,
		)
		return nil, fmt.Errorf("publish rpc request: %w", err)
	}

	c.logger.Debug("published rpc request",
		"exchange", exchange,
		"routing_key", routingKey,
		"correlation_id", correlationID,
		"reply_queue", replyQueue.Name,
	)

	return awaitReply(ctx, deliveries, correlationID, timeout, c.logger)
}

// awaitReply ждёт на reply-очереди ответ с нужным correlation id.
//
//   - чужой correlation id — nack с requeue: сообщение не наше, пусть его
//     заберёт ожидающий владелец
//   - битый JSON — nack без requeue, ждём дальше: яд не должен
//     циркулировать
//   - совпадение — ack и возврат тела
//
// По истечении timeout возвращает ErrRPCTimeout.
func awaitReply(ctx context.Context, deliveries <-chan amqp.Delivery, correlationID string, timeout time.Duration, logger *slog.Logger) (json.RawMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			logger.Warn("rpc call timed out",
				"timeout", timeout,
				"correlation_id", correlationID,
			)
			return nil, ErrRPCTimeout

		case d, ok := <-deliveries:
			if !ok {
				return nil, ErrRepliesClosed
			}

			if d.CorrelationId != correlationID {
				logger.Warn("foreign reply on rpc queue, requeueing",
					"got", d.CorrelationId,
					"want", correlationID,
				)
				d.Nack(false, true)
				continue
			}

			if !json.Valid(d.Body) {
				logger.Error("invalid JSON in rpc reply", "correlation_id", correlationID)
				d.Nack(false, false)
				continue
			}

			if err := d.Ack(false); err != nil {
				return nil, fmt.Errorf("ack rpc reply: %w", err)
			}
			return json.RawMessage(d.Body), nil
		}
	}
}
