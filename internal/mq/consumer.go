package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/telemetry"
)

// Значения по умолчанию для воркера.
const (
	defaultPrefetch   = 1
	defaultRetryDelay = 5 * time.Second
	defaultStopWait   = 5 * time.Second
)

// State — состояние воркера.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Handler обрабатывает одно доставленное сообщение.
//
// replier публикует через соединение воркера; пользоваться им можно
// только внутри вызова обработчика (он принадлежит горутине воркера).
//
// Итог обработки кодируется ошибкой:
//   - nil      — сообщение обработано, будет ack
//   - ErrReject — сообщение непригодно навсегда, nack без requeue
//   - иначе    — временный сбой, nack с requeue
type Handler func(ctx context.Context, replier *Producer, d amqp.Delivery) error

// Consumer — долгоживущий воркер, потребляющий одну очередь.
//
// Воркер владеет собственным соединением и одной горутиной;
// состояния: stopped → running → stopping → stopped. После Stop
// воркер можно запустить заново.
type Consumer struct {
	cfg     config.Rabbit
	name    string
	queue   string
	handler Handler
	logger  *slog.Logger

	prefetch   int
	retryDelay time.Duration
	stopWait   time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// ConsumerConfig — конфигурация воркера.
type ConsumerConfig struct {
	// Name — имя воркера (consumer tag и атрибут логов).
	Name string

	// Queue — имя потребляемой очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — окно неподтверждённых сообщений (default: 1).
	Prefetch int

	// RetryDelay — пауза перед перезапуском цикла после transport-ошибки
	// (default: 5s).
	RetryDelay time.Duration

	// StopWait — сколько Stop ждёт завершения горутины (default: 5s).
	StopWait time.Duration
}

// NewConsumer создаёт воркер. Потребление начинается после Start.
func NewConsumer(cfg config.Rabbit, logger *slog.Logger, c ConsumerConfig) *Consumer {
	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	retryDelay := c.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	stopWait := c.StopWait
	if stopWait <= 0 {
		stopWait = defaultStopWait
	}

	return &Consumer{
		cfg:        cfg,
		name:       c.Name,
		queue:      c.Queue,
		handler:    c.Handler,
		logger:     logger.With("consumer", c.Name, "queue", c.Queue),
		prefetch:   prefetch,
		retryDelay: retryDelay,
		stopWait:   stopWait,
		state:      StateStopped,
	}
}

// State возвращает текущее состояние воркера.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start запускает воркер в отдельной горутине и сразу возвращается.
// Повторный Start работающего воркера — no-op с предупреждением.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStopped {
		c.logger.Warn("consumer is already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.state = StateRunning
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, c.done)

	c.logger.Info("consumer started")
}

// Stop останавливает воркер: взводит отмену, ждёт завершения горутины
// не дольше StopWait и в любом случае переводит воркер в stopped.
// Stop неработающего воркера — no-op с предупреждением.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.logger.Warn("consumer is not running")
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(c.stopWait):
		// Горутина застряла в обработчике; соединение закроет её цикл.
		c.logger.Warn("consumer did not stop in time")
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	c.logger.Info("consumer stopped")
}

// run — главный цикл воркера: соединение, потребление, перезапуск
// с фиксированной паузой после transport-ошибок.
func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		// Свежее соединение на каждую итерацию: Conn не переподключается сам.
		conn := NewConn(c.cfg, c.logger)
		if err := conn.Connect(); err != nil {
			telemetry.ConsumerRestarts.WithLabelValues(c.queue).Inc()
			c.pause(ctx)
			continue
		}

		err := c.consume(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Error("consumer loop error, restarting", "error", err)
			telemetry.ConsumerRestarts.WithLabelValues(c.queue).Inc()
			c.pause(ctx)
		}
	}
}

// consume объявляет очередь и обрабатывает доставки, пока не отменят
// контекст или не закроется канал доставки.
func (c *Consumer) consume(ctx context.Context, conn *Conn) error {
	ch := conn.Channel()

	_, err := ch.QueueDeclare(
		c.queue,
		true,  // durable: очередь переживает рестарт брокера
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		QueueArgs(c.cfg),
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		c.name, // consumer tag
		false,  // auto-ack: подтверждаем вручную по итогу обработчика
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming queue")

	replier := NewProducer(conn, c.logger)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, replier, d)
		}
	}
}

// handleDelivery вызывает обработчик и подтверждает сообщение по итогу.
// Каждая доставка подтверждается ровно один раз.
func (c *Consumer) handleDelivery(ctx context.Context, replier *Producer, d amqp.Delivery) {
	err := c.handler(ctx, replier, d)

	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			c.logger.Error("failed to ack message", "error", err)
			return
		}
		telemetry.MessagesConsumed.WithLabelValues(c.queue, telemetry.OutcomeAck).Inc()

	case errors.Is(err, ErrReject):
		c.logger.Warn("rejecting message", "error", err)
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("failed to nack message", "error", err)
			return
		}
		telemetry.MessagesConsumed.WithLabelValues(c.queue, telemetry.OutcomeReject).Inc()

	default:
		c.logger.Error("handler failed, requeueing message", "error", err)
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("failed to nack message", "error", err)
			return
		}
		telemetry.MessagesConsumed.WithLabelValues(c.queue, telemetry.OutcomeRequeue).Inc()
	}
}

// pause ждёт retryDelay либо отмену контекста.
func (c *Consumer) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.retryDelay):
	}
}
