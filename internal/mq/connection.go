package mq

import (
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
)

// Conn — обёртка над AMQP-соединением и каналом.
//
// Conn НЕ потокобезопасен и не переподключается сам: экземпляр принадлежит
// ровно одной горутине на протяжении жизненного цикла
// Connect → использование → Close. Consumer и RPC-клиент создают каждый
// своё соединение; общий глобальный Conn запрещён — разделение канала
// между горутинами ломает протокольный поток.
type Conn struct {
	cfg    config.Rabbit
	logger *slog.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConn создаёт неподключённый Conn. Перед использованием канала
// вызывающий обязан выполнить Connect.
func NewConn(cfg config.Rabbit, logger *slog.Logger) *Conn {
	return &Conn{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect устанавливает соединение и открывает канал.
//
// Делает cfg.ConnectionAttempts попыток с паузой cfg.RetryDelay между ними;
// если брокер так и не ответил — возвращает ошибку, не проглатывая её.
func (c *Conn) Connect() error {
	attempts := c.cfg.ConnectionAttempts
	if attempts <= 0 {
		attempts = 1
	}

	dial := func() error {
		conn, err := amqp.DialConfig(c.cfg.URL(), amqp.Config{
			Heartbeat: c.cfg.Heartbeat,
			Vhost:     c.cfg.VirtualHost,
		})
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return fmt.Errorf("open channel: %w", err)
		}

		c.conn = conn
		c.channel = ch
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(attempts-1))
	if err := backoff.Retry(dial, b); err != nil {
		c.logger.Error("failed to connect to RabbitMQ",
			"host", c.cfg.Host,
			"port", c.cfg.Port,
			"attempts", attempts,
			"error", err,
		)
		return err
	}

	c.logger.Debug("connected to RabbitMQ", "host", c.cfg.Host, "port", c.cfg.Port)
	return nil
}

// IsConnected возвращает true, только если открыты и соединение, и канал.
func (c *Conn) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed() &&
		c.channel != nil && !c.channel.IsClosed()
}

// Channel возвращает AMQP-канал. До Connect возвращает nil.
func (c *Conn) Channel() *amqp.Channel {
	return c.channel
}

// Close закрывает канал, затем соединение. Идемпотентен: повторный
// вызов и вызов на неподключённом Conn безопасны.
func (c *Conn) Close() error {
	var errs []error

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.channel = nil
	c.conn = nil

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
