package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dolya-app/dolya/internal/config"
)

// SetupTopology объявляет exchanges, очереди и bindings.
//
// Имена берутся из конфигурации: топология — внешний контракт между
// сервисами, в рантайме она не согласовывается. Объявления идемпотентны,
// запускать можно из любого сервиса и из CLI.
func SetupTopology(conn *Conn, cfg config.Rabbit) error {
	ch := conn.Channel()
	if ch == nil {
		return ErrNotConnected
	}

	if err := declareExchanges(ch, cfg); err != nil {
		return err
	}
	if err := declareQueues(ch, cfg); err != nil {
		return err
	}
	return bindQueues(ch, cfg)
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel, cfg config.Rabbit) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{cfg.OTPExchange, "topic"},
		{cfg.UserLookupExchange, "topic"},
		// direct exchange для батчевого user info RPC
		{cfg.UserInfoExchange, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			ex.name,
			ex.kind,
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт прикладные очереди.
//
// Все очереди durable, не exclusive, не auto-delete, с ограниченным
// x-message-ttl: невостребованные сообщения не копятся бесконечно.
// Эфемерные reply-очереди RPC-клиентов объявляются самим клиентом
// и сюда не входят.
func declareQueues(ch *amqp.Channel, cfg config.Rabbit) error {
	args := QueueArgs(cfg)

	queues := []string{
		cfg.EmailQueue,
		cfg.SMSQueue,
		cfg.UserLookupRequestQueue,
		cfg.UserLookupResponseQueue,
		cfg.UserInfoRequestQueue,
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			args,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel, cfg config.Rabbit) error {
	bindings := []struct {
		queue      string
		routingKey string
		exchange   string
	}{
		{cfg.EmailQueue, cfg.EmailRoutingKey, cfg.OTPExchange},
		{cfg.SMSQueue, cfg.SMSRoutingKey, cfg.OTPExchange},
		{cfg.UserLookupRequestQueue, cfg.UserLookupRequestKey, cfg.UserLookupExchange},
		{cfg.UserLookupResponseQueue, cfg.UserLookupResponseKey, cfg.UserLookupExchange},
		{cfg.UserInfoRequestQueue, cfg.UserInfoRequestRoutingKey, cfg.UserInfoExchange},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			b.queue,
			b.routingKey,
			b.exchange,
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// QueueArgs возвращает аргументы объявления прикладной очереди.
func QueueArgs(cfg config.Rabbit) amqp.Table {
	return amqp.Table{
		"x-message-ttl": cfg.MessageTTL.Milliseconds(),
	}
}
