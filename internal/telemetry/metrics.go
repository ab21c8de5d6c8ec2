package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики messaging-подсистемы.
//
// Регистрируются в default registry и отдаются promhttp-хендлером
// каждого сервиса.
var (
	// MessagesConsumed — сообщения, полученные из очередей,
	// с итогом обработки (ack / requeue / reject).
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dolya",
			Subsystem: "mq",
			Name:      "messages_consumed_total",
			Help:      "Messages consumed from queues by outcome.",
		},
		[]string{"queue", "outcome"},
	)

	// MessagesPublished — опубликованные сообщения по exchange и итогу.
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dolya",
			Subsystem: "mq",
			Name:      "messages_published_total",
			Help:      "Messages published to exchanges by outcome.",
		},
		[]string{"exchange", "outcome"},
	)

	// RPCDuration — длительность синхронных RPC-вызовов по итогу
	// (ok / timeout / error).
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dolya",
			Subsystem: "mq",
			Name:      "rpc_duration_seconds",
			Help:      "Duration of synchronous RPC calls by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"routing_key", "outcome"},
	)

	// ConsumerRestarts — перезапуски consume-цикла после transport-ошибок.
	ConsumerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dolya",
			Subsystem: "mq",
			Name:      "consumer_restarts_total",
			Help:      "Consumer loop restarts after transport errors.",
		},
		[]string{"queue"},
	)
)

// Значения label outcome.
const (
	OutcomeAck     = "ack"
	OutcomeRequeue = "requeue"
	OutcomeReject  = "reject"
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)
