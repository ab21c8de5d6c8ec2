package mq

import "errors"

// Ошибки messaging-слоя.
var (
	// ErrNotConnected — операция требует установленного соединения.
	ErrNotConnected = errors.New("not connected to broker")

	// ErrReject — сообщение постоянно непригодно к обработке.
	// Consumer отвечает на него nack без requeue: повтор обречён
	// падать так же (битый JSON, нет request_id).
	ErrReject = errors.New("message permanently rejected")

	// ErrRPCTimeout — ответ на RPC-запрос не пришёл за отведённое время.
	ErrRPCTimeout = errors.New("rpc call timed out")

	// ErrRepliesClosed — канал доставки ответов закрылся до получения ответа.
	ErrRepliesClosed = errors.New("reply delivery channel closed")
)
