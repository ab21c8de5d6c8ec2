// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (одно соединение — одна горутина)
//   - topology.go   — объявление exchanges, queues, bindings
//   - producer.go   — публикация сообщений (OTP, generic JSON)
//   - consumer.go   — долгоживущий воркер-потребитель очереди
//   - rpc.go        — синхронный RPC-клиент поверх reply-to очередей
//
// Exchanges:
//   - user.otp.exchange    (topic)  — рассылка OTP-кодов (email / sms)
//   - user.lookup.exchange (topic)  — одиночный поиск пользователя
//   - user_info_exchange   (direct) — батчевые запросы информации о пользователях
//
// Инвариант пакета: соединение и канал принадлежат ровно одной горутине.
// Consumer и RPC-клиент создают собственные соединения; общих глобальных
// соединений нет.
package mq
