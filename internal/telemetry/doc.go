// Package telemetry обеспечивает наблюдаемость сервисов Dolya.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (очереди, публикации, RPC)
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
