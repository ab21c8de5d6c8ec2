// Package api — HTTP API split-сервиса.
//
// Тонкий слой над межсервисными вызовами: маршруты, middleware
// (recovery, logging), унифицированные JSON-ответы. Бизнес-логики
// здесь нет.
package api
