// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - run.pending    — новый run ожидает выполнения (API/scheduler → runner)
//   - run.completed  — run завершён (runner → внешние потребители:
//     статусная панель CI, интеграции)
//
// Exchanges:
//   - mlops.runs — события runs
//   - mlops.dlq  — dead letter queue для необработанных триггеров
package mq
