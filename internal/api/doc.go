// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчики для /pipelines
//   - run_handler.go      — обработчики для /runs
//   - hook_handler.go     — webhook-триггер /hooks/{name}
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления pipelines, runs
// и schedules, плюс webhook endpoint для запуска pipeline извне.
package api
