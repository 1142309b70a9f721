// Package runner выполняет runs pipeline'ов.
//
// Runner — stateless компонент системы, который:
//   - Получает runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback)
//   - Выполняет стейджи run строго последовательно, fail-fast
//   - Разрешает секреты стейджа непосредственно перед его запуском
//     и передаёт их команде через окружение
//   - Отправляет ровно одно уведомление о завершении run
//
// Runners масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
package runner
