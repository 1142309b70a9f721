// Package notify отправляет терминальные уведомления о run.
//
// Структура:
//   - notifier.go — интерфейс Notifier и RunReport
//   - template.go — текстовые шаблоны писем/сообщений
//   - smtp.go     — доставка по email (net/smtp)
//   - webhook.go  — доставка POST-запросом (чат-боты, интеграции)
//   - multi.go    — fan-out на несколько транспортов
//
// Уведомление отправляется ровно один раз на run — независимо от того,
// дошёл run до конца или упал на первом стейдже. Ошибка доставки
// логируется и учитывается в метриках, но никогда не меняет
// результат run: уведомления — best-effort.
package notify
