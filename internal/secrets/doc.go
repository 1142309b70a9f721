// Package secrets разрешает именованные секреты для стейджей pipeline.
//
// Структура:
//   - provider.go — интерфейс Provider, ResolveAll, Redact
//   - env.go      — секреты из переменных окружения (MLOPS_SECRET_*)
//   - file.go     — секреты из JSON-файла (примонтированный vault/K8s secret)
//   - chain.go    — цепочка провайдеров, первый найденный выигрывает
//
// Правила обращения с секретами:
//   - Значение живёт только на время выполнения одного стейджа
//   - Значение никогда не логируется и не сохраняется в БД
//   - Значение передаётся команде стейджа только через окружение
//     процесса, никогда через подстановку в командную строку
package secrets
