package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Ошибки разрешения секретов.
var (
	// ErrSecretNotFound — секрет с таким именем не найден.
	// Стейдж, объявивший такой секрет, падает до запуска команды.
	ErrSecretNotFound = errors.New("secret not found")
)

// Provider разрешает именованный секрет в значение.
//
// Реализации: EnvProvider, FileProvider, Chain.
//
// Контракт: возвращённое значение валидно только на время выполнения
// запросившего стейджа. Реализации не логируют и не сохраняют значения.
type Provider interface {
	// Resolve возвращает значение секрета по имени.
	// Если секрет не найден — ошибка, оборачивающая ErrSecretNotFound.
	Resolve(ctx context.Context, name string) (string, error)
}

// ResolveAll разрешает набор секретов для одного стейджа.
//
// Либо разрешаются все, либо ни одного: при первой неудаче возвращается
// ошибка с именем секрета (но не значением), и стейдж не запускается —
// частичной выдачи креденшалов не бывает.
func ResolveAll(ctx context.Context, p Provider, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	values := make(map[string]string, len(names))
	for _, name := range names {
		value, err := p.Resolve(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve secret %q: %w", name, err)
		}
		values[name] = value
	}
	return values, nil
}

// Wipe затирает карту секретов после завершения стейджа.
// Строки в Go неизменяемы, поэтому это удаление ссылок,
// а не перезапись памяти — но за пределы окна выполнения стейджа
// значения через эту карту больше не доступны.
func Wipe(values map[string]string) {
	for k := range values {
		delete(values, k)
	}
}

// Redact заменяет значения секретов в тексте заглушкой.
// Применяется к захваченному выводу команды перед сохранением:
// стейдж может случайно напечатать креденшал в stdout.
func Redact(text string, values map[string]string) string {
	if text == "" || len(values) == 0 {
		return text
	}

	for _, value := range values {
		if value == "" {
			continue
		}
		text = strings.ReplaceAll(text, value, "[REDACTED]")
	}
	return text
}
