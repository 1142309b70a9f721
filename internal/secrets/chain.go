package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Chain опрашивает провайдеры по порядку, первый найденный выигрывает.
//
// Обычная конфигурация: файл из vault'а, затем окружение как fallback
// для локальной разработки.
type Chain struct {
	providers []Provider
}

// NewChain создаёт цепочку провайдеров.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Resolve опрашивает провайдеры по порядку.
// ErrSecretNotFound одного провайдера не прерывает цепочку;
// любая другая ошибка возвращается сразу.
func (c *Chain) Resolve(ctx context.Context, name string) (string, error) {
	for _, p := range c.providers {
		value, err := p.Resolve(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}
