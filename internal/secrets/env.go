package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix — префикс переменных окружения с секретами.
const DefaultEnvPrefix = "MLOPS_SECRET_"

// EnvProvider разрешает секреты из окружения процесса оркестратора.
//
// Секрет "DOCKERHUB_PASSWORD" ищется в переменной
// MLOPS_SECRET_DOCKERHUB_PASSWORD. Удобно для локальной разработки
// и для окружений, где секреты инжектируются в pod снаружи.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider создаёт EnvProvider.
// Пустой prefix заменяется на DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix}
}

// Resolve возвращает значение секрета из окружения.
func (p *EnvProvider) Resolve(_ context.Context, name string) (string, error) {
	key := p.prefix + strings.ToUpper(name)
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return value, nil
}
