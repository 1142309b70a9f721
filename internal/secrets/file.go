package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileProvider разрешает секреты из JSON-файла вида {"NAME": "value"}.
//
// Типичный источник — примонтированный Kubernetes Secret или файл,
// расшифрованный vault'ом при старте. Файл перечитывается на каждый
// Resolve c кэшем по mtime: ротация секрета подхватывается без
// рестарта оркестратора.
type FileProvider struct {
	path string

	mu      sync.Mutex
	modTime int64
	cache   map[string]string
}

// NewFileProvider создаёт FileProvider для указанного файла.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Resolve возвращает значение секрета из файла.
func (p *FileProvider) Resolve(_ context.Context, name string) (string, error) {
	values, err := p.load()
	if err != nil {
		return "", err
	}

	value, ok := values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return value, nil
}

// load читает и парсит файл, если он изменился с прошлого раза.
func (p *FileProvider) load() (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		return nil, fmt.Errorf("stat secrets file: %w", err)
	}

	mtime := info.ModTime().UnixNano()
	if p.cache != nil && mtime == p.modTime {
		return p.cache, nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	p.cache = values
	p.modTime = mtime
	return values, nil
}
