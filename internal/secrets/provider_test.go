package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("MLOPS_SECRET_DOCKERHUB_PASSWORD", "hunter2")

	p := NewEnvProvider("")

	value, err := p.Resolve(context.Background(), "DOCKERHUB_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "hunter2" {
		t.Errorf("expected hunter2, got %q", value)
	}

	// Имя приводится к верхнему регистру
	value, err = p.Resolve(context.Background(), "dockerhub_password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "hunter2" {
		t.Errorf("expected hunter2, got %q", value)
	}

	_, err = p.Resolve(context.Background(), "NO_SUCH_SECRET")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"VAULT_PASSWORD": "swordfish"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewFileProvider(path)

	value, err := p.Resolve(context.Background(), "VAULT_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "swordfish" {
		t.Errorf("expected swordfish, got %q", value)
	}

	_, err = p.Resolve(context.Background(), "MISSING")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestFileProvider_MissingFile(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "nope.json"))

	_, err := p.Resolve(context.Background(), "ANY")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	// Отсутствие файла — инфраструктурная ошибка, не ErrSecretNotFound
	if errors.Is(err, ErrSecretNotFound) {
		t.Error("missing file should not map to ErrSecretNotFound")
	}
}

func TestChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"FROM_FILE": "file-value"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MLOPS_SECRET_FROM_ENV", "env-value")

	chain := NewChain(NewFileProvider(path), NewEnvProvider(""))

	// Первый провайдер выигрывает
	value, err := chain.Resolve(context.Background(), "FROM_FILE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "file-value" {
		t.Errorf("expected file-value, got %q", value)
	}

	// Fallback на следующий провайдер
	value, err = chain.Resolve(context.Background(), "FROM_ENV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "env-value" {
		t.Errorf("expected env-value, got %q", value)
	}

	_, err = chain.Resolve(context.Background(), "NOWHERE")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestResolveAll_AllOrNothing(t *testing.T) {
	t.Setenv("MLOPS_SECRET_A", "aaa")

	p := NewEnvProvider("")

	// Все секреты есть
	values, err := ResolveAll(context.Background(), p, []string{"A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["A"] != "aaa" {
		t.Errorf("expected aaa, got %q", values["A"])
	}

	// Один из секретов отсутствует — не возвращается ничего
	values, err = ResolveAll(context.Background(), p, []string{"A", "B"})
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
	if values != nil {
		t.Error("no partial credentials on failure")
	}

	// Пустой список — nil без ошибки
	values, err = ResolveAll(context.Background(), p, nil)
	if err != nil || values != nil {
		t.Errorf("expected nil, nil; got %v, %v", values, err)
	}
}

func TestRedact(t *testing.T) {
	values := map[string]string{
		"DOCKERHUB_PASSWORD": "hunter2",
		"EMPTY":              "",
	}

	out := Redact("login -p hunter2 done", values)
	if out != "login -p [REDACTED] done" {
		t.Errorf("secret should be redacted, got %q", out)
	}

	// Пустое значение не должно порождать замену на каждой позиции
	out = Redact("plain text", values)
	if out != "plain text" {
		t.Errorf("text without secrets should pass through, got %q", out)
	}
}

func TestWipe(t *testing.T) {
	values := map[string]string{"A": "1", "B": "2"}
	Wipe(values)
	if len(values) != 0 {
		t.Errorf("expected empty map, got %v", values)
	}
}
