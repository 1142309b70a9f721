package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRenderCommand_NoTemplate(t *testing.T) {
	ctx := NewContext(nil, RunMeta{})

	// Команда без шаблонных выражений возвращается как есть
	out, err := RenderCommand("kubectl apply -f k8s/backend.yaml", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "kubectl apply -f k8s/backend.yaml" {
		t.Errorf("command should pass through unchanged, got %q", out)
	}
}

func TestRenderCommand_Inputs(t *testing.T) {
	ctx := NewContext(map[string]any{
		"image_tag": "v17",
		"workspace": "/workspace",
	}, RunMeta{Pipeline: "sentiment-deploy"})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "single input",
			template: "docker build -t backend:{{ .Inputs.image_tag }} .",
			expected: "docker build -t backend:v17 .",
		},
		{
			name:     "two inputs",
			template: "cd {{ .Inputs.workspace }} && docker push backend:{{ .Inputs.image_tag }}",
			expected: "cd /workspace && docker push backend:v17",
		},
		{
			name:     "run metadata",
			template: "echo deploying {{ .Run.Pipeline }}",
			expected: "echo deploying sentiment-deploy",
		},
		{
			name:     "default func",
			template: "echo {{ default \"latest\" .Inputs.image_tag }}",
			expected: "echo v17",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderCommand(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, out)
			}
		})
	}
}

func TestRenderCommand_MissingInput(t *testing.T) {
	ctx := NewContext(map[string]any{}, RunMeta{ID: uuid.New()})

	// Опечатка в имени input должна ломать рендеринг,
	// а не подставлять "<no value>" в shell-команду
	_, err := RenderCommand("docker push backend:{{ .Inputs.image_tg }}", ctx)
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender, got %v", err)
	}
}

func TestRenderCommand_ParseError(t *testing.T) {
	ctx := NewContext(nil, RunMeta{})

	_, err := RenderCommand("echo {{ .Inputs.x", ctx)
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRenderEnv(t *testing.T) {
	ctx := NewContext(map[string]any{"image_tag": "v3"}, RunMeta{})

	env, err := RenderEnv(map[string]string{
		"IMAGE_TAG": "{{ .Inputs.image_tag }}",
		"NAMESPACE": "sentiment",
	}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env["IMAGE_TAG"] != "v3" {
		t.Errorf("expected v3, got %q", env["IMAGE_TAG"])
	}
	if env["NAMESPACE"] != "sentiment" {
		t.Errorf("expected sentiment, got %q", env["NAMESPACE"])
	}

	// Пустая карта — nil без ошибки
	env, err = RenderEnv(nil, ctx)
	if err != nil || env != nil {
		t.Errorf("expected nil env, got %v, %v", env, err)
	}
}
