package engine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
)

// Context — контекст для рендеринга команд стейджей.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Inputs.image_tag }}
//   - {{ .Run.ID }}
//   - {{ .Run.Pipeline }}
//
// Секретов в контексте нет и быть не может: секреты передаются
// процессу стейджа только через переменные окружения, чтобы их
// значения не оказались внутри командной строки.
type Context struct {
	// Inputs — входные параметры run (после ValidateInputs).
	Inputs map[string]any `json:"inputs"`

	// Run — метаданные текущего run.
	Run RunMeta `json:"run"`
}

// RunMeta — метаданные run, доступные в шаблонах.
type RunMeta struct {
	// ID — идентификатор run.
	ID uuid.UUID `json:"id"`

	// Pipeline — имя pipeline.
	Pipeline string `json:"pipeline"`

	// Version — номер версии pipeline.
	Version int `json:"version"`
}

// NewContext создаёт новый контекст рендеринга.
func NewContext(inputs map[string]any, meta RunMeta) *Context {
	if inputs == nil {
		inputs = make(map[string]any)
	}
	return &Context{
		Inputs: inputs,
		Run:    meta,
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// default — возвращает значение по умолчанию, если аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,
}

// RenderCommand рендерит команду стейджа с контекстом.
//
// Обращение к несуществующему параметру — ошибка (missingkey=error),
// чтобы опечатка в имени input ломала run до запуска команды,
// а не подставляла "<no value>" в shell.
func RenderCommand(tmpl string, ctx *Context) (string, error) {
	// Команды без шаблонных выражений возвращаем как есть
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderEnv рендерит значения переменных окружения стейджа.
// Ключи не рендерятся.
func RenderEnv(env map[string]string, ctx *Context) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}

	result := make(map[string]string, len(env))
	for key, val := range env {
		rendered, err := RenderCommand(val, ctx)
		if err != nil {
			return nil, fmt.Errorf("render env %s: %w", key, err)
		}
		result[key] = rendered
	}
	return result, nil
}
