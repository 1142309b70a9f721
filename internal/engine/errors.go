package engine

import "errors"

// Ошибки валидации PipelineSpec.
var (
	// ErrEmptyStages — pipeline не содержит стейджей.
	ErrEmptyStages = errors.New("pipeline spec has no stages")

	// ErrNoEnabledStages — все стейджи выключены.
	ErrNoEnabledStages = errors.New("pipeline spec has no enabled stages")

	// ErrEmptyStageName — стейдж не имеет имени.
	ErrEmptyStageName = errors.New("stage has empty name")

	// ErrDuplicateStageName — несколько стейджей с одинаковым именем.
	ErrDuplicateStageName = errors.New("duplicate stage name")

	// ErrEmptyCommand — стейдж не имеет команды.
	ErrEmptyCommand = errors.New("stage has empty command")

	// ErrInvalidSecretName — имя секрета не подходит для переменной окружения.
	ErrInvalidSecretName = errors.New("invalid secret name")

	// ErrMissingInput — не передан обязательный входной параметр.
	ErrMissingInput = errors.New("required input missing")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Stage   string // имя стейджа, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Stage != "" {
		return "stage " + e.Stage + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stage, field, message string, err error) *ValidationError {
	return &ValidationError{
		Stage:   stage,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
