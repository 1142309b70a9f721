package engine

import (
	"fmt"
	"regexp"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
)

// secretNameRe — допустимый формат имени секрета.
// Имя секрета становится переменной окружения процесса стейджа,
// поэтому форма ограничена заранее.
var secretNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate выполняет полную валидацию PipelineSpec.
//
// Проверяет:
// - Наличие стейджей и хотя бы одного включённого
// - Уникальность имён стейджей
// - Непустые команды
// - Формат имён секретов
func Validate(spec *domain.PipelineSpec) error {
	if spec == nil {
		return ErrEmptyStages
	}

	if len(spec.Stages) == 0 {
		return ErrEmptyStages
	}

	stageNames := make(map[string]bool)
	enabled := 0

	for i := range spec.Stages {
		stage := &spec.Stages[i]

		if err := ValidateStage(stage, stageNames); err != nil {
			return err
		}

		if stage.IsEnabled() {
			enabled++
		}
	}

	if enabled == 0 {
		return ErrNoEnabledStages
	}

	return nil
}

// ValidateStage валидирует один стейдж.
// stageNames — уже встреченные имена стейджей (для проверки уникальности).
func ValidateStage(stage *domain.StageDef, stageNames map[string]bool) error {
	if stage.Name == "" {
		return NewValidationError("", "name", "stage has empty name", ErrEmptyStageName)
	}

	if stageNames[stage.Name] {
		return NewValidationError(stage.Name, "name",
			fmt.Sprintf("duplicate stage name: %s", stage.Name), ErrDuplicateStageName)
	}
	stageNames[stage.Name] = true

	if stage.Command == "" {
		return NewValidationError(stage.Name, "command",
			"stage has empty command", ErrEmptyCommand)
	}

	for _, name := range stage.Secrets {
		if !secretNameRe.MatchString(name) {
			return NewValidationError(stage.Name, "secrets",
				fmt.Sprintf("secret name %q is not a valid environment variable name", name),
				ErrInvalidSecretName)
		}
	}

	return nil
}

// ValidateInputs проверяет, что переданы все обязательные входные
// параметры, и дополняет inputs значениями по умолчанию.
// Возвращает итоговую карту параметров run.
func ValidateInputs(spec *domain.PipelineSpec, inputs map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(inputs))
	for k, v := range inputs {
		merged[k] = v
	}

	for name, def := range spec.Inputs {
		if _, ok := merged[name]; ok {
			continue
		}
		if def.Default != nil {
			merged[name] = def.Default
			continue
		}
		if def.Required {
			return nil, NewValidationError("", "inputs",
				fmt.Sprintf("required input %q is missing", name), ErrMissingInput)
		}
	}

	return merged, nil
}
