package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline — определение конвейера развёртывания.
//
// Pipeline — это "рецепт" доставки: обучить модель, собрать образы,
// задеплоить backend и frontend в кластер. Один pipeline может иметь
// множество версий (PipelineVersion). Каждый запуск (Run) выполняет
// конкретную версию pipeline.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя pipeline (например, "sentiment-deploy").
	// Используется в webhook-триггере: POST /api/v1/hooks/{name}.
	Name string `json:"name"`

	// IsActive — флаг активности. Неактивные pipelines не запускаются
	// ни по webhook, ни по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineVersion — версия pipeline с конкретной спецификацией.
//
// Версионирование позволяет откатываться к предыдущим версиям
// и смотреть, какая именно последовательность стейджей выполнялась
// в конкретном run.
type PipelineVersion struct {
	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Version — номер версии (1, 2, 3, ...).
	// Автоинкремент при создании новой версии.
	Version int `json:"version"`

	// Spec — спецификация pipeline в формате JSON.
	Spec PipelineSpec `json:"spec"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineSpec — спецификация pipeline (содержимое JSONB поля spec).
//
// Это "программа" для runner'а: упорядоченный список стейджей,
// входные параметры и политика уведомлений.
type PipelineSpec struct {
	// Version — версия формата спецификации (для обратной совместимости).
	Version string `json:"version,omitempty"`

	// Name — имя pipeline (дублирует Pipeline.Name для удобства).
	Name string `json:"name,omitempty"`

	// Description — описание назначения pipeline.
	Description string `json:"description,omitempty"`

	// Inputs — входные параметры (image_tag, workspace и т.д.).
	// Ключ — имя параметра, значение — его определение.
	// Значения подставляются в команды стейджей через шаблоны.
	Inputs map[string]InputDef `json:"inputs,omitempty"`

	// Defaults — настройки по умолчанию для всех стейджей.
	Defaults *StageDefaults `json:"defaults,omitempty"`

	// Stages — упорядоченный список стейджей.
	// Выполняются строго последовательно, fail-fast.
	Stages []StageDef `json:"stages"`

	// Notify — политика уведомлений о завершении run.
	Notify *NotifyPolicy `json:"notify,omitempty"`
}

// InputDef — определение входного параметра.
type InputDef struct {
	// Type — тип параметра: "string", "number", "boolean".
	Type string `json:"type"`

	// Required — обязательный ли параметр.
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию.
	Default any `json:"default,omitempty"`

	// Description — описание параметра.
	Description string `json:"description,omitempty"`
}

// StageDefaults — настройки по умолчанию для стейджей.
type StageDefaults struct {
	// TimeoutSec — таймаут выполнения стейджа в секундах.
	// 0 — без таймаута.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Workdir — рабочая директория команд (workspace).
	Workdir string `json:"workdir,omitempty"`
}

// StageDef — определение стейджа в pipeline.
//
// Стейдж — это одна именованная команда внешнего инструмента
// (pip, docker, kubectl, ansible-playbook). Runner наблюдает только
// код выхода, вывод команды для него непрозрачен.
type StageDef struct {
	// Name — уникальное имя стейджа в рамках pipeline
	// (например, "train", "build-backend", "deploy").
	Name string `json:"name"`

	// Command — команда стейджа. Шаблон Go template: в него
	// подставляются ТОЛЬКО входные параметры ({{ .Inputs.image_tag }})
	// и метаданные run. Секреты в шаблон не попадают никогда —
	// они передаются процессу через окружение.
	Command string `json:"command"`

	// Env — дополнительные переменные окружения стейджа
	// (несекретные: имена образов, неймспейсы и т.д.).
	Env map[string]string `json:"env,omitempty"`

	// Secrets — имена секретов, которые нужны этому стейджу.
	// Разрешаются через secrets.Provider непосредственно перед
	// запуском команды и передаются как переменные окружения
	// с теми же именами. Если секрет не разрешился — команда
	// не запускается, run падает.
	Secrets []string `json:"secrets,omitempty"`

	// Workdir — рабочая директория (переопределяет defaults.workdir).
	Workdir string `json:"workdir,omitempty"`

	// TimeoutSec — таймаут для этого стейджа.
	// Переопределяет defaults.timeout_sec.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Enabled — флаг включённости стейджа. Выключенные стейджи
	// пропускаются без записи результата. Nil означает true.
	Enabled *bool `json:"enabled,omitempty"`
}

// IsEnabled возвращает true, если стейдж включён.
// Отсутствие флага трактуется как включённый.
func (s *StageDef) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// NotifyPolicy — политика уведомлений о завершении run.
type NotifyPolicy struct {
	// Recipients — адреса получателей письма.
	Recipients []string `json:"recipients,omitempty"`

	// WebhookURL — URL для POST-уведомления (например, чат-бот).
	WebhookURL string `json:"webhook_url,omitempty"`

	// OnSuccess — слать ли уведомление при успехе. Nil означает true.
	OnSuccess *bool `json:"on_success,omitempty"`

	// OnFailure — слать ли уведомление при падении. Nil означает true.
	OnFailure *bool `json:"on_failure,omitempty"`
}

// NotifyOnSuccess возвращает true, если нужно уведомлять об успехе.
func (n *NotifyPolicy) NotifyOnSuccess() bool {
	return n == nil || n.OnSuccess == nil || *n.OnSuccess
}

// NotifyOnFailure возвращает true, если нужно уведомлять о падении.
func (n *NotifyPolicy) NotifyOnFailure() bool {
	return n == nil || n.OnFailure == nil || *n.OnFailure
}
