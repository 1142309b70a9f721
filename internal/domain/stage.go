package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageResult — результат выполнения одного стейджа внутри run.
//
// Создаётся runner'ом перед запуском команды и обновляется после
// её завершения. Стейджи после упавшего получают статус SKIPPED —
// это фиксирует fail-fast семантику в истории run.
type StageResult struct {
	// ID — уникальный идентификатор результата.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// StageName — имя стейджа из PipelineSpec (StageDef.Name).
	StageName string `json:"stage_name"`

	// Position — порядковый номер стейджа в pipeline (с нуля).
	Position int `json:"position"`

	// Status — текущий статус стейджа.
	Status StageStatus `json:"status"`

	// ExitCode — код выхода команды. Осмыслен только для
	// SUCCEEDED (0) и FAILED. -1, если команда не запускалась.
	ExitCode int `json:"exit_code"`

	// OutputTail — хвост объединённого stdout+stderr команды.
	// Перед сохранением из него вычищаются значения секретов,
	// разрешённых для этого стейджа.
	OutputTail string `json:"output_tail,omitempty"`

	// Error — текст ошибки при неудаче (без значений секретов).
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения стейджа.
func (s *StageResult) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkRunning переводит стейдж в статус RUNNING.
func (s *StageResult) MarkRunning() {
	now := time.Now()
	s.Status = StageStatusRunning
	s.StartedAt = &now
}

// MarkSucceeded переводит стейдж в статус SUCCEEDED.
func (s *StageResult) MarkSucceeded(outputTail string) {
	now := time.Now()
	s.Status = StageStatusSucceeded
	s.FinishedAt = &now
	s.ExitCode = 0
	s.OutputTail = outputTail
}

// MarkFailed переводит стейдж в статус FAILED с кодом выхода и ошибкой.
func (s *StageResult) MarkFailed(exitCode int, outputTail, errMsg string) {
	now := time.Now()
	s.Status = StageStatusFailed
	s.FinishedAt = &now
	s.ExitCode = exitCode
	s.OutputTail = outputTail
	s.Error = errMsg
}

// MarkSkipped переводит стейдж в статус SKIPPED.
func (s *StageResult) MarkSkipped() {
	now := time.Now()
	s.Status = StageStatusSkipped
	s.FinishedAt = &now
	s.ExitCode = -1
}
