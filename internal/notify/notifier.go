package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
)

// Ошибки доставки уведомлений.
var (
	// ErrDeliveryFailed — транспорт не смог доставить уведомление.
	// Никогда не влияет на статус run.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// Notifier доставляет отчёт о завершённом run.
//
// Реализации: SMTPNotifier, WebhookNotifier, Multi.
// Вызывается runner'ом ровно один раз на run.
type Notifier interface {
	// Notify отправляет отчёт. Ошибка означает неудачу доставки;
	// вызывающая сторона логирует её и продолжает работу.
	Notify(ctx context.Context, report *RunReport) error
}

// RunReport — данные для уведомления о завершённом run.
//
// Собирается из run и результатов стейджей. Значений секретов
// здесь нет: output_tail стейджей уже отредактирован runner'ом.
type RunReport struct {
	// RunID — идентификатор run.
	RunID uuid.UUID `json:"run_id"`

	// Pipeline — имя pipeline.
	Pipeline string `json:"pipeline"`

	// Version — версия pipeline.
	Version int `json:"version"`

	// Status — терминальный статус run.
	Status domain.RunStatus `json:"status"`

	// FailedStage — имя упавшего стейджа (пусто при успехе).
	FailedStage string `json:"failed_stage,omitempty"`

	// ExitCode — код выхода упавшего стейджа. -1, если команда
	// не запускалась (секрет не разрешился).
	ExitCode int `json:"exit_code"`

	// Error — текст ошибки run.
	Error string `json:"error,omitempty"`

	// Duration — продолжительность run.
	Duration time.Duration `json:"duration"`

	// Stages — краткие результаты стейджей в порядке выполнения.
	Stages []StageSummary `json:"stages"`

	// Recipients — адресаты из NotifyPolicy pipeline.
	Recipients []string `json:"recipients,omitempty"`

	// FinishedAt — время завершения run.
	FinishedAt time.Time `json:"finished_at"`
}

// StageSummary — краткий результат одного стейджа для отчёта.
type StageSummary struct {
	Name     string             `json:"name"`
	Status   domain.StageStatus `json:"status"`
	ExitCode int                `json:"exit_code"`
	Duration time.Duration      `json:"duration"`
}

// Succeeded возвращает true, если run завершился успешно.
func (r *RunReport) Succeeded() bool {
	return r.Status == domain.RunStatusSucceeded
}

// BuildReport собирает RunReport из run и результатов стейджей.
func BuildReport(run *domain.Run, pipeline *domain.Pipeline, policy *domain.NotifyPolicy, stages []domain.StageResult) *RunReport {
	report := &RunReport{
		RunID:    run.ID,
		Pipeline: pipeline.Name,
		Version:  run.Version,
		Status:   run.Status,
		Error:    run.Error,
		Duration: run.Duration(),
		ExitCode: -1,
	}

	if run.FinishedAt != nil {
		report.FinishedAt = *run.FinishedAt
	}
	if policy != nil {
		report.Recipients = policy.Recipients
	}

	for i := range stages {
		s := &stages[i]
		report.Stages = append(report.Stages, StageSummary{
			Name:     s.StageName,
			Status:   s.Status,
			ExitCode: s.ExitCode,
			Duration: s.Duration(),
		})
		if s.StageName == run.FailedStage {
			report.FailedStage = s.StageName
			report.ExitCode = s.ExitCode
		}
	}

	// Run мог упасть до создания результата стейджа
	if report.FailedStage == "" && run.FailedStage != "" {
		report.FailedStage = run.FailedStage
	}

	return report
}

// ShouldNotify проверяет политику уведомлений против статуса run.
// Отменённые runs трактуются как неуспех: о них сообщаем,
// если включены уведомления о падениях.
func ShouldNotify(policy *domain.NotifyPolicy, status domain.RunStatus) bool {
	if status == domain.RunStatusSucceeded {
		return policy.NotifyOnSuccess()
	}
	return policy.NotifyOnFailure()
}
