package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/engine"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/mq"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/notify"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/repo"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/secrets"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/telemetry"
)

// processRun выполняет один run от начала до терминального статуса.
//
// Инварианты:
//   - Стейджи выполняются строго в порядке спецификации, по одному.
//   - Первый упавший стейдж останавливает run; остальные получают SKIPPED.
//   - Секреты стейджа разрешаются перед его командой и не переживают её.
//   - Ровно одно уведомление на run, после записи терминального статуса.
func (r *Runner) processRun(ctx context.Context, runID uuid.UUID) error {
	// 1. Загружаем run из БД
	run, err := r.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	// 2. Атомарно забираем run. Conditional UPDATE гарантирует, что
	// из конкурирующих runner'ов (consumer и poll loop одного процесса,
	// либо две реплики) run достаётся ровно одному.
	run.MarkRunning()
	if err := r.runRepo.Claim(ctx, run.ID, *run.StartedAt); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrRunNotPending
		}
		return fmt.Errorf("claim run: %w", err)
	}

	// 3. Загружаем pipeline и версию спецификации
	pipeline, err := r.pipelineRepo.GetByID(ctx, run.PipelineID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return r.failBeforeStart(ctx, run, nil, fmt.Sprintf("pipeline %s not found", run.PipelineID))
		}
		return fmt.Errorf("get pipeline: %w", err)
	}

	version, err := r.pipelineRepo.GetVersion(ctx, run.PipelineID, run.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return r.failBeforeStart(ctx, run, pipeline,
				fmt.Sprintf("pipeline version %d not found", run.Version))
		}
		return fmt.Errorf("get pipeline version: %w", err)
	}
	spec := &version.Spec

	logger := telemetry.WithRunID(r.logger, run.ID.String()).With("pipeline", pipeline.Name)

	// 4. Валидируем спецификацию и входные параметры
	if err := engine.Validate(spec); err != nil {
		return r.failBeforeStart(ctx, run, pipeline, fmt.Sprintf("invalid spec: %v", err))
	}

	inputs, err := engine.ValidateInputs(spec, run.Inputs)
	if err != nil {
		return r.failBeforeStart(ctx, run, pipeline, fmt.Sprintf("invalid inputs: %v", err))
	}

	logger.Info("run started",
		"version", run.Version,
		"stages", len(spec.Stages),
		"triggered_by", run.TriggeredBy,
	)

	tmplCtx := engine.NewContext(inputs, engine.RunMeta{
		ID:       run.ID,
		Pipeline: pipeline.Name,
		Version:  run.Version,
	})

	// 5. Выполняем стейджи последовательно
	var (
		results   []domain.StageResult
		cancelled bool
		position  int
	)

	for i := range spec.Stages {
		stage := &spec.Stages[i]
		if !stage.IsEnabled() {
			continue
		}
		pos := position
		position++

		// Упавший run или отмена: остальные стейджи фиксируются как SKIPPED
		if run.Status == domain.RunStatusFailed || cancelled {
			skipped := r.recordSkipped(ctx, run, stage, pos, logger)
			results = append(results, *skipped)
			continue
		}

		// Отмена перепроверяется между стейджами
		status, err := r.runRepo.GetStatus(ctx, run.ID)
		if err == nil && status == domain.RunStatusCancelled {
			cancelled = true
			logger.Info("run cancellation detected", "before_stage", stage.Name)
			skipped := r.recordSkipped(ctx, run, stage, pos, logger)
			results = append(results, *skipped)
			continue
		}

		result := r.runStage(ctx, run, pipeline, spec, stage, pos, tmplCtx, logger)
		results = append(results, *result)

		if result.Status == domain.StageStatusFailed {
			run.MarkFailed(stage.Name, result.Error)
		}
	}

	// 6. Финализируем run
	switch {
	case cancelled:
		run.MarkCancelled()
	case run.Status == domain.RunStatusFailed:
		// MarkFailed уже выставил терминальное состояние
	default:
		run.MarkSucceeded()
	}

	if err := r.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to %s: %w", run.Status, err)
	}

	telemetry.RunsTotal.WithLabelValues(pipeline.Name, string(run.Status)).Inc()

	logger.Info("run finished",
		"status", run.Status,
		"failed_stage", run.FailedStage,
		"duration", run.Duration(),
	)

	// 7. Публикуем событие и уведомляем — строго после терминального статуса
	r.publishCompletion(ctx, run, pipeline)
	r.notifyOnce(ctx, run, pipeline, spec, results, logger)

	return nil
}

// failBeforeStart переводит run в FAILED до запуска первого стейджа
// (битая спецификация, отсутствующие inputs). Run уже забран через
// Claim. Уведомление отправляется: такой run тоже завершился,
// и о нём нужно сообщить.
func (r *Runner) failBeforeStart(ctx context.Context, run *domain.Run, pipeline *domain.Pipeline, reason string) error {
	run.MarkFailed("", reason)
	if err := r.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to failed: %w", err)
	}

	name := "unknown"
	if pipeline != nil {
		name = pipeline.Name
	}
	telemetry.RunsTotal.WithLabelValues(name, string(domain.RunStatusFailed)).Inc()

	r.logger.Warn("run failed before first stage",
		"run_id", run.ID,
		"reason", reason,
	)

	if pipeline != nil {
		r.publishCompletion(ctx, run, pipeline)
		r.notifyOnce(ctx, run, pipeline, nil, nil, r.logger)
	}
	return nil
}

// recordSkipped создаёт результат SKIPPED для стейджа, который
// не будет выполняться из-за fail-fast или отмены.
func (r *Runner) recordSkipped(ctx context.Context, run *domain.Run, stage *domain.StageDef, position int, logger *slog.Logger) *domain.StageResult {
	result := newStageResult(run.ID, stage.Name, position)
	result.MarkSkipped()

	if err := r.stageRepo.Create(ctx, result); err != nil {
		logger.Warn("failed to record skipped stage", "stage", stage.Name, "error", err)
	}
	return result
}

// runStage выполняет один стейдж и сохраняет его результат.
//
// Порядок внутри стейджа:
//  1. Рендеринг команды и env (секретов в контексте шаблона нет)
//  2. Разрешение секретов (все или ни одного)
//  3. Запуск команды с секретами в окружении
//  4. Редактирование хвоста вывода и запись результата
//
// Значения секретов живут только внутри этого вызова.
func (r *Runner) runStage(
	ctx context.Context,
	run *domain.Run,
	pipeline *domain.Pipeline,
	spec *domain.PipelineSpec,
	stage *domain.StageDef,
	position int,
	tmplCtx *engine.Context,
	logger *slog.Logger,
) *domain.StageResult {
	result := newStageResult(run.ID, stage.Name, position)
	if err := r.stageRepo.Create(ctx, result); err != nil {
		result.MarkFailed(-1, "", fmt.Sprintf("record stage: %v", err))
		return result
	}

	result.MarkRunning()
	if err := r.stageRepo.Update(ctx, result); err != nil {
		logger.Warn("failed to update stage to running", "stage", stage.Name, "error", err)
	}

	logger.Info("stage started", "stage", stage.Name, "position", position)

	// Рендеринг команды. Секреты в шаблон не попадают.
	command, err := engine.RenderCommand(stage.Command, tmplCtx)
	if err != nil {
		return r.finishStageFailed(ctx, result, -1, "",
			fmt.Sprintf("render command: %v", err), pipeline, stage, logger)
	}

	env, err := engine.RenderEnv(stage.Env, tmplCtx)
	if err != nil {
		return r.finishStageFailed(ctx, result, -1, "",
			fmt.Sprintf("render env: %v", err), pipeline, stage, logger)
	}

	// Разрешение секретов: все или ни одного. Команда при неудаче
	// не запускается; в ошибке — имя секрета, но не значение.
	secretValues, err := secrets.ResolveAll(ctx, r.provider, stage.Secrets)
	if err != nil {
		telemetry.SecretResolveFailures.Inc()
		return r.finishStageFailed(ctx, result, -1, "", err.Error(), pipeline, stage, logger)
	}
	defer secrets.Wipe(secretValues)

	// Секреты попадают к процессу только через окружение
	execEnv := make(map[string]string, len(env)+len(secretValues))
	for k, v := range env {
		execEnv[k] = v
	}
	for k, v := range secretValues {
		execEnv[k] = v
	}

	execResult, execErr := r.executor.Execute(ctx, ExecRequest{
		Command: command,
		Env:     execEnv,
		Workdir: stageWorkdir(spec, stage),
		Timeout: stageTimeout(spec, stage),
	})

	if execErr != nil {
		msg := secrets.Redact(execErr.Error(), secretValues)
		return r.finishStageFailed(ctx, result, -1, "", msg, pipeline, stage, logger)
	}

	// Хвост вывода редактируется перед сохранением: команда могла
	// напечатать креденшал в stdout
	outputTail := secrets.Redact(execResult.Output, secretValues)

	if execResult.TimedOut {
		msg := fmt.Sprintf("stage %q: timed out after %s", stage.Name, stageTimeout(spec, stage))
		return r.finishStageFailed(ctx, result, -1, outputTail, msg, pipeline, stage, logger)
	}

	if execResult.ExitCode != 0 {
		msg := fmt.Sprintf("stage %q: exit code %d", stage.Name, execResult.ExitCode)
		return r.finishStageFailed(ctx, result, execResult.ExitCode, outputTail, msg, pipeline, stage, logger)
	}

	result.MarkSucceeded(outputTail)
	if err := r.stageRepo.Update(ctx, result); err != nil {
		logger.Warn("failed to update stage to succeeded", "stage", stage.Name, "error", err)
	}

	telemetry.StageDuration.WithLabelValues(pipeline.Name, stage.Name).
		Observe(result.Duration().Seconds())

	logger.Info("stage succeeded",
		"stage", stage.Name,
		"duration", execResult.Duration,
	)
	return result
}

// finishStageFailed записывает FAILED результат стейджа.
func (r *Runner) finishStageFailed(
	ctx context.Context,
	result *domain.StageResult,
	exitCode int,
	outputTail, errMsg string,
	pipeline *domain.Pipeline,
	stage *domain.StageDef,
	logger *slog.Logger,
) *domain.StageResult {
	result.MarkFailed(exitCode, outputTail, errMsg)
	if err := r.stageRepo.Update(ctx, result); err != nil {
		logger.Warn("failed to update stage to failed", "stage", stage.Name, "error", err)
	}

	telemetry.StageFailures.WithLabelValues(pipeline.Name, stage.Name).Inc()
	telemetry.StageDuration.WithLabelValues(pipeline.Name, stage.Name).
		Observe(result.Duration().Seconds())

	logger.Warn("stage failed",
		"stage", stage.Name,
		"exit_code", exitCode,
		"error", errMsg,
	)
	return result
}

// publishCompletion публикует событие run.completed.
func (r *Runner) publishCompletion(ctx context.Context, run *domain.Run, pipeline *domain.Pipeline) {
	if r.publisher == nil {
		return
	}

	payload := mq.RunCompletedPayload{
		RunID:       run.ID,
		PipelineID:  run.PipelineID,
		Pipeline:    pipeline.Name,
		Status:      string(run.Status),
		FailedStage: run.FailedStage,
		DurationSec: run.Duration().Seconds(),
	}

	if err := r.publisher.PublishRunCompleted(ctx, payload); err != nil {
		// Не возвращаем ошибку — run уже в терминальном статусе в БД
		r.logger.Warn("failed to publish run.completed",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// notifyOnce отправляет единственное уведомление о завершённом run.
// Неудача доставки логируется и не влияет на статус run.
func (r *Runner) notifyOnce(
	ctx context.Context,
	run *domain.Run,
	pipeline *domain.Pipeline,
	spec *domain.PipelineSpec,
	results []domain.StageResult,
	logger *slog.Logger,
) {
	if r.notifier == nil {
		return
	}

	var policy *domain.NotifyPolicy
	if spec != nil {
		policy = spec.Notify
	}

	if !notify.ShouldNotify(policy, run.Status) {
		return
	}

	report := notify.BuildReport(run, pipeline, policy, results)
	if err := r.notifier.Notify(ctx, report); err != nil {
		logger.Warn("notification delivery failed",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// newStageResult создаёт StageResult в начальном состоянии.
func newStageResult(runID uuid.UUID, stageName string, position int) *domain.StageResult {
	return &domain.StageResult{
		ID:        uuid.New(),
		RunID:     runID,
		StageName: stageName,
		Position:  position,
		Status:    domain.StageStatusPending,
		ExitCode:  -1,
		CreatedAt: time.Now(),
	}
}

// stageTimeout возвращает таймаут стейджа с учётом defaults.
func stageTimeout(spec *domain.PipelineSpec, stage *domain.StageDef) time.Duration {
	sec := stage.TimeoutSec
	if sec <= 0 && spec.Defaults != nil {
		sec = spec.Defaults.TimeoutSec
	}
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec) * time.Second
}

// stageWorkdir возвращает рабочую директорию стейджа с учётом defaults.
func stageWorkdir(spec *domain.PipelineSpec, stage *domain.StageDef) string {
	if stage.Workdir != "" {
		return stage.Workdir
	}
	if spec.Defaults != nil {
		return spec.Defaults.Workdir
	}
	return ""
}
