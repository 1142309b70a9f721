package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputsJSON, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO runs (id, pipeline_id, version, status, inputs,
		                  idempotency_key, triggered_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.PipelineID,
		run.Version,
		string(run.Status),
		inputsJSON,
		nullString(run.IdempotencyKey),
		nullString(run.TriggeredBy),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, pipeline_id, version, status, inputs, started_at, finished_at,
		       failed_stage, error, idempotency_key, triggered_by, created_at
		FROM runs
		WHERE id = $1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
// Используется для дедупликации webhook-доставок и scheduled runs.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, pipelineID uuid.UUID, key string) (*domain.Run, error) {
	query := `
		SELECT id, pipeline_id, version, status, inputs, started_at, finished_at,
		       failed_stage, error, idempotency_key, triggered_by, created_at
		FROM runs
		WHERE pipeline_id = $1 AND idempotency_key = $2
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, pipelineID, key))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := `
		SELECT id, pipeline_id, version, status, inputs, started_at, finished_at,
		       failed_stage, error, idempotency_key, triggered_by, created_at
		FROM runs
		WHERE ($1::uuid IS NULL OR pipeline_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.PipelineID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Update обновляет run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $2, started_at = $3, finished_at = $4, failed_stage = $5, error = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		string(run.Status),
		run.StartedAt,
		run.FinishedAt,
		nullString(run.FailedStage),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim атомарно забирает PENDING run, переводя его в RUNNING.
// Из конкурирующих runner'ов (consumer и poll loop одного процесса
// либо несколько реплик) run достаётся ровно одному; остальные
// получают ErrInvalidState.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	query := `
		UPDATE runs
		SET status = 'RUNNING', started_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`
	result, err := r.pool.Exec(ctx, query, id, startedAt)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ListPending возвращает runs в статусе PENDING.
// Polling fallback для runner'а на случай недоступности RabbitMQ.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `
		SELECT id, pipeline_id, version, status, inputs, started_at, finished_at,
		       failed_stage, error, idempotency_key, triggered_by, created_at
		FROM runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetStatus возвращает только статус run.
// Runner перечитывает статус между стейджами, чтобы заметить отмену.
func (r *RunRepo) GetStatus(ctx context.Context, id uuid.UUID) (domain.RunStatus, error) {
	query := `SELECT status FROM runs WHERE id = $1`

	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get run status: %w", err)
	}
	return domain.RunStatus(status), nil
}

// RequestCancel переводит run в CANCELLED, если он PENDING,
// или помечает RUNNING run на отмену (runner заметит между стейджами).
func (r *RunRepo) RequestCancel(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case domain.RunStatusPending:
		run.MarkCancelled()
		if err := r.Update(ctx, run); err != nil {
			return nil, err
		}
		return run, nil

	case domain.RunStatusRunning:
		// Терминальный статус выставит runner после текущего стейджа
		query := `UPDATE runs SET status = $2 WHERE id = $1 AND status = 'RUNNING'`
		if _, err := r.pool.Exec(ctx, query, id, string(domain.RunStatusCancelled)); err != nil {
			return nil, fmt.Errorf("request cancel: %w", err)
		}
		run.Status = domain.RunStatusCancelled
		return run, nil

	default:
		return nil, ErrInvalidState
	}
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	PipelineID *uuid.UUID
	Status     domain.RunStatus
	Limit      int
	Offset     int
}

// scanRun сканирует одну строку в Run.
func (r *RunRepo) scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var inputsJSON []byte
	var failedStage, runError, idempotencyKey, triggeredBy *string

	err := row.Scan(
		&run.ID,
		&run.PipelineID,
		&run.Version,
		&run.Status,
		&inputsJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&failedStage,
		&runError,
		&idempotencyKey,
		&triggeredBy,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &run.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}

	if failedStage != nil {
		run.FailedStage = *failedStage
	}
	if runError != nil {
		run.Error = *runError
	}
	if idempotencyKey != nil {
		run.IdempotencyKey = *idempotencyKey
	}
	if triggeredBy != nil {
		run.TriggeredBy = *triggeredBy
	}

	return &run, nil
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
