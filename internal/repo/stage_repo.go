package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
)

// StageRepo — репозиторий для работы с результатами стейджей.
type StageRepo struct {
	pool *pgxpool.Pool
}

// NewStageRepo создаёт новый StageRepo.
func NewStageRepo(pool *pgxpool.Pool) *StageRepo {
	return &StageRepo{pool: pool}
}

// Create создаёт запись результата стейджа.
func (r *StageRepo) Create(ctx context.Context, s *domain.StageResult) error {
	query := `
		INSERT INTO stage_results (id, run_id, stage_name, position, status,
		                           exit_code, output_tail, error,
		                           started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.RunID,
		s.StageName,
		s.Position,
		string(s.Status),
		s.ExitCode,
		nullString(s.OutputTail),
		nullString(s.Error),
		s.StartedAt,
		s.FinishedAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	return nil
}

// Update обновляет результат стейджа.
func (r *StageRepo) Update(ctx context.Context, s *domain.StageResult) error {
	query := `
		UPDATE stage_results
		SET status = $2, exit_code = $3, output_tail = $4, error = $5,
		    started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		string(s.Status),
		s.ExitCode,
		nullString(s.OutputTail),
		nullString(s.Error),
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update stage result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает результат стейджа по ID.
func (r *StageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StageResult, error) {
	query := `
		SELECT id, run_id, stage_name, position, status, exit_code,
		       output_tail, error, started_at, finished_at, created_at
		FROM stage_results
		WHERE id = $1
	`
	return r.scanStage(r.pool.QueryRow(ctx, query, id))
}

// ListByRun возвращает результаты всех стейджей run в порядке выполнения.
func (r *StageRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StageResult, error) {
	query := `
		SELECT id, run_id, stage_name, position, status, exit_code,
		       output_tail, error, started_at, finished_at, created_at
		FROM stage_results
		WHERE run_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	var results []domain.StageResult
	for rows.Next() {
		s, err := r.scanStage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *s)
	}
	return results, rows.Err()
}

// scanStage сканирует одну строку в StageResult.
func (r *StageRepo) scanStage(row pgx.Row) (*domain.StageResult, error) {
	var s domain.StageResult
	var outputTail, stageError *string

	err := row.Scan(
		&s.ID,
		&s.RunID,
		&s.StageName,
		&s.Position,
		&s.Status,
		&s.ExitCode,
		&outputTail,
		&stageError,
		&s.StartedAt,
		&s.FinishedAt,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stage result: %w", err)
	}

	if outputTail != nil {
		s.OutputTail = *outputTail
	}
	if stageError != nil {
		s.Error = *stageError
	}

	return &s, nil
}
