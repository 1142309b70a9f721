package runner

import "errors"

// Ошибки runner'а.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run не в статусе PENDING
	// (уже выполняется, завершён или отменён).
	ErrRunNotPending = errors.New("run is not pending")

	// ErrPipelineNotFound — pipeline или его версия не найдены.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrStageFailed — стейдж завершился с ненулевым кодом выхода.
	ErrStageFailed = errors.New("stage failed")

	// ErrRunCancelled — run был отменён во время выполнения.
	ErrRunCancelled = errors.New("run cancelled")
)
