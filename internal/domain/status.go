package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все стейджи завершились с кодом 0.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы один стейдж завершился ненулевым кодом
	// или его секреты не разрешились.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run отменён пользователем.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// StageStatus — статус выполнения одного стейджа внутри run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	        ↘ SKIPPED (стейджи после упавшего не выполняются)
type StageStatus string

const (
	// StageStatusPending — стейдж ещё не начал выполняться.
	StageStatusPending StageStatus = "PENDING"

	// StageStatusRunning — команда стейджа выполняется.
	StageStatusRunning StageStatus = "RUNNING"

	// StageStatusSucceeded — команда завершилась с кодом 0.
	StageStatusSucceeded StageStatus = "SUCCEEDED"

	// StageStatusFailed — команда завершилась ненулевым кодом
	// или не запустилась (секрет не разрешился, таймаут).
	StageStatusFailed StageStatus = "FAILED"

	// StageStatusSkipped — стейдж не выполнялся, потому что
	// предыдущий стейдж упал или run был отменён.
	StageStatusSkipped StageStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageStatusSucceeded, StageStatusFailed, StageStatusSkipped:
		return true
	default:
		return false
	}
}
