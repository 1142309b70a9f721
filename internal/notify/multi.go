package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Multi доставляет отчёт через несколько транспортов.
//
// Неудача одного транспорта не мешает остальным: каждый получает
// свою попытку, ошибки собираются в одну через errors.Join.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMulti создаёт fan-out notifier.
func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Notify отправляет отчёт всеми транспортами.
func (m *Multi) Notify(ctx context.Context, report *RunReport) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, report); err != nil {
			m.logger.Warn("notification transport failed",
				"run_id", report.RunID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
