package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/mq"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/notify"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/secrets"
)

// RunStore — операции над runs, нужные runner'у.
// Реализуется repo.RunRepo.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	Update(ctx context.Context, run *domain.Run) error
	GetStatus(ctx context.Context, id uuid.UUID) (domain.RunStatus, error)
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
}

// StageStore — операции над результатами стейджей.
// Реализуется repo.StageRepo.
type StageStore interface {
	Create(ctx context.Context, s *domain.StageResult) error
	Update(ctx context.Context, s *domain.StageResult) error
}

// PipelineStore — чтение pipelines и их версий.
// Реализуется repo.PipelineRepo.
type PipelineStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error)
	GetVersion(ctx context.Context, pipelineID uuid.UUID, version int) (*domain.PipelineVersion, error)
}

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 20
	defaultPrefetch     = 1
)

// Runner выполняет pending runs.
type Runner struct {
	// Repositories
	runRepo      RunStore
	stageRepo    StageStore
	pipelineRepo PipelineStore

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Execution
	executor Executor
	provider secrets.Provider
	notifier notify.Notifier

	// Consumer
	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Runner.
type Config struct {
	// Repositories
	RunRepo      RunStore
	StageRepo    StageStore
	PipelineRepo PipelineStore

	// MQ (Conn может быть nil — тогда работает только polling)
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Executor (опционально; если nil — используется CommandExecutor)
	Executor Executor

	// Provider — источник секретов стейджей.
	Provider secrets.Provider

	// Notifier — транспорт уведомлений о завершённых runs.
	Notifier notify.Notifier

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 20)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executor := cfg.Executor
	if executor == nil {
		executor = NewCommandExecutor()
	}

	return &Runner{
		runRepo:      cfg.RunRepo,
		stageRepo:    cfg.StageRepo,
		pipelineRepo: cfg.PipelineRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		executor:     executor,
		provider:     cfg.Provider,
		notifier:     cfg.Notifier,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Runner.
//
// Запускает:
//   - Consumer для runs.pending (если доступен MQ)
//   - Polling горутину для fallback
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting runner",
		"poll_interval", r.pollInterval,
		"batch_size", r.batchSize,
	)

	if r.conn != nil {
		// Prefetch=1: run занимает runner надолго, забирать впрок нельзя
		r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  r.handleRunPending,
			Prefetch: defaultPrefetch,
		})

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("run consumer error", "error", err)
			}
		}()
	} else {
		r.logger.Warn("mq connection not available, running in polling-only mode")
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pollLoop(ctx)
	}()

	r.logger.Info("runner started")
	return nil
}

// Stop останавливает Runner.
func (r *Runner) Stop() {
	r.stoppedMu.Lock()
	r.stopped = true
	r.stoppedMu.Unlock()

	r.logger.Info("stopping runner...")

	if r.cancelFunc != nil {
		r.cancelFunc()
	}

	if r.consumer != nil {
		r.consumer.Stop()
	}

	r.wg.Wait()

	r.logger.Info("runner stopped")
}

// IsStopped проверяет, остановлен ли Runner.
func (r *Runner) IsStopped() bool {
	r.stoppedMu.RLock()
	defer r.stoppedMu.RUnlock()
	return r.stopped
}

// handleRunPending обрабатывает событие о новом run из очереди runs.pending.
func (r *Runner) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse run.pending payload", "error", err)
		return err
	}

	r.logger.Debug("received run.pending event", "run_id", payload.RunID)

	if err := r.processRun(ctx, payload.RunID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrRunNotPending) {
			r.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		r.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// pollLoop — цикл polling для fallback.
func (r *Runner) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (r *Runner) poll(ctx context.Context) {
	runs, err := r.runRepo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list pending runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	r.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if err := r.processRun(ctx, run.ID); err != nil {
			if errors.Is(err, ErrRunNotPending) {
				continue
			}
			r.logger.Error("failed to process run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}
