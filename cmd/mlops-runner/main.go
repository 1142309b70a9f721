// MLOps Runner — выполняет deployment runs.
//
// Runner:
//   - Получает pending runs из RabbitMQ (или поллингом из базы)
//   - Выполняет стейджи строго последовательно, fail-fast
//   - Разрешает секреты стейджа перед его запуском и затирает после
//   - Отправляет ровно одно уведомление по завершении run
//
// Runners масштабируются горизонтально: каждый run целиком
// выполняется одним runner.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/mq"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/notify"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/repo"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/runner"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/secrets"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting mlops-runner")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	stageRepo := repo.NewStageRepo(pool)
	pipelineRepo := repo.NewPipelineRepo(pool)

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Секреты: файл (если задан) имеет приоритет над окружением
	provider := buildSecretProvider()

	// Уведомления: webhook и/или SMTP, в зависимости от окружения
	notifier := buildNotifier(logger, provider)

	// Создаём runner
	rn := runner.New(runner.Config{
		RunRepo:      runRepo,
		StageRepo:    stageRepo,
		PipelineRepo: pipelineRepo,
		Publisher:    publisher,
		Conn:         mqConn,
		Provider:     provider,
		Notifier:     notifier,
		Logger:       logger,
	})

	// Запускаем runner
	if err := rn.Start(ctx); err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем runner
	rn.Stop()
	logger.Info("mlops-runner stopped")
}

// buildSecretProvider собирает цепочку провайдеров секретов.
// MLOPS_SECRETS_FILE добавляет файловый провайдер перед окружением.
func buildSecretProvider() secrets.Provider {
	envProvider := secrets.NewEnvProvider("")

	if path := os.Getenv("MLOPS_SECRETS_FILE"); path != "" {
		return secrets.NewChain(secrets.NewFileProvider(path), envProvider)
	}
	return envProvider
}

// buildNotifier собирает notifier из окружения.
// NOTIFY_WEBHOOK_URL включает webhook, NOTIFY_SMTP_ADDR и NOTIFY_SMTP_FROM — почту.
// Без обоих runner работает, но уведомлений не отправляет.
func buildNotifier(logger *slog.Logger, provider secrets.Provider) notify.Notifier {
	var notifiers []notify.Notifier

	if url := os.Getenv("NOTIFY_WEBHOOK_URL"); url != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(url, logger))
	}

	if addr := os.Getenv("NOTIFY_SMTP_ADDR"); addr != "" {
		notifiers = append(notifiers, notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     addr,
			From:     os.Getenv("NOTIFY_SMTP_FROM"),
			Provider: provider,
			Logger:   logger,
		}))
	}

	switch len(notifiers) {
	case 0:
		logger.Warn("no notifier configured, run notifications disabled")
		return nil
	case 1:
		return notifiers[0]
	default:
		return notify.NewMulti(logger, notifiers...)
	}
}
