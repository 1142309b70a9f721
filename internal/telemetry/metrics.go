package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики runner'а и notifier'а.
// Регистрируются в default registry; отдаются через promhttp.Handler().
var (
	// RunsTotal — завершённые runs по терминальному статусу.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlops_runs_total",
		Help: "Completed pipeline runs by terminal status",
	}, []string{"pipeline", "status"})

	// StageDuration — длительность выполнения стейджей.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlops_stage_duration_seconds",
		Help:    "Stage command execution duration",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	}, []string{"pipeline", "stage"})

	// StageFailures — упавшие стейджи.
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlops_stage_failures_total",
		Help: "Failed stages by pipeline and stage name",
	}, []string{"pipeline", "stage"})

	// SecretResolveFailures — неразрешённые секреты.
	SecretResolveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlops_secret_resolve_failures_total",
		Help: "Stage secret resolution failures",
	})

	// NotificationsTotal — отправленные уведомления по результату доставки.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlops_notifications_total",
		Help: "Notification deliveries by transport and outcome",
	}, []string{"transport", "outcome"})
)
