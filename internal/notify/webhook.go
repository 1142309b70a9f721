package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/telemetry"
)

// WebhookNotifier доставляет отчёт POST-запросом с JSON-телом.
//
// URL берётся из NotifyPolicy pipeline (report формируется с ним
// отдельно) либо задаётся статически при создании. Ответ с кодом
// 2xx считается успешной доставкой.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier создаёт WebhookNotifier.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// webhookPayload — тело POST-запроса.
type webhookPayload struct {
	Event   string     `json:"event"`
	Report  *RunReport `json:"report"`
	Message string     `json:"message"`
}

// Notify отправляет отчёт POST-запросом.
func (n *WebhookNotifier) Notify(ctx context.Context, report *RunReport) error {
	if n.url == "" {
		return nil
	}

	message, err := RenderMessage(report)
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	body, err := json.Marshal(webhookPayload{
		Event:   "run.completed",
		Report:  report,
		Message: message,
	})
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		return fmt.Errorf("%w: webhook responded with %d", ErrDeliveryFailed, resp.StatusCode)
	}

	telemetry.NotificationsTotal.WithLabelValues("webhook", "ok").Inc()
	n.logger.Info("webhook notification sent",
		"run_id", report.RunID,
		"status_code", resp.StatusCode,
	)
	return nil
}
