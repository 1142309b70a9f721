package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/secrets"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/telemetry"
)

// Имена секретов с SMTP-креденшалами.
const (
	secretSMTPUser     = "SMTP_USER"
	secretSMTPPassword = "SMTP_PASSWORD"
)

// SMTPNotifier доставляет отчёт письмом.
//
// Креденшалы SMTP не хранятся в конфигурации: они разрешаются
// через secrets.Provider на каждую отправку и не переживают её.
// Если секреты не заданы, письмо отправляется без аутентификации
// (локальный relay).
type SMTPNotifier struct {
	addr     string // host:port SMTP-сервера
	from     string
	provider secrets.Provider
	logger   *slog.Logger

	// sendMail подменяется в тестах.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// SMTPConfig — конфигурация SMTPNotifier.
type SMTPConfig struct {
	// Addr — адрес SMTP-сервера (host:port).
	Addr string

	// From — адрес отправителя.
	From string

	// Provider — источник SMTP-креденшалов.
	Provider secrets.Provider

	// Logger — логгер.
	Logger *slog.Logger
}

// NewSMTPNotifier создаёт SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{
		addr:     cfg.Addr,
		from:     cfg.From,
		provider: cfg.Provider,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Notify отправляет отчёт письмом получателям из report.Recipients.
func (n *SMTPNotifier) Notify(ctx context.Context, report *RunReport) error {
	if len(report.Recipients) == 0 {
		n.logger.Debug("no recipients configured, skipping email", "run_id", report.RunID)
		return nil
	}

	body, err := RenderMessage(report)
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("smtp", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	msg := buildMessage(n.from, report.Recipients, Subject(report), body)

	auth, err := n.auth(ctx)
	if err != nil {
		telemetry.NotificationsTotal.WithLabelValues("smtp", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	if err := n.sendMail(n.addr, auth, n.from, report.Recipients, msg); err != nil {
		telemetry.NotificationsTotal.WithLabelValues("smtp", "error").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	telemetry.NotificationsTotal.WithLabelValues("smtp", "ok").Inc()
	n.logger.Info("email notification sent",
		"run_id", report.RunID,
		"recipients", len(report.Recipients),
	)
	return nil
}

// auth собирает smtp.Auth из секретов.
// Отсутствие секретов — не ошибка: отправка без аутентификации.
func (n *SMTPNotifier) auth(ctx context.Context) (smtp.Auth, error) {
	if n.provider == nil {
		return nil, nil
	}

	user, err := n.provider.Resolve(ctx, secretSMTPUser)
	if err != nil {
		return nil, nil
	}

	password, err := n.provider.Resolve(ctx, secretSMTPPassword)
	if err != nil {
		return nil, nil
	}

	host := n.addr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	return smtp.PlainAuth("", user, password, host), nil
}

// buildMessage собирает RFC 822 сообщение.
func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
