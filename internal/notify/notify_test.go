package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
)

func testReport(status domain.RunStatus) *RunReport {
	report := &RunReport{
		RunID:    uuid.New(),
		Pipeline: "sentiment-deploy",
		Version:  3,
		Status:   status,
		Duration: 95 * time.Second,
		ExitCode: -1,
		Stages: []StageSummary{
			{Name: "checkout", Status: domain.StageStatusSucceeded, Duration: 2 * time.Second},
			{Name: "train", Status: domain.StageStatusSucceeded, Duration: 80 * time.Second},
		},
		Recipients: []string{"team@example.com"},
	}
	if status == domain.RunStatusFailed {
		report.FailedStage = "deploy"
		report.ExitCode = 1
		report.Error = "stage deploy: exit code 1"
		report.Stages = append(report.Stages,
			StageSummary{Name: "deploy", Status: domain.StageStatusFailed, ExitCode: 1},
			StageSummary{Name: "verify", Status: domain.StageStatusSkipped, ExitCode: -1},
		)
	}
	return report
}

func TestRenderMessage_Success(t *testing.T) {
	msg, err := RenderMessage(testReport(domain.RunStatusSucceeded))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(msg, "SUCCEEDED") {
		t.Errorf("success message should mention SUCCEEDED:\n%s", msg)
	}
	if !strings.Contains(msg, "sentiment-deploy") {
		t.Errorf("message should mention pipeline name:\n%s", msg)
	}
	if strings.Contains(msg, "Failed stage") {
		t.Errorf("success message should not mention failed stage:\n%s", msg)
	}
}

func TestRenderMessage_Failure(t *testing.T) {
	msg, err := RenderMessage(testReport(domain.RunStatusFailed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Сообщение о падении называет упавший стейдж и код выхода
	if !strings.Contains(msg, "deploy") {
		t.Errorf("failure message should name the failed stage:\n%s", msg)
	}
	if !strings.Contains(msg, "exit code 1") {
		t.Errorf("failure message should include exit code:\n%s", msg)
	}
	if !strings.Contains(msg, "SKIPPED") {
		t.Errorf("failure message should show skipped stages:\n%s", msg)
	}
}

func TestSubject(t *testing.T) {
	success := Subject(testReport(domain.RunStatusSucceeded))
	if !strings.Contains(success, "succeeded") {
		t.Errorf("unexpected success subject: %s", success)
	}

	failure := Subject(testReport(domain.RunStatusFailed))
	if !strings.Contains(failure, "deploy") {
		t.Errorf("failure subject should name the stage: %s", failure)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var received webhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	report := testReport(domain.RunStatusFailed)

	if err := n.Notify(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.Event != "run.completed" {
		t.Errorf("expected run.completed event, got %q", received.Event)
	}
	if received.Report.FailedStage != "deploy" {
		t.Errorf("report should carry failed stage, got %q", received.Report.FailedStage)
	}
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)

	err := n.Notify(context.Background(), testReport(domain.RunStatusSucceeded))
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestSMTPNotifier(t *testing.T) {
	var sentTo []string
	var sentMsg []byte

	n := NewSMTPNotifier(SMTPConfig{
		Addr: "localhost:25",
		From: "mlops@example.com",
	})
	n.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sentTo = to
		sentMsg = msg
		return nil
	}

	report := testReport(domain.RunStatusFailed)
	if err := n.Notify(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sentTo) != 1 || sentTo[0] != "team@example.com" {
		t.Errorf("unexpected recipients: %v", sentTo)
	}
	if !strings.Contains(string(sentMsg), "Subject: ") {
		t.Error("message should have a subject header")
	}
	if !strings.Contains(string(sentMsg), "deploy") {
		t.Error("message body should name the failed stage")
	}
}

func TestSMTPNotifier_NoRecipients(t *testing.T) {
	called := false

	n := NewSMTPNotifier(SMTPConfig{Addr: "localhost:25", From: "mlops@example.com"})
	n.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	report := testReport(domain.RunStatusSucceeded)
	report.Recipients = nil

	if err := n.Notify(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("no email should be sent without recipients")
	}
}

// failingNotifier всегда возвращает ошибку доставки.
type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, *RunReport) error {
	f.calls++
	return ErrDeliveryFailed
}

// okNotifier всегда успешен.
type okNotifier struct{ calls int }

func (o *okNotifier) Notify(context.Context, *RunReport) error {
	o.calls++
	return nil
}

func TestMulti_FailureDoesNotBlockOthers(t *testing.T) {
	failing := &failingNotifier{}
	ok := &okNotifier{}

	m := NewMulti(nil, failing, ok)

	err := m.Notify(context.Background(), testReport(domain.RunStatusSucceeded))
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("both transports should be attempted: %d, %d", failing.calls, ok.calls)
	}
}

func TestShouldNotify(t *testing.T) {
	no := false

	tests := []struct {
		name     string
		policy   *domain.NotifyPolicy
		status   domain.RunStatus
		expected bool
	}{
		{"nil policy success", nil, domain.RunStatusSucceeded, true},
		{"nil policy failure", nil, domain.RunStatusFailed, true},
		{"success disabled", &domain.NotifyPolicy{OnSuccess: &no}, domain.RunStatusSucceeded, false},
		{"failure disabled", &domain.NotifyPolicy{OnFailure: &no}, domain.RunStatusFailed, false},
		{"cancelled counts as failure", &domain.NotifyPolicy{OnSuccess: &no}, domain.RunStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.policy, tt.status); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
