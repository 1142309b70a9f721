package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// Шаблоны сообщений. Один из двух выбирается по статусу run.
const (
	successTemplate = `Pipeline {{ .Pipeline }} (v{{ .Version }}) — SUCCEEDED

Run:      {{ .RunID }}
Duration: {{ formatDuration .Duration }}

Stages:
{{- range .Stages }}
  {{ printf "%-20s" .Name }} {{ .Status }} ({{ formatDuration .Duration }})
{{- end }}
`

	failureTemplate = `Pipeline {{ .Pipeline }} (v{{ .Version }}) — {{ .Status }}

Run:          {{ .RunID }}
{{- if .FailedStage }}
Failed stage: {{ .FailedStage }} (exit code {{ .ExitCode }})
{{- end }}
{{- if .Error }}
Error:        {{ .Error }}
{{- end }}
Duration:     {{ formatDuration .Duration }}

Stages:
{{- range .Stages }}
  {{ printf "%-20s" .Name }} {{ .Status }}{{ if eq (printf "%s" .Status) "FAILED" }} (exit code {{ .ExitCode }}){{ end }}
{{- end }}
`
)

// messageFuncs — функции для шаблонов сообщений.
var messageFuncs = template.FuncMap{
	"formatDuration": func(d time.Duration) string {
		return d.Round(time.Second).String()
	},
}

var (
	successTmpl = template.Must(template.New("success").Funcs(messageFuncs).Parse(successTemplate))
	failureTmpl = template.Must(template.New("failure").Funcs(messageFuncs).Parse(failureTemplate))
)

// Subject возвращает тему письма для отчёта.
func Subject(report *RunReport) string {
	if report.Succeeded() {
		return fmt.Sprintf("[mlops] %s: run succeeded", report.Pipeline)
	}
	if report.FailedStage != "" {
		return fmt.Sprintf("[mlops] %s: run failed at stage %q", report.Pipeline, report.FailedStage)
	}
	return fmt.Sprintf("[mlops] %s: run %s", report.Pipeline, report.Status)
}

// RenderMessage рендерит текст уведомления по статусу run.
func RenderMessage(report *RunReport) (string, error) {
	tmpl := failureTmpl
	if report.Succeeded() {
		tmpl = successTmpl
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("render notification message: %w", err)
	}
	return buf.String(), nil
}
