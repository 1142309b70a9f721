package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"syscall"
	"time"
)

// maxOutputTail — сколько байт хвоста stdout+stderr сохраняется
// в результате стейджа.
const maxOutputTail = 16 * 1024

// ExecRequest — запрос на выполнение команды стейджа.
type ExecRequest struct {
	// Command — отрендеренная команда (секретов в ней нет).
	Command string

	// Env — дополнительные переменные окружения: env стейджа
	// плюс разрешённые секреты. Добавляются к окружению процесса.
	Env map[string]string

	// Workdir — рабочая директория команды. Пустая — cwd процесса.
	Workdir string

	// Timeout — таймаут выполнения. 0 — без таймаута.
	Timeout time.Duration
}

// ExecResult — результат выполнения команды.
type ExecResult struct {
	// ExitCode — код выхода команды.
	ExitCode int

	// Output — хвост объединённого stdout+stderr
	// (не более maxOutputTail байт, значения секретов НЕ вычищены —
	// это делает вызывающая сторона).
	Output string

	// TimedOut — true, если команда была убита по таймауту.
	TimedOut bool

	// Duration — время выполнения команды.
	Duration time.Duration
}

// Executor выполняет команду стейджа.
//
// Ненулевой код выхода — не ошибка Execute: он возвращается
// в ExecResult. Ошибка означает, что команду не удалось запустить
// или дождаться.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (*ExecResult, error)
}

// CommandExecutor выполняет команды через `sh -c`.
//
// Вывод команды для executor'а непрозрачен: наблюдается только
// код выхода. Хвост вывода сохраняется для диагностики.
type CommandExecutor struct{}

// NewCommandExecutor создаёт CommandExecutor.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{}
}

// Execute запускает команду и ждёт её завершения.
func (e *CommandExecutor) Execute(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("empty command")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", req.Command)
	cmd.Dir = req.Workdir
	cmd.Env = append(os.Environ(), flattenEnv(req.Env)...)

	// Команда запускается в своей process group: по таймауту убивается
	// вся группа, а не только sh. Иначе дочерние процессы команды
	// (docker build, фоновые помощники) переживают kill и держат runner.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	// Если осиротевший процесс держит pipe открытым, Wait всё равно
	// возвращается после WaitDelay.
	cmd.WaitDelay = 5 * time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Output:   tail(output.Bytes(), maxOutputTail),
		Duration: duration,
	}

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	// Таймаут: процесс убит по истечении контекста
	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	// Команду не удалось запустить (нет sh, нет workdir и т.п.)
	return nil, fmt.Errorf("start command: %w", err)
}

// flattenEnv превращает map окружения в срез KEY=VALUE.
// Порядок детерминирован для воспроизводимости.
func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flat := make([]string, 0, len(keys))
	for _, k := range keys {
		flat = append(flat, k+"="+env[k])
	}
	return flat
}

// tail возвращает последние max байт вывода.
func tail(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[len(b)-max:])
}
