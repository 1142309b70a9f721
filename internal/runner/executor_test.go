package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCommandExecutor_Success(t *testing.T) {
	executor := NewCommandExecutor()

	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: "echo hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Errorf("output should contain command stdout: %q", result.Output)
	}
}

func TestCommandExecutor_NonZeroExit(t *testing.T) {
	executor := NewCommandExecutor()

	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: "echo boom >&2; exit 7",
	})
	if err != nil {
		t.Fatalf("non-zero exit is not an executor error: %v", err)
	}

	if result.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %d", result.ExitCode)
	}
	// stderr тоже попадает в хвост вывода
	if !strings.Contains(result.Output, "boom") {
		t.Errorf("output should contain stderr: %q", result.Output)
	}
}

func TestCommandExecutor_EnvInjection(t *testing.T) {
	executor := NewCommandExecutor()

	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: `printf '%s' "$DEPLOY_TOKEN"`,
		Env:     map[string]string{"DEPLOY_TOKEN": "tok-123"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Output != "tok-123" {
		t.Errorf("env variable should reach the command, got %q", result.Output)
	}
}

func TestCommandExecutor_Timeout(t *testing.T) {
	executor := NewCommandExecutor()

	start := time.Now()
	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: "sleep 10",
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("timeout is not an executor error: %v", err)
	}

	if !result.TimedOut {
		t.Error("expected TimedOut to be set")
	}
	if result.ExitCode != -1 {
		t.Errorf("expected exit code -1 for timed out command, got %d", result.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command should be killed by timeout, took %s", elapsed)
	}
}

func TestCommandExecutor_TimeoutKillsDescendants(t *testing.T) {
	executor := NewCommandExecutor()

	// Фоновый потомок наследует pipe вывода: если убить только sh,
	// Wait висит до естественного завершения sleep.
	start := time.Now()
	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: "sleep 30 & wait",
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("timeout is not an executor error: %v", err)
	}

	if !result.TimedOut {
		t.Error("expected TimedOut to be set")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("whole process group should die on timeout, took %s", elapsed)
	}
}

func TestCommandExecutor_Workdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("found"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := NewCommandExecutor()

	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: "cat marker.txt",
		Workdir: dir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Output != "found" {
		t.Errorf("command should run in the workdir, got %q", result.Output)
	}
}

func TestCommandExecutor_OutputTailBounded(t *testing.T) {
	executor := NewCommandExecutor()

	// Генерируем вывод заметно больше лимита
	result, err := executor.Execute(context.Background(), ExecRequest{
		Command: `i=0; while [ $i -lt 2000 ]; do echo "line $i padding padding padding"; i=$((i+1)); done; echo LAST`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Output) > maxOutputTail {
		t.Errorf("output tail should be bounded to %d bytes, got %d", maxOutputTail, len(result.Output))
	}
	// Сохраняется именно хвост
	if !strings.Contains(result.Output, "LAST") {
		t.Error("tail should keep the end of the output")
	}
}

func TestCommandExecutor_EmptyCommand(t *testing.T) {
	executor := NewCommandExecutor()

	if _, err := executor.Execute(context.Background(), ExecRequest{}); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestFlattenEnv_Deterministic(t *testing.T) {
	env := map[string]string{"B": "2", "A": "1", "C": "3"}

	flat := flattenEnv(env)
	expected := []string{"A=1", "B=2", "C=3"}

	if len(flat) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(flat))
	}
	for i, want := range expected {
		if flat[i] != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, flat[i])
		}
	}
}

func TestTail(t *testing.T) {
	if got := tail([]byte("short"), 10); got != "short" {
		t.Errorf("short input should pass through, got %q", got)
	}
	if got := tail([]byte("0123456789"), 4); got != "6789" {
		t.Errorf("expected last 4 bytes, got %q", got)
	}
}
