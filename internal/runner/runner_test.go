package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/notify"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/repo"
	"github.com/PraveenPeterJay/sentiment-mlops/internal/secrets"
)

// --- Fakes ---

type fakeRunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*domain.Run

	// cancelAfterStatusCalls — с какого по счёту вызова GetStatus
	// возвращать CANCELLED (0 — никогда).
	cancelAfterStatusCalls int
	statusCalls            int
}

func newFakeRunStore(runs ...*domain.Run) *fakeRunStore {
	s := &fakeRunStore{runs: make(map[uuid.UUID]*domain.Run)}
	for _, r := range runs {
		copied := *r
		s.runs[r.ID] = &copied
	}
	return s
}

func (s *fakeRunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (s *fakeRunStore) Claim(_ context.Context, id uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunStatusPending {
		return repo.ErrInvalidState
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt
	return nil
}

func (s *fakeRunStore) Update(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *fakeRunStore) GetStatus(_ context.Context, id uuid.UUID) (domain.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.cancelAfterStatusCalls > 0 && s.statusCalls >= s.cancelAfterStatusCalls {
		return domain.RunStatusCancelled, nil
	}
	run, ok := s.runs[id]
	if !ok {
		return "", repo.ErrNotFound
	}
	return run.Status, nil
}

func (s *fakeRunStore) ListPending(_ context.Context, _ int) ([]domain.Run, error) {
	return nil, nil
}

func (s *fakeRunStore) stored(id uuid.UUID) *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

type fakeStageStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]*domain.StageResult
	order   []uuid.UUID
}

func newFakeStageStore() *fakeStageStore {
	return &fakeStageStore{results: make(map[uuid.UUID]*domain.StageResult)}
}

func (s *fakeStageStore) Create(_ context.Context, r *domain.StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.results[r.ID] = &copied
	s.order = append(s.order, r.ID)
	return nil
}

func (s *fakeStageStore) Update(_ context.Context, r *domain.StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.results[r.ID] = &copied
	return nil
}

// all возвращает сохранённые результаты в порядке создания.
func (s *fakeStageStore) all() []domain.StageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StageResult, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.results[id])
	}
	return out
}

type fakePipelineStore struct {
	pipeline *domain.Pipeline
	version  *domain.PipelineVersion
}

func (s *fakePipelineStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	if s.pipeline == nil || s.pipeline.ID != id {
		return nil, repo.ErrNotFound
	}
	return s.pipeline, nil
}

func (s *fakePipelineStore) GetVersion(_ context.Context, pipelineID uuid.UUID, version int) (*domain.PipelineVersion, error) {
	if s.version == nil || s.version.PipelineID != pipelineID || s.version.Version != version {
		return nil, repo.ErrNotFound
	}
	return s.version, nil
}

// fakeExecutor записывает запросы и возвращает заскриптованные результаты.
type fakeExecutor struct {
	mu       sync.Mutex
	requests []ExecRequest

	// exitCodes — код выхода по тексту команды. Отсутствие — успех.
	exitCodes map[string]int

	// output — вывод по тексту команды.
	output map[string]string
}

func (e *fakeExecutor) Execute(_ context.Context, req ExecRequest) (*ExecResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)

	result := &ExecResult{Duration: time.Millisecond}
	if e.output != nil {
		result.Output = e.output[req.Command]
	}
	if e.exitCodes != nil {
		result.ExitCode = e.exitCodes[req.Command]
	}
	return result, nil
}

func (e *fakeExecutor) commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.requests))
	for i, req := range e.requests {
		out[i] = req.Command
	}
	return out
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []*notify.RunReport
}

func (n *fakeNotifier) Notify(_ context.Context, report *notify.RunReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

type fakeProvider struct {
	values map[string]string
}

func (p *fakeProvider) Resolve(_ context.Context, name string) (string, error) {
	value, ok := p.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, name)
	}
	return value, nil
}

// --- Helpers ---

func testPipeline(stages ...domain.StageDef) (*domain.Pipeline, *domain.PipelineVersion) {
	pipeline := &domain.Pipeline{
		ID:       uuid.New(),
		Name:     "sentiment-deploy",
		IsActive: true,
	}
	version := &domain.PipelineVersion{
		PipelineID: pipeline.ID,
		Version:    1,
		Spec: domain.PipelineSpec{
			Name:   pipeline.Name,
			Stages: stages,
		},
	}
	return pipeline, version
}

func testRun(pipelineID uuid.UUID) *domain.Run {
	return &domain.Run{
		ID:         uuid.New(),
		PipelineID: pipelineID,
		Version:    1,
		Status:     domain.RunStatusPending,
		CreatedAt:  time.Now(),
	}
}

type testEnv struct {
	runner    *Runner
	runStore  *fakeRunStore
	stages    *fakeStageStore
	executor  *fakeExecutor
	notifier  *fakeNotifier
	provider  *fakeProvider
	run       *domain.Run
}

func newTestEnv(t *testing.T, stageDefs []domain.StageDef, opts ...func(*testEnv)) *testEnv {
	t.Helper()

	pipeline, version := testPipeline(stageDefs...)
	run := testRun(pipeline.ID)

	env := &testEnv{
		runStore: newFakeRunStore(run),
		stages:   newFakeStageStore(),
		executor: &fakeExecutor{},
		notifier: &fakeNotifier{},
		provider: &fakeProvider{values: map[string]string{}},
		run:      run,
	}
	for _, opt := range opts {
		opt(env)
	}

	env.runner = New(Config{
		RunRepo:      env.runStore,
		StageRepo:    env.stages,
		PipelineRepo: &fakePipelineStore{pipeline: pipeline, version: version},
		Executor:     env.executor,
		Provider:     env.provider,
		Notifier:     env.notifier,
	})
	return env
}

// --- Tests ---

func TestProcessRun_AllStagesSucceed(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
		{Name: "train", Command: "python train.py"},
		{Name: "deploy", Command: "kubectl apply -f deploy.yaml"},
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := env.runStore.stored(env.run.ID)
	if run.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
	if run.FinishedAt == nil {
		t.Error("finished run should have FinishedAt")
	}

	results := env.stages.all()
	if len(results) != 3 {
		t.Fatalf("expected 3 stage results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != domain.StageStatusSucceeded {
			t.Errorf("stage %s: expected SUCCEEDED, got %s", r.StageName, r.Status)
		}
	}

	// Ровно одно уведомление
	if env.notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", env.notifier.count())
	}
	if !env.notifier.reports[0].Succeeded() {
		t.Error("report should reflect success")
	}
}

func TestProcessRun_FailFast(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
		{Name: "train", Command: "python train.py"},
		{Name: "build", Command: "docker build ."},
		{Name: "deploy", Command: "kubectl apply -f deploy.yaml"},
	}, func(e *testEnv) {
		e.executor.exitCodes = map[string]int{"python train.py": 3}
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := env.runStore.stored(env.run.ID)
	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
	if run.FailedStage != "train" {
		t.Errorf("expected failed stage train, got %q", run.FailedStage)
	}

	// Стейджи после упавшего не запускались
	commands := env.executor.commands()
	if len(commands) != 2 {
		t.Fatalf("expected 2 executed commands, got %d: %v", len(commands), commands)
	}

	// Но зафиксированы как SKIPPED
	results := env.stages.all()
	if len(results) != 4 {
		t.Fatalf("expected 4 stage results, got %d", len(results))
	}
	expected := []domain.StageStatus{
		domain.StageStatusSucceeded,
		domain.StageStatusFailed,
		domain.StageStatusSkipped,
		domain.StageStatusSkipped,
	}
	for i, want := range expected {
		if results[i].Status != want {
			t.Errorf("stage %s: expected %s, got %s", results[i].StageName, want, results[i].Status)
		}
	}

	// Ровно одно уведомление, с упавшим стейджем и кодом выхода
	if env.notifier.count() != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", env.notifier.count())
	}
	report := env.notifier.reports[0]
	if report.FailedStage != "train" || report.ExitCode != 3 {
		t.Errorf("report should carry failed stage and exit code: %+v", report)
	}
}

func TestProcessRun_MissingSecret(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
		{Name: "deploy", Command: "kubectl apply", Secrets: []string{"KUBE_TOKEN"}},
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := env.runStore.stored(env.run.ID)
	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}

	// Команда стейджа с неразрешённым секретом не запускалась
	for _, cmd := range env.executor.commands() {
		if cmd == "kubectl apply" {
			t.Error("stage command must not run when secret resolution fails")
		}
	}

	// Ошибка называет секрет по имени
	results := env.stages.all()
	deploy := results[len(results)-1]
	if deploy.Status != domain.StageStatusFailed {
		t.Errorf("expected FAILED deploy stage, got %s", deploy.Status)
	}
	if !strings.Contains(deploy.Error, "KUBE_TOKEN") {
		t.Errorf("stage error should name the missing secret: %q", deploy.Error)
	}
}

func TestProcessRun_SecretsInjectedViaEnv(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "deploy", Command: "kubectl apply", Secrets: []string{"KUBE_TOKEN"}},
	}, func(e *testEnv) {
		e.provider.values["KUBE_TOKEN"] = "s3cret-token"
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.executor.requests) != 1 {
		t.Fatalf("expected 1 executed command, got %d", len(env.executor.requests))
	}
	req := env.executor.requests[0]

	// Секрет в окружении, но не в командной строке
	if req.Env["KUBE_TOKEN"] != "s3cret-token" {
		t.Error("secret should be injected via environment")
	}
	if strings.Contains(req.Command, "s3cret-token") {
		t.Error("secret value must never appear in the command line")
	}
}

func TestProcessRun_OutputRedacted(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "deploy", Command: "kubectl apply", Secrets: []string{"KUBE_TOKEN"}},
	}, func(e *testEnv) {
		e.provider.values["KUBE_TOKEN"] = "s3cret-token"
		e.executor.output = map[string]string{"kubectl apply": "using token s3cret-token\ndeployed"}
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := env.stages.all()
	if strings.Contains(results[0].OutputTail, "s3cret-token") {
		t.Errorf("secret value leaked into output tail: %q", results[0].OutputTail)
	}
	if !strings.Contains(results[0].OutputTail, "[REDACTED]") {
		t.Errorf("output tail should carry the redaction marker: %q", results[0].OutputTail)
	}
}

func TestProcessRun_CancelBetweenStages(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
		{Name: "train", Command: "python train.py"},
		{Name: "deploy", Command: "kubectl apply"},
	}, func(e *testEnv) {
		// Первый стейдж проходит; перед вторым runner замечает отмену
		e.runStore.cancelAfterStatusCalls = 2
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := env.runStore.stored(env.run.ID)
	if run.Status != domain.RunStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", run.Status)
	}

	commands := env.executor.commands()
	if len(commands) != 1 || commands[0] != "git pull" {
		t.Errorf("only the first stage should run, got %v", commands)
	}

	results := env.stages.all()
	if len(results) != 3 {
		t.Fatalf("expected 3 stage results, got %d", len(results))
	}
	if results[1].Status != domain.StageStatusSkipped || results[2].Status != domain.StageStatusSkipped {
		t.Error("stages after cancellation should be SKIPPED")
	}

	// Об отмене сообщается один раз
	if env.notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", env.notifier.count())
	}
}

func TestProcessRun_DisabledStageSkipped(t *testing.T) {
	disabled := false
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
		{Name: "smoke", Command: "pytest smoke", Enabled: &disabled},
		{Name: "deploy", Command: "kubectl apply"},
	})

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	commands := env.executor.commands()
	if len(commands) != 2 {
		t.Fatalf("expected 2 executed commands, got %v", commands)
	}

	// Выключенный стейдж не оставляет результата
	for _, r := range env.stages.all() {
		if r.StageName == "smoke" {
			t.Error("disabled stage should not be recorded")
		}
	}
}

func TestProcessRun_TemplatedCommand(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "build", Command: "docker build -t app:{{ .Inputs.image_tag }} ."},
	})
	env.run.Inputs = map[string]any{"image_tag": "v42"}
	env.runStore.Update(context.Background(), env.run)

	if err := env.runner.processRun(context.Background(), env.run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	commands := env.executor.commands()
	if len(commands) != 1 || commands[0] != "docker build -t app:v42 ." {
		t.Errorf("command should be rendered with inputs, got %v", commands)
	}
}

func TestProcessRun_NotPending(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
	})
	env.run.Status = domain.RunStatusRunning
	env.runStore.Update(context.Background(), env.run)

	err := env.runner.processRun(context.Background(), env.run.ID)
	if !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}

	if env.notifier.count() != 0 {
		t.Error("no notification for a run that was not processed")
	}
}

func TestProcessRun_ConcurrentDeliveryRunsOnce(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
		{Name: "deploy", Command: "kubectl apply"},
	})

	// Consumer и poll loop могут получить один run одновременно:
	// claim должен достаться ровно одному из них
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.runner.processRun(context.Background(), env.run.ID)
		}(i)
	}
	wg.Wait()

	var notPending int
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, ErrRunNotPending):
			notPending++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if notPending != 1 {
		t.Fatalf("exactly one of the competing claims should lose, got %d ErrRunNotPending", notPending)
	}

	// Стейджи выполнены один раз, уведомление одно
	if commands := env.executor.commands(); len(commands) != 2 {
		t.Errorf("stages should execute exactly once, got %v", commands)
	}
	if env.notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", env.notifier.count())
	}
}

func TestProcessRun_RunNotFound(t *testing.T) {
	env := newTestEnv(t, []domain.StageDef{
		{Name: "checkout", Command: "git pull"},
	})

	err := env.runner.processRun(context.Background(), uuid.New())
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestProcessRun_MissingRequiredInput(t *testing.T) {
	pipeline, version := testPipeline(domain.StageDef{Name: "build", Command: "docker build ."})
	version.Spec.Inputs = map[string]domain.InputDef{
		"image_tag": {Type: "string", Required: true},
	}
	run := testRun(pipeline.ID)

	runStore := newFakeRunStore(run)
	stages := newFakeStageStore()
	executor := &fakeExecutor{}
	notifier := &fakeNotifier{}

	r := New(Config{
		RunRepo:      runStore,
		StageRepo:    stages,
		PipelineRepo: &fakePipelineStore{pipeline: pipeline, version: version},
		Executor:     executor,
		Provider:     &fakeProvider{},
		Notifier:     notifier,
	})

	if err := r.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := runStore.stored(run.ID)
	if stored.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
	if len(executor.commands()) != 0 {
		t.Error("no stage should run when inputs are invalid")
	}
	if notifier.count() != 1 {
		t.Errorf("failed run should be reported once, got %d", notifier.count())
	}
}

func TestStageTimeout(t *testing.T) {
	spec := &domain.PipelineSpec{
		Defaults: &domain.StageDefaults{TimeoutSec: 60},
	}

	if got := stageTimeout(spec, &domain.StageDef{}); got != 60*time.Second {
		t.Errorf("expected default timeout, got %s", got)
	}
	if got := stageTimeout(spec, &domain.StageDef{TimeoutSec: 5}); got != 5*time.Second {
		t.Errorf("stage timeout should override default, got %s", got)
	}
	if got := stageTimeout(&domain.PipelineSpec{}, &domain.StageDef{}); got != 0 {
		t.Errorf("expected no timeout, got %s", got)
	}
}

func TestStageWorkdir(t *testing.T) {
	spec := &domain.PipelineSpec{
		Defaults: &domain.StageDefaults{Workdir: "/workspace"},
	}

	if got := stageWorkdir(spec, &domain.StageDef{}); got != "/workspace" {
		t.Errorf("expected default workdir, got %q", got)
	}
	if got := stageWorkdir(spec, &domain.StageDef{Workdir: "/other"}); got != "/other" {
		t.Errorf("stage workdir should override default, got %q", got)
	}
}
