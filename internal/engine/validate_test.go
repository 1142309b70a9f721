package engine

import (
	"errors"
	"testing"

	"github.com/PraveenPeterJay/sentiment-mlops/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestValidate_EmptyStages(t *testing.T) {
	tests := []struct {
		name string
		spec *domain.PipelineSpec
	}{
		{
			name: "nil spec",
			spec: nil,
		},
		{
			name: "empty stages",
			spec: &domain.PipelineSpec{
				Stages: []domain.StageDef{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if !errors.Is(err, ErrEmptyStages) {
				t.Errorf("expected ErrEmptyStages, got %v", err)
			}
		})
	}
}

func TestValidate_EmptyStageName(t *testing.T) {
	spec := &domain.PipelineSpec{
		Stages: []domain.StageDef{
			{Name: "", Command: "echo hi"},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr.Err, ErrEmptyStageName) {
		t.Errorf("expected ErrEmptyStageName, got %v", vErr.Err)
	}
}

func TestValidate_DuplicateStageName(t *testing.T) {
	spec := &domain.PipelineSpec{
		Stages: []domain.StageDef{
			{Name: "build", Command: "docker build ."},
			{Name: "build", Command: "docker push"},
		},
	}

	err := Validate(spec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(vErr.Err, ErrDuplicateStageName) {
		t.Errorf("expected ErrDuplicateStageName, got %v", vErr.Err)
	}
}

func TestValidate_EmptyCommand(t *testing.T) {
	spec := &domain.PipelineSpec{
		Stages: []domain.StageDef{
			{Name: "deploy", Command: ""},
		},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestValidate_InvalidSecretName(t *testing.T) {
	spec := &domain.PipelineSpec{
		Stages: []domain.StageDef{
			{Name: "push", Command: "docker push", Secrets: []string{"docker-hub-password"}},
		},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrInvalidSecretName) {
		t.Errorf("expected ErrInvalidSecretName, got %v", err)
	}
}

func TestValidate_NoEnabledStages(t *testing.T) {
	spec := &domain.PipelineSpec{
		Stages: []domain.StageDef{
			{Name: "train", Command: "python train.py", Enabled: boolPtr(false)},
			{Name: "deploy", Command: "kubectl apply -f k8s/", Enabled: boolPtr(false)},
		},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrNoEnabledStages) {
		t.Errorf("expected ErrNoEnabledStages, got %v", err)
	}
}

func TestValidate_OK(t *testing.T) {
	spec := &domain.PipelineSpec{
		Stages: []domain.StageDef{
			{Name: "checkout", Command: "git clone {{ .Inputs.repo }} ."},
			{Name: "train", Command: "python train.py"},
			{Name: "push", Command: "docker push", Secrets: []string{"DOCKERHUB_PASSWORD"}},
			{Name: "legacy-deploy", Command: "ansible-playbook deploy.yml", Enabled: boolPtr(false)},
		},
	}

	if err := Validate(spec); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateInputs_Defaults(t *testing.T) {
	spec := &domain.PipelineSpec{
		Inputs: map[string]domain.InputDef{
			"image_tag": {Type: "string", Default: "latest"},
			"workspace": {Type: "string", Default: "/workspace"},
		},
		Stages: []domain.StageDef{{Name: "s", Command: "true"}},
	}

	merged, err := ValidateInputs(spec, map[string]any{"image_tag": "v42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if merged["image_tag"] != "v42" {
		t.Errorf("explicit input should win, got %v", merged["image_tag"])
	}
	if merged["workspace"] != "/workspace" {
		t.Errorf("default should be applied, got %v", merged["workspace"])
	}
}

func TestValidateInputs_RequiredMissing(t *testing.T) {
	spec := &domain.PipelineSpec{
		Inputs: map[string]domain.InputDef{
			"image_tag": {Type: "string", Required: true},
		},
		Stages: []domain.StageDef{{Name: "s", Command: "true"}},
	}

	_, err := ValidateInputs(spec, nil)
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}
