package dtw

import (
	"errors"
	"testing"
)

func TestParseWorkflowDefinition(t *testing.T) {
	def, err := ParseWorkflowDefinition(`
name: batch_load
input:
  - rounds
  - intensity: low
`)
	if err != nil {
		t.Fatalf("ParseWorkflowDefinition failed: %v", err)
	}
	if def.Name != "batch_load" {
		t.Errorf("expected name batch_load, got %q", def.Name)
	}
	if def.Scope != ScopePrivate {
		t.Errorf("expected private scope, got %q", def.Scope)
	}
	if len(def.Input) != 2 {
		t.Fatalf("expected 2 input params, got %d", len(def.Input))
	}
	if def.Input[0].Name != "rounds" || def.Input[0].HasDefault {
		t.Errorf("expected required param rounds, got %+v", def.Input[0])
	}
	if def.Input[1].Name != "intensity" || !def.Input[1].HasDefault || def.Input[1].Default != "low" {
		t.Errorf("expected defaulted param intensity=low, got %+v", def.Input[1])
	}
	if def.Definition == "" {
		t.Error("expected the raw source to be preserved")
	}
}

func TestParseWorkflowDefinition_Rejects(t *testing.T) {
	cases := map[string]string{
		"invalid yaml":     "name: [",
		"no name":          "input:\n  - rounds\n",
		"multi-pair input": "name: wf\ninput:\n  - a: 1\n    b: 2\n",
		"bad entry type":   "name: wf\ninput:\n  - [a, b]\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseWorkflowDefinition(src); !errors.Is(err, ErrInvalidModel) {
				t.Errorf("expected invalid model error, got %v", err)
			}
		})
	}
}

func TestValidateInput(t *testing.T) {
	def := &WorkflowDefinition{
		Name: "batch_load",
		Input: []InputParam{
			{Name: "rounds"},
			{Name: "intensity", Default: "low", HasDefault: true},
		},
	}

	if err := ValidateInput(def, map[string]any{"rounds": 3}); err != nil {
		t.Errorf("expected defaulted param to be optional, got %v", err)
	}
	if err := ValidateInput(def, map[string]any{"rounds": 3, "intensity": "high"}); err != nil {
		t.Errorf("expected full input to validate, got %v", err)
	}
	if err := ValidateInput(def, nil); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("expected missing required param to fail, got %v", err)
	}
	if err := ValidateInput(def, map[string]any{"rounds": 3, "warp": true}); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("expected unknown key to fail, got %v", err)
	}
}
