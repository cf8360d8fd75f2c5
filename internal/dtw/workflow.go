package dtw

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// InputParam is one declared workflow input. Params without a default are
// required at execution time.
type InputParam struct {
	Name       string `json:"name"`
	Default    any    `json:"default,omitempty"`
	HasDefault bool   `json:"has_default"`
}

// WorkflowDefinition is the stored description of an executable workflow.
// The scheduler only needs the identity and the declared input spec; the
// Definition body is kept opaque and handed to the execution engine as-is.
type WorkflowDefinition struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Input      []InputParam `json:"input,omitempty"`
	Definition string       `json:"definition,omitempty"`
	Scope      Scope        `json:"scope"`
	ProjectID  string       `json:"project_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ValidateInput checks the provided input map against the definition's
// declared input spec: every param without a default must be present, and
// keys not declared by the workflow are rejected.
func ValidateInput(def *WorkflowDefinition, input map[string]any) error {
	declared := make(map[string]bool, len(def.Input))
	for _, p := range def.Input {
		declared[p.Name] = true
		if p.HasDefault {
			continue
		}
		if _, ok := input[p.Name]; !ok {
			return fmt.Errorf("%w: required workflow input %q is missing", ErrInvalidModel, p.Name)
		}
	}
	for k := range input {
		if !declared[k] {
			return fmt.Errorf("%w: unexpected workflow input %q", ErrInvalidModel, k)
		}
	}
	return nil
}

// workflowDoc is the subset of a workflow YAML document the scheduler cares
// about. Input entries are either bare names (required) or single-pair maps
// of name to default value.
type workflowDoc struct {
	Name  string `yaml:"name"`
	Input []any  `yaml:"input"`
}

// ParseWorkflowDefinition extracts name and input spec from a workflow YAML
// document. The raw source is preserved in Definition.
func ParseWorkflowDefinition(src string) (*WorkflowDefinition, error) {
	var doc workflowDoc
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return nil, fmt.Errorf("%w: parse workflow definition: %v", ErrInvalidModel, err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("%w: workflow definition has no name", ErrInvalidModel)
	}

	def := &WorkflowDefinition{
		Name:       doc.Name,
		Definition: src,
		Scope:      ScopePrivate,
	}
	for _, entry := range doc.Input {
		switch v := entry.(type) {
		case string:
			def.Input = append(def.Input, InputParam{Name: v})
		case map[string]any:
			if len(v) != 1 {
				return nil, fmt.Errorf("%w: workflow input entry must be a name or a single name: default pair", ErrInvalidModel)
			}
			for name, dflt := range v {
				def.Input = append(def.Input, InputParam{Name: name, Default: dflt, HasDefault: true})
			}
		default:
			return nil, fmt.Errorf("%w: workflow input entry has unsupported type %T", ErrInvalidModel, entry)
		}
	}
	return def, nil
}
