package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/icclab/loadshift/internal/dtw"
)

const workflowDefColumns = `id, name, definition, input_spec, scope, project_id, created_at, updated_at`

// CreateWorkflowDefinition stores a new workflow definition.
func (d *DB) CreateWorkflowDefinition(ctx context.Context, def *dtw.WorkflowDefinition) error {
	inputJSON, _ := json.Marshal(def.Input)

	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO workflow_definitions (`+workflowDefColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		def.ID, def.Name, def.Definition, inputJSON,
		def.Scope, def.ProjectID, def.CreatedAt, def.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert workflow definition %q: %w", def.Name, ErrUniqueViolation)
	}
	if err != nil {
		return fmt.Errorf("insert workflow definition: %w", err)
	}
	return nil
}

// GetWorkflowDefinition retrieves a workflow definition by name.
func (d *DB) GetWorkflowDefinition(ctx context.Context, name string) (*dtw.WorkflowDefinition, error) {
	return d.getWorkflowDefinition(ctx, "name", name)
}

// GetWorkflowDefinitionByID retrieves a workflow definition by id.
func (d *DB) GetWorkflowDefinitionByID(ctx context.Context, id string) (*dtw.WorkflowDefinition, error) {
	return d.getWorkflowDefinition(ctx, "id", id)
}

func (d *DB) getWorkflowDefinition(ctx context.Context, column, value string) (*dtw.WorkflowDefinition, error) {
	def := &dtw.WorkflowDefinition{}
	var inputJSON []byte

	err := d.Pool.QueryRowContext(ctx,
		`SELECT `+workflowDefColumns+` FROM workflow_definitions WHERE `+column+` = $1`, value,
	).Scan(&def.ID, &def.Name, &def.Definition, &inputJSON,
		&def.Scope, &def.ProjectID, &def.CreatedAt, &def.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow definition: %w", err)
	}

	json.Unmarshal(inputJSON, &def.Input)
	return def, nil
}

// ListWorkflowDefinitions returns all workflow definitions ordered by name.
func (d *DB) ListWorkflowDefinitions(ctx context.Context) ([]*dtw.WorkflowDefinition, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+workflowDefColumns+` FROM workflow_definitions ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list workflow definitions: %w", err)
	}
	defer rows.Close()

	var result []*dtw.WorkflowDefinition
	for rows.Next() {
		def := &dtw.WorkflowDefinition{}
		var inputJSON []byte
		if err := rows.Scan(&def.ID, &def.Name, &def.Definition, &inputJSON,
			&def.Scope, &def.ProjectID, &def.CreatedAt, &def.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan workflow definition: %w", err)
		}
		json.Unmarshal(inputJSON, &def.Input)
		result = append(result, def)
	}
	return result, rows.Err()
}
