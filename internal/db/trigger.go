package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
)

const triggerColumns = `id, name, pattern, next_execution_time, remaining_executions,
 workflow_id, workflow_name, workflow_input, workflow_params, trust_id, project_id, created_at, updated_at`

// CreateCronTrigger stores a new cron trigger.
func (d *DB) CreateCronTrigger(ctx context.Context, t *dtw.CronTrigger) error {
	inputJSON, _ := json.Marshal(t.WorkflowInput)
	paramsJSON, _ := json.Marshal(t.WorkflowParams)

	var workflowID any
	if t.WorkflowID != "" {
		workflowID = t.WorkflowID
	}

	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO cron_triggers (`+triggerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Name, t.Pattern, t.NextExecutionTime, t.RemainingExecutions,
		workflowID, t.WorkflowName, inputJSON, paramsJSON,
		t.TrustID, t.ProjectID, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert cron trigger %q: %w", t.Name, ErrUniqueViolation)
	}
	if err != nil {
		return fmt.Errorf("insert cron trigger: %w", err)
	}
	return nil
}

// GetCronTrigger retrieves a cron trigger by name within the identity's
// visibility.
func (d *DB) GetCronTrigger(ctx context.Context, name string) (*dtw.CronTrigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM cron_triggers WHERE name = $1`
	args := []any{name}
	if where, scopeArgs := triggerScopeClause(ctx, 2); where != "" {
		query += " AND " + where
		args = append(args, scopeArgs...)
	}

	row := d.Pool.QueryRowContext(ctx, query, args...)
	t, err := scanCronTrigger(row.Scan)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get cron trigger: %w", err)
	}
	return t, nil
}

// ListDueCronTriggers returns triggers whose next_execution_time has passed,
// ordered soonest first.
func (d *DB) ListDueCronTriggers(ctx context.Context, now time.Time) ([]*dtw.CronTrigger, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+triggerColumns+` FROM cron_triggers
		 WHERE next_execution_time < $1 ORDER BY next_execution_time ASC`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due cron triggers: %w", err)
	}
	defer rows.Close()

	var result []*dtw.CronTrigger
	for rows.Next() {
		t, err := scanCronTrigger(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan cron trigger: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// AdvanceCronTrigger conditionally moves a trigger to its next firing: the
// update only lands if next_execution_time still holds its pre-advance
// value, so concurrent advancers commit at most once per transition.
func (d *DB) AdvanceCronTrigger(ctx context.Context, t *dtw.CronTrigger, next time.Time, remaining *int) (bool, error) {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE cron_triggers
		 SET next_execution_time = $1, remaining_executions = $2, updated_at = NOW()
		 WHERE id = $3 AND next_execution_time = $4`,
		next, remaining, t.ID, t.NextExecutionTime,
	)
	if err != nil {
		return false, fmt.Errorf("advance cron trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance cron trigger: %w", err)
	}
	return n == 1, nil
}

// DeleteCronTriggerByID removes a trigger by id, returning the number of
// rows deleted. Zero rows is how a lost deletion race manifests.
func (d *DB) DeleteCronTriggerByID(ctx context.Context, id string) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM cron_triggers WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete cron trigger: %w", err)
	}
	return res.RowsAffected()
}

// DeleteCronTrigger removes a trigger by name within the caller's project.
func (d *DB) DeleteCronTrigger(ctx context.Context, name string) (int64, error) {
	query := `DELETE FROM cron_triggers WHERE name = $1`
	args := []any{name}
	if ident, ok := dtw.IdentityFrom(ctx); ok && !ident.IsAdmin {
		query += ` AND project_id = $2`
		args = append(args, ident.ProjectID)
	}
	res, err := d.Pool.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete cron trigger: %w", err)
	}
	return res.RowsAffected()
}

// triggerScopeClause restricts trigger queries to the caller's project.
// Triggers carry no scope column; visibility is ownership only.
func triggerScopeClause(ctx context.Context, next int) (string, []any) {
	ident, ok := dtw.IdentityFrom(ctx)
	if !ok || ident.IsAdmin {
		return "", nil
	}
	return fmt.Sprintf("project_id = $%d", next), []any{ident.ProjectID}
}

func scanCronTrigger(scan func(dest ...any) error) (*dtw.CronTrigger, error) {
	t := &dtw.CronTrigger{}
	var inputJSON, paramsJSON []byte
	var workflowID sql.NullString
	var remaining sql.NullInt64

	if err := scan(&t.ID, &t.Name, &t.Pattern, &t.NextExecutionTime, &remaining,
		&workflowID, &t.WorkflowName, &inputJSON, &paramsJSON,
		&t.TrustID, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.WorkflowID = workflowID.String
	if remaining.Valid {
		r := int(remaining.Int64)
		t.RemainingExecutions = &r
	}
	json.Unmarshal(inputJSON, &t.WorkflowInput)
	json.Unmarshal(paramsJSON, &t.WorkflowParams)
	return t, nil
}
