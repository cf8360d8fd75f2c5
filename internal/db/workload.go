package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
)

const workloadColumns = `id, name, workflow_id, workflow_name, workflow_input, workflow_params,
 deadline, job_duration, scope, executed, scheduled, trust_id, project_id, created_at, updated_at`

// ErrNoRows is re-exported so callers can translate sql.ErrNoRows without
// importing database/sql.
var ErrNoRows = sql.ErrNoRows

// ErrUniqueViolation is returned on unique-key conflicts.
var ErrUniqueViolation = fmt.Errorf("unique constraint violated")

// CreateWorkload stores a new delay-tolerant workload. The insert runs in a
// transaction so the referenced workflow definition cannot vanish between
// validation and persistence (FK is checked at commit).
func (d *DB) CreateWorkload(ctx context.Context, w *dtw.Workload) error {
	inputJSON, _ := json.Marshal(w.WorkflowInput)
	paramsJSON, _ := json.Marshal(w.WorkflowParams)

	var workflowID any // SQL NULL keeps the FK satisfied when unset
	if w.WorkflowID != "" {
		workflowID = w.WorkflowID
	}

	err := d.WithinTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO delay_tolerant_workloads (`+workloadColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			w.ID, w.Name, workflowID, w.WorkflowName, inputJSON, paramsJSON,
			w.Deadline, w.JobDuration, w.Scope, w.Executed, w.Scheduled,
			w.TrustID, w.ProjectID, w.CreatedAt, w.UpdatedAt,
		)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("insert workload %q: %w", w.Name, ErrUniqueViolation)
	}
	if err != nil {
		return fmt.Errorf("insert workload: %w", err)
	}
	return nil
}

// GetWorkload retrieves a workload by name within the identity's visibility:
// rows owned by the caller's project or with public scope. Admin identities
// see everything.
func (d *DB) GetWorkload(ctx context.Context, name string) (*dtw.Workload, error) {
	query := `SELECT ` + workloadColumns + ` FROM delay_tolerant_workloads WHERE name = $1`
	args := []any{name}
	if where, scopeArgs := scopeClause(ctx, 2); where != "" {
		query += " AND " + where
		args = append(args, scopeArgs...)
	}

	row := d.Pool.QueryRowContext(ctx, query, args...)
	w, err := scanWorkload(row.Scan)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get workload: %w", err)
	}
	return w, nil
}

// ListWorkloads returns workloads visible to the identity in ctx, filtered
// and paginated, ordered by creation time.
func (d *DB) ListWorkloads(ctx context.Context, f dtw.WorkloadFilter) ([]*dtw.Workload, error) {
	query := `SELECT ` + workloadColumns + ` FROM delay_tolerant_workloads WHERE TRUE`
	var args []any
	next := 1

	add := func(clause string, v any) {
		query += fmt.Sprintf(" AND "+clause, next)
		args = append(args, v)
		next++
	}
	if f.Name != "" {
		add("name = $%d", f.Name)
	}
	if f.WorkflowName != "" {
		add("workflow_name = $%d", f.WorkflowName)
	}
	if f.Scope != "" {
		add("scope = $%d", string(f.Scope))
	}
	if f.Executed != nil {
		add("executed = $%d", *f.Executed)
	}
	if where, scopeArgs := scopeClause(ctx, next); where != "" {
		query += " AND " + where
		args = append(args, scopeArgs...)
		next += len(scopeArgs)
	}
	query += " ORDER BY created_at ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", next)
		args = append(args, f.Limit)
		next++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", next)
		args = append(args, f.Offset)
	}

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workloads: %w", err)
	}
	defer rows.Close()

	return scanWorkloads(rows)
}

// ListWorkloadsByExecuted returns every workload with the given executed
// flag, regardless of project. Used by the scheduler loops under the admin
// identity.
func (d *DB) ListWorkloadsByExecuted(ctx context.Context, executed bool) ([]*dtw.Workload, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+workloadColumns+` FROM delay_tolerant_workloads
		 WHERE executed = $1 ORDER BY created_at ASC`, executed,
	)
	if err != nil {
		return nil, fmt.Errorf("list workloads by executed: %w", err)
	}
	defer rows.Close()

	return scanWorkloads(rows)
}

// MarkWorkloadExecuted flips executed to true if and only if it is still
// false. Returns whether this caller won the flip.
func (d *DB) MarkWorkloadExecuted(ctx context.Context, id string) (bool, error) {
	return d.markWorkloadFlag(ctx, id, "executed")
}

// MarkWorkloadScheduled flips scheduled to true if and only if it is still
// false. Returns whether this caller won the flip.
func (d *DB) MarkWorkloadScheduled(ctx context.Context, id string) (bool, error) {
	return d.markWorkloadFlag(ctx, id, "scheduled")
}

func (d *DB) markWorkloadFlag(ctx context.Context, id, column string) (bool, error) {
	// column is one of the two fixed flag names, never caller input.
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE delay_tolerant_workloads SET `+column+` = TRUE, updated_at = NOW()
		 WHERE id = $1 AND `+column+` = FALSE`, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark workload %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark workload %s: %w", column, err)
	}
	return n == 1, nil
}

// DeleteWorkload removes a workload by name within the caller's project.
// Returns the number of rows deleted.
func (d *DB) DeleteWorkload(ctx context.Context, name string) (int64, error) {
	query := `DELETE FROM delay_tolerant_workloads WHERE name = $1`
	args := []any{name}
	if ident, ok := dtw.IdentityFrom(ctx); ok && !ident.IsAdmin {
		query += ` AND project_id = $2`
		args = append(args, ident.ProjectID)
	}
	res, err := d.Pool.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete workload: %w", err)
	}
	return res.RowsAffected()
}

// scopeClause builds the project-visibility predicate for the identity in
// ctx, starting placeholders at $next. Admin (or absent) identities get no
// restriction.
func scopeClause(ctx context.Context, next int) (string, []any) {
	ident, ok := dtw.IdentityFrom(ctx)
	if !ok || ident.IsAdmin {
		return "", nil
	}
	return fmt.Sprintf("(project_id = $%d OR scope = 'public')", next),
		[]any{ident.ProjectID}
}

func scanWorkload(scan func(dest ...any) error) (*dtw.Workload, error) {
	w := &dtw.Workload{}
	var inputJSON, paramsJSON []byte
	var workflowID sql.NullString
	var deadline, createdAt, updatedAt time.Time

	if err := scan(&w.ID, &w.Name, &workflowID, &w.WorkflowName, &inputJSON, &paramsJSON,
		&deadline, &w.JobDuration, &w.Scope, &w.Executed, &w.Scheduled,
		&w.TrustID, &w.ProjectID, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	w.WorkflowID = workflowID.String
	w.Deadline = deadline
	w.CreatedAt = createdAt
	w.UpdatedAt = updatedAt
	json.Unmarshal(inputJSON, &w.WorkflowInput)
	json.Unmarshal(paramsJSON, &w.WorkflowParams)
	return w, nil
}

func scanWorkloads(rows *sql.Rows) ([]*dtw.Workload, error) {
	var result []*dtw.Workload
	for rows.Next() {
		w, err := scanWorkload(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan workload: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
