package repository

import (
	"context"
	"errors"

	"github.com/icclab/loadshift/internal/db"
	"github.com/icclab/loadshift/internal/dtw"
)

// PersistentWorkloadRepository backs WorkloadRepository with PostgreSQL.
// The database is the single source of truth; the conditional updates that
// guard against duplicate dispatch only work with one authoritative store.
type PersistentWorkloadRepository struct {
	db *db.DB
}

func NewPersistentWorkloadRepository(database *db.DB) *PersistentWorkloadRepository {
	return &PersistentWorkloadRepository{db: database}
}

func (r *PersistentWorkloadRepository) Create(ctx context.Context, w *dtw.Workload) error {
	err := r.db.CreateWorkload(ctx, w)
	if errors.Is(err, db.ErrUniqueViolation) {
		return ErrDuplicate
	}
	return err
}

func (r *PersistentWorkloadRepository) Get(ctx context.Context, name string) (*dtw.Workload, error) {
	w, err := r.db.GetWorkload(ctx, name)
	if errors.Is(err, db.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

func (r *PersistentWorkloadRepository) List(ctx context.Context, f dtw.WorkloadFilter) ([]*dtw.Workload, error) {
	return r.db.ListWorkloads(ctx, f)
}

func (r *PersistentWorkloadRepository) ListByExecuted(ctx context.Context, executed bool) ([]*dtw.Workload, error) {
	return r.db.ListWorkloadsByExecuted(ctx, executed)
}

func (r *PersistentWorkloadRepository) MarkExecuted(ctx context.Context, id string) (bool, error) {
	return r.db.MarkWorkloadExecuted(ctx, id)
}

func (r *PersistentWorkloadRepository) MarkScheduled(ctx context.Context, id string) (bool, error) {
	return r.db.MarkWorkloadScheduled(ctx, id)
}

func (r *PersistentWorkloadRepository) Delete(ctx context.Context, name string) error {
	n, err := r.db.DeleteWorkload(ctx, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
