package repository

import (
	"context"
	"errors"
	"time"

	"github.com/icclab/loadshift/internal/db"
	"github.com/icclab/loadshift/internal/dtw"
)

// PersistentTriggerRepository backs TriggerRepository with PostgreSQL.
// Advance maps onto a conditional UPDATE so racing scheduler replicas
// serialize through the database, not in-process locks.
type PersistentTriggerRepository struct {
	db *db.DB
}

func NewPersistentTriggerRepository(database *db.DB) *PersistentTriggerRepository {
	return &PersistentTriggerRepository{db: database}
}

func (r *PersistentTriggerRepository) Create(ctx context.Context, t *dtw.CronTrigger) error {
	err := r.db.CreateCronTrigger(ctx, t)
	if errors.Is(err, db.ErrUniqueViolation) {
		return ErrDuplicate
	}
	return err
}

func (r *PersistentTriggerRepository) Get(ctx context.Context, name string) (*dtw.CronTrigger, error) {
	t, err := r.db.GetCronTrigger(ctx, name)
	if errors.Is(err, db.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *PersistentTriggerRepository) ListDue(ctx context.Context, now time.Time) ([]*dtw.CronTrigger, error) {
	return r.db.ListDueCronTriggers(ctx, now)
}

func (r *PersistentTriggerRepository) Advance(ctx context.Context, t *dtw.CronTrigger, next time.Time, remaining *int) (bool, error) {
	return r.db.AdvanceCronTrigger(ctx, t, next, remaining)
}

func (r *PersistentTriggerRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	return r.db.DeleteCronTriggerByID(ctx, id)
}

func (r *PersistentTriggerRepository) Delete(ctx context.Context, name string) error {
	n, err := r.db.DeleteCronTrigger(ctx, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
