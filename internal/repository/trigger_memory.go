package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
	memstore "github.com/icclab/loadshift/internal/repository/memory"
)

// MemoryTriggerRepository stores cron triggers in memory, keyed by id.
type MemoryTriggerRepository struct {
	store *memstore.Store[*dtw.CronTrigger]
}

func NewMemoryTriggerRepository() *MemoryTriggerRepository {
	return &MemoryTriggerRepository{
		store: memstore.New(func(t *dtw.CronTrigger) string { return t.ID }),
	}
}

func (r *MemoryTriggerRepository) Create(ctx context.Context, t *dtw.CronTrigger) error {
	dup, err := r.store.Filter(ctx, func(v *dtw.CronTrigger) bool {
		return v.Name == t.Name && v.ProjectID == t.ProjectID
	})
	if err != nil {
		return err
	}
	if len(dup) > 0 {
		return ErrDuplicate
	}
	// Store a copy so callers' snapshots stay independent of later advances,
	// matching the row-snapshot semantics of the database backend.
	c := *t
	return r.store.Set(ctx, &c)
}

func (r *MemoryTriggerRepository) Get(ctx context.Context, name string) (*dtw.CronTrigger, error) {
	ident, hasIdent := dtw.IdentityFrom(ctx)
	matches, err := r.store.Filter(ctx, func(t *dtw.CronTrigger) bool {
		if t.Name != name {
			return false
		}
		if hasIdent && !ident.IsAdmin {
			return t.ProjectID == ident.ProjectID
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	c := *matches[0]
	return &c, nil
}

func (r *MemoryTriggerRepository) ListDue(ctx context.Context, now time.Time) ([]*dtw.CronTrigger, error) {
	matches, err := r.store.Filter(ctx, func(t *dtw.CronTrigger) bool {
		return t.NextExecutionTime.Before(now)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].NextExecutionTime.Before(matches[j].NextExecutionTime)
	})
	out := make([]*dtw.CronTrigger, len(matches))
	for i, m := range matches {
		c := *m
		out[i] = &c
	}
	return out, nil
}

// Advance commits the new execution details only when next_execution_time
// still holds its pre-advance value; a vanished trigger is reported as a
// lost race, not an error.
func (r *MemoryTriggerRepository) Advance(ctx context.Context, t *dtw.CronTrigger, next time.Time, remaining *int) (bool, error) {
	won, err := r.store.Swap(ctx, t.ID, func(cur *dtw.CronTrigger) (*dtw.CronTrigger, bool) {
		if !cur.NextExecutionTime.Equal(t.NextExecutionTime) {
			return cur, false
		}
		cur.NextExecutionTime = next
		cur.RemainingExecutions = remaining
		cur.UpdatedAt = time.Now()
		return cur, true
	})
	if errors.Is(err, memstore.ErrNotFound) {
		return false, nil
	}
	return won, err
}

func (r *MemoryTriggerRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (r *MemoryTriggerRepository) Delete(ctx context.Context, name string) error {
	t, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, t.ID); errors.Is(err, memstore.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}
