package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/icclab/loadshift/internal/dtw"
	memstore "github.com/icclab/loadshift/internal/repository/memory"
)

// MemoryWorkflowRepository stores workflow definitions in memory.
type MemoryWorkflowRepository struct {
	store *memstore.Store[*dtw.WorkflowDefinition]
}

func NewMemoryWorkflowRepository() *MemoryWorkflowRepository {
	return &MemoryWorkflowRepository{
		store: memstore.New(func(d *dtw.WorkflowDefinition) string { return d.ID }),
	}
}

func (r *MemoryWorkflowRepository) Create(ctx context.Context, def *dtw.WorkflowDefinition) error {
	dup, err := r.store.Filter(ctx, func(v *dtw.WorkflowDefinition) bool {
		return v.Name == def.Name
	})
	if err != nil {
		return err
	}
	if len(dup) > 0 {
		return ErrDuplicate
	}
	return r.store.Set(ctx, def)
}

func (r *MemoryWorkflowRepository) Get(ctx context.Context, name string) (*dtw.WorkflowDefinition, error) {
	matches, err := r.store.Filter(ctx, func(d *dtw.WorkflowDefinition) bool {
		return d.Name == name
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

func (r *MemoryWorkflowRepository) GetByID(ctx context.Context, id string) (*dtw.WorkflowDefinition, error) {
	def, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return def, err
}

func (r *MemoryWorkflowRepository) List(ctx context.Context) ([]*dtw.WorkflowDefinition, error) {
	defs, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}
