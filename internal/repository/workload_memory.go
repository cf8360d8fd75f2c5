package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/icclab/loadshift/internal/dtw"
	memstore "github.com/icclab/loadshift/internal/repository/memory"
)

// MemoryWorkloadRepository stores workloads in memory, keyed by id.
// Conditional flag flips go through the store's Swap so they hold the same
// at-most-once guarantee the database backend provides.
type MemoryWorkloadRepository struct {
	store *memstore.Store[*dtw.Workload]
}

func NewMemoryWorkloadRepository() *MemoryWorkloadRepository {
	return &MemoryWorkloadRepository{
		store: memstore.New(func(w *dtw.Workload) string { return w.ID }),
	}
}

func (r *MemoryWorkloadRepository) Create(ctx context.Context, w *dtw.Workload) error {
	dup, err := r.store.Filter(ctx, func(v *dtw.Workload) bool {
		return v.Name == w.Name && v.ProjectID == w.ProjectID
	})
	if err != nil {
		return err
	}
	if len(dup) > 0 {
		return ErrDuplicate
	}
	// Store a copy so callers' snapshots stay independent of later flag
	// flips, matching the row-snapshot semantics of the database backend.
	c := *w
	return r.store.Set(ctx, &c)
}

func (r *MemoryWorkloadRepository) Get(ctx context.Context, name string) (*dtw.Workload, error) {
	matches, err := r.store.Filter(ctx, func(w *dtw.Workload) bool {
		return w.Name == name && workloadVisible(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sortWorkloads(matches)
	c := *matches[0]
	return &c, nil
}

func (r *MemoryWorkloadRepository) List(ctx context.Context, f dtw.WorkloadFilter) ([]*dtw.Workload, error) {
	matches, err := r.store.Filter(ctx, func(w *dtw.Workload) bool {
		if !workloadVisible(ctx, w) {
			return false
		}
		if f.Name != "" && w.Name != f.Name {
			return false
		}
		if f.WorkflowName != "" && w.WorkflowName != f.WorkflowName {
			return false
		}
		if f.Scope != "" && w.Scope != f.Scope {
			return false
		}
		if f.Executed != nil && w.Executed != *f.Executed {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sortWorkloads(matches)

	if f.Offset > 0 {
		if f.Offset >= len(matches) {
			return nil, nil
		}
		matches = matches[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matches) {
		matches = matches[:f.Limit]
	}
	return cloneWorkloads(matches), nil
}

func (r *MemoryWorkloadRepository) ListByExecuted(ctx context.Context, executed bool) ([]*dtw.Workload, error) {
	matches, err := r.store.Filter(ctx, func(w *dtw.Workload) bool {
		return w.Executed == executed
	})
	if err != nil {
		return nil, err
	}
	sortWorkloads(matches)
	return cloneWorkloads(matches), nil
}

func (r *MemoryWorkloadRepository) MarkExecuted(ctx context.Context, id string) (bool, error) {
	return r.markFlag(ctx, id, func(w *dtw.Workload) *bool { return &w.Executed })
}

func (r *MemoryWorkloadRepository) MarkScheduled(ctx context.Context, id string) (bool, error) {
	return r.markFlag(ctx, id, func(w *dtw.Workload) *bool { return &w.Scheduled })
}

func (r *MemoryWorkloadRepository) markFlag(ctx context.Context, id string, flag func(*dtw.Workload) *bool) (bool, error) {
	won, err := r.store.Swap(ctx, id, func(w *dtw.Workload) (*dtw.Workload, bool) {
		f := flag(w)
		if *f {
			return w, false
		}
		*f = true
		return w, true
	})
	if errors.Is(err, memstore.ErrNotFound) {
		return false, ErrNotFound
	}
	return won, err
}

func (r *MemoryWorkloadRepository) Delete(ctx context.Context, name string) error {
	ident, hasIdent := dtw.IdentityFrom(ctx)
	matches, err := r.store.Filter(ctx, func(w *dtw.Workload) bool {
		if w.Name != name {
			return false
		}
		// Deletion requires ownership; public visibility is read-only.
		if hasIdent && !ident.IsAdmin {
			return w.ProjectID == ident.ProjectID
		}
		return true
	})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrNotFound
	}
	return r.store.Delete(ctx, matches[0].ID)
}

// workloadVisible applies project scoping: callers see their own project's
// rows plus anything public; admin identities see everything.
func workloadVisible(ctx context.Context, w *dtw.Workload) bool {
	ident, ok := dtw.IdentityFrom(ctx)
	if !ok || ident.IsAdmin {
		return true
	}
	return w.ProjectID == ident.ProjectID || w.Scope == dtw.ScopePublic
}

func cloneWorkloads(ws []*dtw.Workload) []*dtw.Workload {
	out := make([]*dtw.Workload, len(ws))
	for i, w := range ws {
		c := *w
		out[i] = &c
	}
	return out
}

func sortWorkloads(ws []*dtw.Workload) {
	sort.Slice(ws, func(i, j int) bool {
		if !ws[i].CreatedAt.Equal(ws[j].CreatedAt) {
			return ws[i].CreatedAt.Before(ws[j].CreatedAt)
		}
		return ws[i].Name < ws[j].Name
	})
}
