package repository

import (
	"context"

	"github.com/icclab/loadshift/internal/dtw"
)

// WorkloadRepository abstracts persistence for delay-tolerant workloads.
// Read operations are project-scoped through the identity in ctx; admin
// identities see all rows. MarkExecuted and MarkScheduled are conditional
// flips: they commit only when the flag is still false, so concurrent
// scheduler replicas dispatch each workload at most once.
type WorkloadRepository interface {
	Create(ctx context.Context, w *dtw.Workload) error
	Get(ctx context.Context, name string) (*dtw.Workload, error)
	List(ctx context.Context, f dtw.WorkloadFilter) ([]*dtw.Workload, error)
	ListByExecuted(ctx context.Context, executed bool) ([]*dtw.Workload, error)
	MarkExecuted(ctx context.Context, id string) (bool, error)
	MarkScheduled(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, name string) error
}
