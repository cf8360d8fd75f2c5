package repository

import (
	"context"

	"github.com/icclab/loadshift/internal/dtw"
)

// WorkflowRepository abstracts persistence for workflow definitions.
type WorkflowRepository interface {
	Create(ctx context.Context, def *dtw.WorkflowDefinition) error
	Get(ctx context.Context, name string) (*dtw.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*dtw.WorkflowDefinition, error)
	List(ctx context.Context) ([]*dtw.WorkflowDefinition, error)
}
