package repository

import (
	"context"
	"errors"

	"github.com/icclab/loadshift/internal/db"
	"github.com/icclab/loadshift/internal/dtw"
)

// PersistentWorkflowRepository backs WorkflowRepository with PostgreSQL.
type PersistentWorkflowRepository struct {
	db *db.DB
}

func NewPersistentWorkflowRepository(database *db.DB) *PersistentWorkflowRepository {
	return &PersistentWorkflowRepository{db: database}
}

func (r *PersistentWorkflowRepository) Create(ctx context.Context, def *dtw.WorkflowDefinition) error {
	err := r.db.CreateWorkflowDefinition(ctx, def)
	if errors.Is(err, db.ErrUniqueViolation) {
		return ErrDuplicate
	}
	return err
}

func (r *PersistentWorkflowRepository) Get(ctx context.Context, name string) (*dtw.WorkflowDefinition, error) {
	def, err := r.db.GetWorkflowDefinition(ctx, name)
	if errors.Is(err, db.ErrNoRows) {
		return nil, ErrNotFound
	}
	return def, err
}

func (r *PersistentWorkflowRepository) GetByID(ctx context.Context, id string) (*dtw.WorkflowDefinition, error) {
	def, err := r.db.GetWorkflowDefinitionByID(ctx, id)
	if errors.Is(err, db.ErrNoRows) {
		return nil, ErrNotFound
	}
	return def, err
}

func (r *PersistentWorkflowRepository) List(ctx context.Context) ([]*dtw.WorkflowDefinition, error) {
	return r.db.ListWorkflowDefinitions(ctx)
}
