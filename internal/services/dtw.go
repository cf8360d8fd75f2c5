package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
	"github.com/icclab/loadshift/internal/repository"
)

// Deadlines must leave the scheduler at least one tick of room.
const minDeadlineLead = 60 * time.Second

// deadlineLayouts are the accepted deadline formats: RFC 3339 and the
// zone-less variant, which is interpreted as UTC.
var deadlineLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

// CreateWorkloadRequest carries the client-supplied fields of a new
// delay-tolerant workload. JobDuration is the estimated run time in
// minutes; zero means unknown.
type CreateWorkloadRequest struct {
	Name           string         `json:"name"`
	WorkflowID     string         `json:"workflow_id"`
	WorkflowName   string         `json:"workflow_name"`
	WorkflowInput  map[string]any `json:"workflow_input"`
	WorkflowParams map[string]any `json:"workflow_params"`
	Deadline       string         `json:"deadline"`
	JobDuration    int            `json:"job_duration"`
}

// DTWService is the façade behind the REST surface: it validates and
// persists delay-tolerant workloads for the runner to place.
type DTWService struct {
	workloads repository.WorkloadRepository
	workflows repository.WorkflowRepository
	trust     ports.TrustIssuer
	nowFn     ports.Clock
}

// NewDTWService creates a DTWService. A nil clock falls back to time.Now.
func NewDTWService(
	workloads repository.WorkloadRepository,
	workflows repository.WorkflowRepository,
	trust ports.TrustIssuer,
	nowFn ports.Clock,
) *DTWService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &DTWService{workloads: workloads, workflows: workflows, trust: trust, nowFn: nowFn}
}

// Create validates req, resolves and checks the referenced workflow, issues
// a delegated trust token for the caller and persists the workload with
// both placement flags cleared.
func (s *DTWService) Create(ctx context.Context, req CreateWorkloadRequest) (*dtw.Workload, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: workload name is required", dtw.ErrInvalidModel)
	}
	if req.JobDuration < 0 {
		return nil, fmt.Errorf("%w: job_duration must not be negative", dtw.ErrInvalidModel)
	}

	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	if deadline.Before(now.Add(minDeadlineLead)) {
		return nil, fmt.Errorf("%w: deadline must be at least %s in the future", dtw.ErrInvalidModel, minDeadlineLead)
	}

	def, err := s.resolveWorkflow(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := dtw.ValidateInput(def, req.WorkflowInput); err != nil {
		return nil, err
	}

	values := map[string]any{}
	if err := s.trust.AddTrustID(ctx, values); err != nil {
		return nil, fmt.Errorf("issuing trust: %w", err)
	}
	trustID, _ := values["trust_id"].(string)

	ident, _ := dtw.IdentityFrom(ctx)
	w := &dtw.Workload{
		ID:             uuid.NewString(),
		Name:           req.Name,
		WorkflowID:     def.ID,
		WorkflowName:   def.Name,
		WorkflowInput:  req.WorkflowInput,
		WorkflowParams: req.WorkflowParams,
		Deadline:       deadline,
		JobDuration:    req.JobDuration,
		Scope:          dtw.ScopePrivate,
		TrustID:        trustID,
		ProjectID:      ident.ProjectID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.workloads.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Get returns the named workload, subject to project scoping.
func (s *DTWService) Get(ctx context.Context, name string) (*dtw.Workload, error) {
	return s.workloads.Get(ctx, name)
}

// List returns the workloads visible to the caller matching f.
func (s *DTWService) List(ctx context.Context, f dtw.WorkloadFilter) ([]*dtw.Workload, error) {
	return s.workloads.List(ctx, f)
}

// Delete removes the named workload owned by the caller's project.
func (s *DTWService) Delete(ctx context.Context, name string) error {
	return s.workloads.Delete(ctx, name)
}

// resolveWorkflow looks up the referenced workflow definition by id when
// given, otherwise by name. A missing reference is a model error; a
// reference to a workflow that does not exist propagates as not-found.
func (s *DTWService) resolveWorkflow(ctx context.Context, req CreateWorkloadRequest) (*dtw.WorkflowDefinition, error) {
	switch {
	case req.WorkflowID != "":
		return s.workflows.GetByID(ctx, req.WorkflowID)
	case req.WorkflowName != "":
		return s.workflows.Get(ctx, req.WorkflowName)
	default:
		return nil, fmt.Errorf("%w: workflow_id or workflow_name is required", dtw.ErrInvalidModel)
	}
}

// parseDeadline accepts RFC 3339 deadlines and the zone-less layout, which
// is taken as UTC.
func parseDeadline(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: deadline is required", dtw.ErrInvalidModel)
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: deadline %q is not a valid timestamp", dtw.ErrInvalidModel, value)
}

// WorkflowService manages the stored workflow definitions the workloads
// reference.
type WorkflowService struct {
	workflows repository.WorkflowRepository
	nowFn     ports.Clock
}

// NewWorkflowService creates a WorkflowService. A nil clock falls back to
// time.Now.
func NewWorkflowService(workflows repository.WorkflowRepository, nowFn ports.Clock) *WorkflowService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &WorkflowService{workflows: workflows, nowFn: nowFn}
}

// Create parses a workflow YAML document and stores the definition under
// the caller's project.
func (s *WorkflowService) Create(ctx context.Context, source string) (*dtw.WorkflowDefinition, error) {
	def, err := dtw.ParseWorkflowDefinition(source)
	if err != nil {
		return nil, err
	}

	ident, _ := dtw.IdentityFrom(ctx)
	now := s.nowFn()
	def.ID = uuid.NewString()
	def.ProjectID = ident.ProjectID
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.workflows.Create(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Get returns the named workflow definition.
func (s *WorkflowService) Get(ctx context.Context, name string) (*dtw.WorkflowDefinition, error) {
	return s.workflows.Get(ctx, name)
}

// List returns all stored workflow definitions.
func (s *WorkflowService) List(ctx context.Context) ([]*dtw.WorkflowDefinition, error) {
	return s.workflows.List(ctx)
}
