package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
	"github.com/icclab/loadshift/internal/repository"
)

// TriggerService manages cron triggers: one-shot creation for the deferred
// placement policies and the advance step that consumes a firing.
type TriggerService struct {
	triggers repository.TriggerRepository
	nowFn    ports.Clock
}

// NewTriggerService creates a TriggerService. A nil clock falls back to
// time.Now.
func NewTriggerService(triggers repository.TriggerRepository, nowFn ports.Clock) *TriggerService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &TriggerService{triggers: triggers, nowFn: nowFn}
}

// NextFireTime computes the first fire time of a standard 5-field cron
// pattern strictly after the given instant.
func NextFireTime(pattern string, after time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(pattern)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid cron pattern %q: %v", dtw.ErrInvalidModel, pattern, err)
	}
	return sched.Next(after), nil
}

// CreateOneShot persists a trigger that fires exactly once at startTime,
// carrying the workload's workflow reference and delegated identity.
func (s *TriggerService) CreateOneShot(ctx context.Context, name string, w *dtw.Workload, startTime time.Time) error {
	one := 1
	now := s.nowFn()
	return s.triggers.Create(ctx, &dtw.CronTrigger{
		ID:                  uuid.NewString(),
		Name:                name,
		NextExecutionTime:   startTime,
		RemainingExecutions: &one,
		WorkflowID:          w.WorkflowID,
		WorkflowName:        w.WorkflowName,
		WorkflowInput:       w.WorkflowInput,
		WorkflowParams:      w.WorkflowParams,
		TrustID:             w.TrustID,
		ProjectID:           w.ProjectID,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
}

// Due returns the triggers whose next execution time has passed, ordered by
// next execution time.
func (s *TriggerService) Due(ctx context.Context) ([]*dtw.CronTrigger, error) {
	return s.triggers.ListDue(ctx, s.nowFn())
}

// Advance consumes one firing of t. On the final remaining execution the
// trigger is deleted; otherwise the next fire time and decremented count are
// applied conditionally on the stored next_execution_time still matching t.
// The boolean reports whether this caller won the firing: a concurrent
// worker that advanced or deleted the trigger first makes it (false, nil).
func (s *TriggerService) Advance(ctx context.Context, t *dtw.CronTrigger) (bool, error) {
	var remaining *int
	if t.RemainingExecutions != nil {
		rem := *t.RemainingExecutions - 1
		if rem <= 0 {
			n, err := s.triggers.DeleteByID(ctx, t.ID)
			if err != nil {
				return false, err
			}
			return n == 1, nil
		}
		remaining = &rem
	}

	if t.Pattern == "" {
		return false, fmt.Errorf("%w: trigger %q has executions left but no cron pattern", dtw.ErrInvalidModel, t.Name)
	}
	// The next fire time advances from the stored schedule, not from the
	// wall clock: a trigger behind schedule catches up one firing per pass
	// instead of skipping ahead.
	next, err := NextFireTime(t.Pattern, t.NextExecutionTime)
	if err != nil {
		return false, err
	}
	return s.triggers.Advance(ctx, t, next, remaining)
}
