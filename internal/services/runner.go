package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icclab/loadshift/internal/config"
	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
	"github.com/icclab/loadshift/internal/repository"
)

const cronExecutionDescription = "Workflow execution created by cron trigger."

// Runner drives the scheduler: a single goroutine ticking at a fixed
// interval, firing due cron triggers and placing pending workloads through
// the configured policy. Every tick runs under an admin identity; per-item
// work runs under the identity delegated by the item's trust token.
type Runner struct {
	interval  time.Duration
	cfg       config.SchedulerConfig
	workloads repository.WorkloadRepository
	triggers  *TriggerService
	engine    ports.WorkflowEngine
	trust     ports.TrustIssuer
	policies  map[string]PlacementPolicy
	nowFn     ports.Clock
}

// NewRunner wires a Runner from its collaborators. A nil clock falls back
// to time.Now.
func NewRunner(
	cfg config.SchedulerConfig,
	workloads repository.WorkloadRepository,
	triggers *TriggerService,
	engine ports.WorkflowEngine,
	trust ports.TrustIssuer,
	prices ports.PriceSource,
	nowFn ports.Clock,
) *Runner {
	if nowFn == nil {
		nowFn = time.Now
	}
	deps := policyDeps{
		workloads: workloads,
		triggers:  triggers,
		engine:    engine,
		prices:    prices,
		nowFn:     nowFn,
	}
	return &Runner{
		interval:  cfg.TickInterval,
		cfg:       cfg,
		workloads: workloads,
		triggers:  triggers,
		engine:    engine,
		trust:     trust,
		policies: map[string]PlacementPolicy{
			config.ModeImmediately: &ImmediatePolicy{deps},
			config.ModeLastMinute:  &LastMinutePolicy{deps},
			config.ModeEnergyAware: &EnergyAwarePolicy{deps},
		},
		nowFn: nowFn,
	}
}

// Run ticks until ctx is cancelled. The first tick fires immediately.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("scheduler: started", "mode", r.cfg.ResolveMode(), "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass: due triggers first, then pending workloads.
// Failures are logged and never stop the ticking.
func (r *Runner) Tick(ctx context.Context) {
	ctx = dtw.WithIdentity(ctx, dtw.AdminIdentity())
	r.processCronTriggers(ctx)
	if err := r.processWorkloads(ctx); err != nil {
		slog.Error("scheduler: tick failed", "err", err)
	}
}

// processCronTriggers fires every due trigger: advance it (the conditional
// step that serializes racing workers), then start the workflow under the
// trigger's delegated identity.
func (r *Runner) processCronTriggers(ctx context.Context) {
	due, err := r.triggers.Due(ctx)
	if err != nil {
		slog.Error("scheduler: listing due triggers failed", "err", err)
		return
	}
	for _, t := range due {
		itemCtx := r.trust.CreateContext(ctx, t.TrustID, t.ProjectID)
		advanced, err := r.triggers.Advance(itemCtx, t)
		if err != nil {
			slog.Error("scheduler: advancing trigger failed", "trigger", t.Name, "err", err)
			continue
		}
		if !advanced {
			continue
		}
		err = r.engine.StartWorkflow(itemCtx, t.WorkflowName, t.WorkflowInput, t.WorkflowParams, cronExecutionDescription)
		if err != nil {
			slog.Error("scheduler: starting workflow from trigger failed",
				"trigger", t.Name, "workflow", t.WorkflowName, "err", err)
		}
	}
}

// processWorkloads hands every unexecuted workload to the configured policy
// under the workload's delegated identity. Per-item failures are logged and
// skipped so one bad workload cannot block the rest.
func (r *Runner) processWorkloads(ctx context.Context) error {
	// The mode is resolved on every tick, so a configuration fix takes
	// effect without a restart.
	mode := r.cfg.ResolveMode()
	policy, ok := r.policies[mode]
	if !ok {
		return fmt.Errorf("%w: unknown scheduler mode %q", dtw.ErrConfig, mode)
	}

	pending, err := r.workloads.ListByExecuted(ctx, false)
	if err != nil {
		return fmt.Errorf("listing pending workloads: %w", err)
	}
	for _, w := range pending {
		itemCtx := r.trust.CreateContext(ctx, w.TrustID, w.ProjectID)
		if err := policy.Handle(itemCtx, w); err != nil {
			slog.Error("scheduler: placing workload failed",
				"workload", w.Name, "policy", policy.Name(), "err", err)
		}
	}
	return nil
}
