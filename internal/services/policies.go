package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
	"github.com/icclab/loadshift/internal/repository"
	"github.com/icclab/loadshift/internal/solver"
)

const (
	// Jobs longer than six hours span too much of the 48-hour price horizon
	// to gain from shifting; they start immediately instead.
	longTermThresholdMinutes = 360

	// Grace delay applied when no usable price data is available.
	priceFallbackDelay = 2 * time.Minute
)

const workloadExecutionDescription = "DTW Workflow execution created."

// PlacementPolicy decides when a pending workload runs: now, at the latest
// admissible moment, or at the cheapest hour of the price horizon.
type PlacementPolicy interface {
	Name() string
	Handle(ctx context.Context, w *dtw.Workload) error
}

// policyDeps are the collaborators shared by all placement policies.
type policyDeps struct {
	workloads repository.WorkloadRepository
	triggers  *TriggerService
	engine    ports.WorkflowEngine
	prices    ports.PriceSource
	nowFn     ports.Clock
}

// dispatchNow flips the executed flag and starts the workflow. The flip is
// conditional: when a concurrent replica already claimed the workload the
// dispatch is skipped silently.
func (d policyDeps) dispatchNow(ctx context.Context, w *dtw.Workload) error {
	won, err := d.workloads.MarkExecuted(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	if !won {
		return nil
	}
	return d.engine.StartWorkflow(ctx, w.WorkflowName, w.WorkflowInput, w.WorkflowParams, workloadExecutionDescription)
}

// scheduleAt flips the scheduled flag and creates a one-shot trigger firing
// at startTime. Losing the flag race means another replica scheduled the
// workload already.
func (d policyDeps) scheduleAt(ctx context.Context, w *dtw.Workload, startTime time.Time) error {
	won, err := d.workloads.MarkScheduled(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("mark scheduled: %w", err)
	}
	if !won {
		return nil
	}
	if err := d.triggers.CreateOneShot(ctx, w.Name, w, startTime); err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	slog.Info("scheduler: workload scheduled",
		"workload", w.Name, "start_time", startTime, "deadline", w.Deadline)
	return nil
}

// ImmediatePolicy starts every pending workload right away.
type ImmediatePolicy struct {
	policyDeps
}

func (p *ImmediatePolicy) Name() string { return "immediately" }

func (p *ImmediatePolicy) Handle(ctx context.Context, w *dtw.Workload) error {
	return p.dispatchNow(ctx, w)
}

// LastMinutePolicy defers every workload to the latest admissible start:
// deadline minus estimated job duration.
type LastMinutePolicy struct {
	policyDeps
}

func (p *LastMinutePolicy) Name() string { return "last-minute" }

func (p *LastMinutePolicy) Handle(ctx context.Context, w *dtw.Workload) error {
	if w.Scheduled {
		return nil
	}
	start := w.Deadline.Add(-time.Duration(w.JobDuration) * time.Minute)
	return p.scheduleAt(ctx, w, start)
}

// EnergyAwarePolicy places each workload at the cheapest admissible hour of
// the energy price horizon. Long jobs run immediately; when no usable price
// data exists the start falls back to a short grace delay.
type EnergyAwarePolicy struct {
	policyDeps
}

func (p *EnergyAwarePolicy) Name() string { return "energy-aware" }

func (p *EnergyAwarePolicy) Handle(ctx context.Context, w *dtw.Workload) error {
	if w.JobDuration > longTermThresholdMinutes {
		return p.dispatchNow(ctx, w)
	}
	if w.Scheduled {
		return nil
	}
	return p.scheduleAt(ctx, w, p.determineOptimalScheduling(ctx, w))
}

// determineOptimalScheduling picks the price-optimal start for w, or now
// plus a grace delay when the oracle or the solver cannot produce one.
func (p *EnergyAwarePolicy) determineOptimalScheduling(ctx context.Context, w *dtw.Workload) time.Time {
	now := p.nowFn()
	curve := p.prices.GetPrices(ctx)
	if curve == nil {
		slog.Warn("scheduler: no price data, using fallback start", "workload", w.Name)
		return now.Add(priceFallbackDelay)
	}
	start, ok := solver.OptimalStart(now, curve, w.JobDuration, w.Deadline)
	if !ok {
		slog.Warn("scheduler: no admissible price slot, using fallback start", "workload", w.Name)
		return now.Add(priceFallbackDelay)
	}
	return start
}
