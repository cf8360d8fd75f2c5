package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/repository"
	"github.com/icclab/loadshift/internal/security"
)

// fakeEngine records StartWorkflow calls together with the identity they
// were made under.
type fakeEngine struct {
	mu    sync.Mutex
	calls []engineCall
	err   error
}

type engineCall struct {
	Workflow    string
	Input       map[string]any
	Description string
	TrustID     string
	ProjectID   string
}

func (e *fakeEngine) StartWorkflow(ctx context.Context, workflowName string, input, params map[string]any, description string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ident, _ := dtw.IdentityFrom(ctx)
	e.calls = append(e.calls, engineCall{
		Workflow:    workflowName,
		Input:       input,
		Description: description,
		TrustID:     ident.TrustID,
		ProjectID:   ident.ProjectID,
	})
	return e.err
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// fixedPrices serves a static curve; nil models an unavailable oracle.
type fixedPrices struct {
	curve *dtw.PriceCurve
}

func (p fixedPrices) GetPrices(ctx context.Context) *dtw.PriceCurve { return p.curve }

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(dtw.PriceTimeLayout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

// julyCurve builds the two-day price snapshot the placement tests run
// against.
func julyCurve(t *testing.T) *dtw.PriceCurve {
	t.Helper()
	day := func(date string, prices []float64) dtw.HourlyPrices {
		out := make(dtw.HourlyPrices, len(prices))
		for h, p := range prices {
			out[mustParse(t, date).Add(time.Duration(h)*time.Hour)] = p
		}
		return out
	}
	return &dtw.PriceCurve{
		IntraDay: day("2016-07-06T00:00:00", []float64{
			24.0, 23, 17.4, 18.5, 20, 26, 28.2, 30.8, 32.3, 32, 39.6, 44.9,
			32, 33, 31.8, 29.5, 30.5, 30.6, 31, 32, 36.2, 29.2, 34.4, 33.6,
		}),
		DayAhead: day("2016-07-07T00:00:00", []float64{
			30.4, 27.3, 27, 19, 20.5, 27.2, 30.4, 34.8, 36.2, 35.4, 36.5, 46,
			42, 34, 43, 33.8, 34.55, 36, 37.6, 38.1, 33.5, 37.5, 37, 35,
		}),
	}
}

type policyFixture struct {
	workloads *repository.MemoryWorkloadRepository
	triggers  *repository.MemoryTriggerRepository
	trigSvc   *TriggerService
	engine    *fakeEngine
	now       time.Time
	deps      policyDeps
}

func newPolicyFixture(t *testing.T, now time.Time, curve *dtw.PriceCurve) *policyFixture {
	t.Helper()
	f := &policyFixture{
		workloads: repository.NewMemoryWorkloadRepository(),
		triggers:  repository.NewMemoryTriggerRepository(),
		engine:    &fakeEngine{},
		now:       now,
	}
	clock := func() time.Time { return f.now }
	f.trigSvc = NewTriggerService(f.triggers, clock)
	f.deps = policyDeps{
		workloads: f.workloads,
		triggers:  f.trigSvc,
		engine:    f.engine,
		prices:    fixedPrices{curve: curve},
		nowFn:     clock,
	}
	return f
}

func (f *policyFixture) addWorkload(t *testing.T, w *dtw.Workload) *dtw.Workload {
	t.Helper()
	if w.ID == "" {
		w.ID = "wl-" + w.Name
	}
	if err := f.workloads.Create(context.Background(), w); err != nil {
		t.Fatalf("create workload: %v", err)
	}
	return w
}

func TestImmediatePolicy_DispatchesAndFlags(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, nil)
	w := f.addWorkload(t, &dtw.Workload{
		Name:          "dtw-1",
		WorkflowName:  "batch_load",
		WorkflowInput: map[string]any{"rounds": 3},
		Deadline:      mustParse(t, "2016-07-06T23:00:00"),
		JobDuration:   75,
		TrustID:       "trust-1",
		ProjectID:     "project-1",
	})

	policy := &ImmediatePolicy{f.deps}
	ctx := dtw.WithIdentity(context.Background(), dtw.Identity{TrustID: "trust-1", ProjectID: "project-1"})
	if err := policy.Handle(ctx, w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if f.engine.callCount() != 1 {
		t.Fatalf("expected 1 engine call, got %d", f.engine.callCount())
	}
	call := f.engine.calls[0]
	if call.Workflow != "batch_load" {
		t.Errorf("expected workflow batch_load, got %q", call.Workflow)
	}
	if call.Description != "DTW Workflow execution created." {
		t.Errorf("unexpected description %q", call.Description)
	}
	if call.TrustID != "trust-1" {
		t.Errorf("expected dispatch under trust-1, got %q", call.TrustID)
	}

	stored, err := f.workloads.Get(context.Background(), "dtw-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.Executed {
		t.Error("expected executed flag to be set")
	}
	if stored.Scheduled {
		t.Error("expected scheduled flag to stay clear")
	}
}

func TestImmediatePolicy_SkipsWhenFlagRaceLost(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, nil)
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-1",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T23:00:00"),
	})

	// Another replica claims the workload first.
	if won, err := f.workloads.MarkExecuted(context.Background(), w.ID); err != nil || !won {
		t.Fatalf("priming flag failed: won=%v err=%v", won, err)
	}

	policy := &ImmediatePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if f.engine.callCount() != 0 {
		t.Errorf("expected no engine call after a lost flag race, got %d", f.engine.callCount())
	}
}

func TestLastMinutePolicy_SchedulesAtLatestAdmissibleStart(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, nil)
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-1",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T23:00:00"),
		JobDuration:  75,
		TrustID:      "trust-1",
		ProjectID:    "project-1",
	})

	policy := &LastMinutePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if f.engine.callCount() != 0 {
		t.Fatalf("expected no immediate dispatch, got %d engine calls", f.engine.callCount())
	}

	trig, err := f.triggers.Get(context.Background(), "dtw-1")
	if err != nil {
		t.Fatalf("trigger not created: %v", err)
	}
	want := mustParse(t, "2016-07-06T21:45:00")
	if !trig.NextExecutionTime.Equal(want) {
		t.Errorf("expected trigger at %v, got %v", want, trig.NextExecutionTime)
	}
	if trig.RemainingExecutions == nil || *trig.RemainingExecutions != 1 {
		t.Errorf("expected one-shot trigger, got remaining=%v", trig.RemainingExecutions)
	}
	if trig.TrustID != "trust-1" {
		t.Errorf("expected trust to propagate to the trigger, got %q", trig.TrustID)
	}

	stored, err := f.workloads.Get(context.Background(), "dtw-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.Scheduled {
		t.Error("expected scheduled flag to be set")
	}
	if stored.Executed {
		t.Error("expected executed flag to stay clear")
	}
}

func TestLastMinutePolicy_SkipsAlreadyScheduled(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, nil)
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-1",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T23:00:00"),
		Scheduled:    true,
	})

	policy := &LastMinutePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if _, err := f.triggers.Get(context.Background(), "dtw-1"); err == nil {
		t.Error("expected no trigger for an already scheduled workload")
	}
}

func TestEnergyAwarePolicy_SchedulesAtCheapestHour(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, julyCurve(t))
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-1",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T23:00:00"),
		JobDuration:  75,
		TrustID:      "trust-1",
		ProjectID:    "project-1",
	})

	policy := &EnergyAwarePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	trig, err := f.triggers.Get(context.Background(), "dtw-1")
	if err != nil {
		t.Fatalf("trigger not created: %v", err)
	}
	want := mustParse(t, "2016-07-06T21:00:00")
	if !trig.NextExecutionTime.Equal(want) {
		t.Errorf("expected trigger at the cheapest hour %v, got %v", want, trig.NextExecutionTime)
	}
	if trig.TrustID != "trust-1" {
		t.Errorf("expected trust to propagate to the trigger, got %q", trig.TrustID)
	}
	if f.engine.callCount() != 0 {
		t.Errorf("expected no immediate dispatch, got %d engine calls", f.engine.callCount())
	}
}

func TestEnergyAwarePolicy_LongJobRunsImmediately(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, julyCurve(t))
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-long",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-08T23:00:00"),
		JobDuration:  400,
	})

	policy := &EnergyAwarePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if f.engine.callCount() != 1 {
		t.Fatalf("expected immediate dispatch for a long job, got %d engine calls", f.engine.callCount())
	}
	if _, err := f.triggers.Get(context.Background(), "dtw-long"); err == nil {
		t.Error("expected no trigger for a long job")
	}
	stored, err := f.workloads.Get(context.Background(), "dtw-long")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.Executed {
		t.Error("expected executed flag to be set")
	}
}

func TestEnergyAwarePolicy_FallsBackWithoutPrices(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, nil) // oracle unavailable
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-1",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T23:00:00"),
		JobDuration:  75,
	})

	policy := &EnergyAwarePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	trig, err := f.triggers.Get(context.Background(), "dtw-1")
	if err != nil {
		t.Fatalf("trigger not created: %v", err)
	}
	want := now.Add(2 * time.Minute)
	if !trig.NextExecutionTime.Equal(want) {
		t.Errorf("expected fallback start %v, got %v", want, trig.NextExecutionTime)
	}
}

func TestEnergyAwarePolicy_FallsBackWhenNoAdmissibleSlot(t *testing.T) {
	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, julyCurve(t))
	// Deadline so tight no whole price slot fits.
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-tight",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T16:30:00"),
		JobDuration:  30,
	})

	policy := &EnergyAwarePolicy{f.deps}
	if err := policy.Handle(context.Background(), w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	trig, err := f.triggers.Get(context.Background(), "dtw-tight")
	if err != nil {
		t.Fatalf("trigger not created: %v", err)
	}
	want := now.Add(2 * time.Minute)
	if !trig.NextExecutionTime.Equal(want) {
		t.Errorf("expected fallback start %v, got %v", want, trig.NextExecutionTime)
	}
}

func TestPolicies_TrustRoundTripsThroughSecurity(t *testing.T) {
	sec := security.New("test-key")
	ctx := dtw.WithIdentity(context.Background(), dtw.Identity{ProjectID: "project-9"})
	values := map[string]any{}
	if err := sec.AddTrustID(ctx, values); err != nil {
		t.Fatalf("AddTrustID failed: %v", err)
	}
	trustID := values["trust_id"].(string)

	now := mustParse(t, "2016-07-06T15:43:00")
	f := newPolicyFixture(t, now, nil)
	w := f.addWorkload(t, &dtw.Workload{
		Name:         "dtw-1",
		WorkflowName: "batch_load",
		Deadline:     mustParse(t, "2016-07-06T23:00:00"),
		JobDuration:  60,
		TrustID:      trustID,
		ProjectID:    "project-9",
	})

	policy := &LastMinutePolicy{f.deps}
	itemCtx := sec.CreateContext(context.Background(), w.TrustID, w.ProjectID)
	if err := policy.Handle(itemCtx, w); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	trig, err := f.triggers.Get(context.Background(), "dtw-1")
	if err != nil {
		t.Fatalf("trigger not created: %v", err)
	}
	project, err := sec.ProjectFromTrust(trig.TrustID)
	if err != nil {
		t.Fatalf("trigger carries an unverifiable trust token: %v", err)
	}
	if project != "project-9" {
		t.Errorf("expected trust for project-9, got %q", project)
	}
}
