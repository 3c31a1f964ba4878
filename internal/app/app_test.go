package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"plantrack/internal/eventbus"
	"plantrack/internal/model"
	"plantrack/internal/notify"
	"plantrack/pkg/logx"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := `
logging:
  console: false
storage:
  path: ` + filepath.Join(dir, "test.db") + `
scheduler:
  horizon_days: 7
notifier:
  enabled: false
`
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := New(cfgPath, notify.LogSink{Log: logx.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func seedDailyDefinition(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()
	if err := a.Store().Frequencies().Insert(ctx, model.Frequency{
		ID:        "f1",
		Name:      "daily-0800",
		CronRules: []string{"0 0 8 ? * SUN,MON,TUE,WED,THU,FRI,SAT *"},
	}); err != nil {
		t.Fatalf("insert frequency: %v", err)
	}
	if err := a.Store().Definitions().Insert(ctx, model.Definition{
		ID: "def-1", Name: "daily-check", FrequencyID: "f1",
	}); err != nil {
		t.Fatalf("insert definition: %v", err)
	}
}

func TestGenerateHorizonMaterializesDailyOccurrences(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	seedDailyDefinition(t, a)
	ctx := context.Background()

	if err := a.GenerateHorizon(ctx); err != nil {
		t.Fatalf("GenerateHorizon: %v", err)
	}

	occs, err := a.Store().Occurrences().ListByDefinition(ctx, "def-1")
	if err != nil {
		t.Fatalf("ListByDefinition: %v", err)
	}
	// A daily rule over a seven-day half-open window fires exactly seven
	// times, wherever in the day the window starts.
	if len(occs) != 7 {
		t.Fatalf("occurrences = %d, want 7", len(occs))
	}
	for _, o := range occs {
		if o.Status != model.OccurrenceMissing || o.CreatedBy != model.SystemActor {
			t.Fatalf("draft = %+v", o)
		}
		if got := o.AvailableTo.Sub(o.AvailableFrom).Hours(); got != 24 {
			t.Fatalf("window = %v hours, want 24", got)
		}
	}

	// Re-running over the overlapping window adds nothing.
	if err := a.GenerateHorizon(ctx); err != nil {
		t.Fatalf("second GenerateHorizon: %v", err)
	}
	occs, err = a.Store().Occurrences().ListByDefinition(ctx, "def-1")
	if err != nil {
		t.Fatalf("ListByDefinition: %v", err)
	}
	if len(occs) != 7 {
		t.Fatalf("occurrences after rerun = %d, want still 7", len(occs))
	}
}

func TestGenerateHorizonWithoutDefinitionsIsNoop(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	if err := a.GenerateHorizon(context.Background()); err != nil {
		t.Fatalf("GenerateHorizon: %v", err)
	}
}

func TestResolveOccurrencesEnablesFirstPending(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	seedDailyDefinition(t, a)
	ctx := context.Background()

	if err := a.GenerateHorizon(ctx); err != nil {
		t.Fatalf("GenerateHorizon: %v", err)
	}

	resolved, err := a.ResolveOccurrences(ctx, "def-1")
	if err != nil {
		t.Fatalf("ResolveOccurrences: %v", err)
	}
	if len(resolved) != 7 {
		t.Fatalf("resolved = %d, want 7", len(resolved))
	}
	enabled := 0
	for i, r := range resolved {
		if !r.Disabled {
			enabled++
			if i != 0 {
				t.Fatalf("enabled occurrence at index %d, want the chronologically first", i)
			}
		}
	}
	if enabled != 1 {
		t.Fatalf("enabled = %d, want exactly 1", enabled)
	}
}

func TestStatusCascadeThroughBus(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	ctx := context.Background()

	if err := a.Store().LinePlans().Insert(ctx, model.LinePlan{ID: "lp1", OrganizationID: "org1", Status: model.StatusInProgress}); err != nil {
		t.Fatalf("insert line plan: %v", err)
	}
	if err := a.Store().ActionPlans().Insert(ctx, model.ActionPlan{ID: "p1", LinePlanID: "lp1", Status: model.StatusInProgress}); err != nil {
		t.Fatalf("insert action plan: %v", err)
	}
	if err := a.Store().Actions().Insert(ctx, model.Action{ID: "a1", ActionPlanID: "p1", Status: model.StatusCompleted}); err != nil {
		t.Fatalf("insert action: %v", err)
	}

	a.Bus().Emit(ctx, eventbus.ActionPlanSyncStatuses, eventbus.PlanEvent{ActionPlanID: "p1"})

	p, err := a.Store().ActionPlans().ByID(ctx, "p1")
	if err != nil {
		t.Fatalf("action plan ByID: %v", err)
	}
	if p.Status != model.StatusCompleted {
		t.Fatalf("action plan status = %s, want COMPLETED", p.Status)
	}
	lp, err := a.Store().LinePlans().ByID(ctx, "lp1")
	if err != nil {
		t.Fatalf("line plan ByID: %v", err)
	}
	if lp.Status != model.StatusCompleted {
		t.Fatalf("line plan status = %s, want COMPLETED", lp.Status)
	}
}
