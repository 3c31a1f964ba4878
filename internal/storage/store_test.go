package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"plantrack/internal/model"
	"plantrack/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestActionRoundtrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	want := model.Action{ID: "a1", ActionPlanID: "p1", Status: model.StatusInProgress, DueDate: due}
	if err := s.Actions().Insert(ctx, want); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Actions().ByID(ctx, "a1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("action mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Actions().ByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestActionQueries(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	seed := []model.Action{
		{ID: "a1", ActionPlanID: "p1", Status: model.StatusInProgress, DueDate: cutoff.AddDate(0, 0, -2)},
		{ID: "a2", ActionPlanID: "p1", Status: model.StatusCompleted, DueDate: cutoff.AddDate(0, 0, -2)},
		{ID: "a3", ActionPlanID: "p2", Status: model.StatusInProgress, DueDate: cutoff.AddDate(0, 0, 2)},
	}
	for _, a := range seed {
		if err := s.Actions().Insert(ctx, a); err != nil {
			t.Fatalf("Insert %s: %v", a.ID, err)
		}
	}

	byPlan, err := s.Actions().AllByActionPlan(ctx, "p1")
	if err != nil {
		t.Fatalf("AllByActionPlan: %v", err)
	}
	if len(byPlan) != 2 {
		t.Fatalf("AllByActionPlan len = %d, want 2", len(byPlan))
	}

	// Only a1 is both IN_PROGRESS and past due.
	expired, err := s.Actions().Expired(ctx, cutoff)
	if err != nil {
		t.Fatalf("Expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "a1" {
		t.Fatalf("Expired = %+v, want just a1", expired)
	}

	byIDs, err := s.Actions().ByIDs(ctx, []string{"a1", "a3", "missing"})
	if err != nil {
		t.Fatalf("ByIDs: %v", err)
	}
	if len(byIDs) != 2 {
		t.Fatalf("ByIDs len = %d, want 2", len(byIDs))
	}

	if err := s.Actions().UpdateStatusMany(ctx, []string{"a1", "a3"}, model.StatusDelayed); err != nil {
		t.Fatalf("UpdateStatusMany: %v", err)
	}
	for _, id := range []string{"a1", "a3"} {
		a, err := s.Actions().ByID(ctx, id)
		if err != nil {
			t.Fatalf("ByID %s: %v", id, err)
		}
		if a.Status != model.StatusDelayed {
			t.Fatalf("%s status = %s, want DELAYED", id, a.Status)
		}
	}
}

func TestPlanStores(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.LinePlans().Insert(ctx, model.LinePlan{ID: "lp1", OrganizationID: "org1", Status: model.StatusInProgress}); err != nil {
		t.Fatalf("line plan Insert: %v", err)
	}
	for _, p := range []model.ActionPlan{
		{ID: "p1", LinePlanID: "lp1", Status: model.StatusInProgress},
		{ID: "p2", LinePlanID: "lp1", Status: model.StatusCompleted},
	} {
		if err := s.ActionPlans().Insert(ctx, p); err != nil {
			t.Fatalf("action plan Insert: %v", err)
		}
	}

	plans, err := s.ActionPlans().AllByLinePlan(ctx, "lp1")
	if err != nil {
		t.Fatalf("AllByLinePlan: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("AllByLinePlan len = %d, want 2", len(plans))
	}

	if err := s.ActionPlans().UpdateStatus(ctx, "p1", model.StatusDelayed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	p, err := s.ActionPlans().ByID(ctx, "p1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if p.Status != model.StatusDelayed {
		t.Fatalf("status = %s, want DELAYED", p.Status)
	}

	if err := s.LinePlans().UpdateStatus(ctx, "lp1", model.StatusCompleted); err != nil {
		t.Fatalf("line plan UpdateStatus: %v", err)
	}
	lp, err := s.LinePlans().ByID(ctx, "lp1")
	if err != nil {
		t.Fatalf("line plan ByID: %v", err)
	}
	if lp.Status != model.StatusCompleted || lp.OrganizationID != "org1" {
		t.Fatalf("line plan = %+v", lp)
	}
}

func TestFrequencyCronRulesRoundtrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	want := model.Frequency{
		ID:        "f1",
		Name:      "daily-0800",
		CronRules: []string{"0 0 8 ? * SUN,MON,TUE,WED,THU,FRI,SAT *"},
	}
	if err := s.Frequencies().Insert(ctx, want); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Frequencies().ByID(ctx, "f1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frequency mismatch (-want +got):\n%s", diff)
	}
}

func TestOccurrenceBulkInsertIsIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	from := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	drafts := []model.TaskOccurrence{
		{DefinitionID: "def-1", DefinitionName: "check", FrequencyID: "f1",
			AvailableFrom: from, AvailableTo: from.Add(24 * time.Hour),
			Status: model.OccurrenceMissing, CreatedBy: model.SystemActor, UpdatedBy: model.SystemActor},
		{DefinitionID: "def-1", DefinitionName: "check", FrequencyID: "f1",
			AvailableFrom: from.AddDate(0, 0, 1), AvailableTo: from.AddDate(0, 0, 1).Add(24 * time.Hour),
			Status: model.OccurrenceMissing, CreatedBy: model.SystemActor, UpdatedBy: model.SystemActor},
	}

	n, err := s.Occurrences().BulkInsert(ctx, drafts)
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}

	// Re-generating the same window inserts nothing new.
	n, err = s.Occurrences().BulkInsert(ctx, drafts)
	if err != nil {
		t.Fatalf("second BulkInsert: %v", err)
	}
	if n != 0 {
		t.Fatalf("inserted = %d, want 0 on overlap", n)
	}

	all, err := s.Occurrences().ListByDefinition(ctx, "def-1")
	if err != nil {
		t.Fatalf("ListByDefinition: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListByDefinition len = %d, want 2", len(all))
	}
	if all[0].ID == "" || all[0].Status != model.OccurrenceMissing {
		t.Fatalf("occurrence = %+v", all[0])
	}

	window, err := s.Occurrences().ListInWindow(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListInWindow: %v", err)
	}
	if len(window) != 1 || !window[0].AvailableFrom.Equal(from) {
		t.Fatalf("ListInWindow = %+v, want only the first draft", window)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	entries := []model.NotificationEntry{
		{ActionID: "a1", ActionPlanID: "p1"},
		{ActionID: "a2", ActionPlanID: "p1"},
	}
	if err := s.Notifications().CreateMany(ctx, entries, model.CauseActionsDelayed); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	pending, err := s.Notifications().ListUndelivered(ctx, 0)
	if err != nil {
		t.Fatalf("ListUndelivered: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Cause != model.CauseActionsDelayed || pending[0].ActionID != "a1" {
		t.Fatalf("notification = %+v", pending[0])
	}

	if err := s.Notifications().MarkDelivered(ctx, []int64{pending[0].ID}, time.Now()); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	pending, err = s.Notifications().ListUndelivered(ctx, 0)
	if err != nil {
		t.Fatalf("ListUndelivered after delivery: %v", err)
	}
	if len(pending) != 1 || pending[0].ActionID != "a2" {
		t.Fatalf("pending after delivery = %+v, want only a2", pending)
	}
}

func TestDefinitionList(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, d := range []model.Definition{
		{ID: "d1", Name: "one", FrequencyID: "f1"},
		{ID: "d2", Name: "two", FrequencyID: "f1"},
	} {
		if err := s.Definitions().Insert(ctx, d); err != nil {
			t.Fatalf("Insert %s: %v", d.ID, err)
		}
	}
	defs, err := s.Definitions().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(defs) != 2 || defs[0].ID != "d1" {
		t.Fatalf("List = %+v", defs)
	}
}
