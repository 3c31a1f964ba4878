package propagate

import (
	"context"
	"time"

	"plantrack/internal/model"
)

// Repository capability sets consumed by the orchestrator. Implemented
// by internal/storage; kept narrow so tests can fake them structurally.

type ActionRepo interface {
	AllByActionPlan(ctx context.Context, actionPlanID string) ([]model.Action, error)
	ByID(ctx context.Context, id string) (model.Action, error)
	ByIDs(ctx context.Context, ids []string) ([]model.Action, error)
	// Expired returns actions still IN_PROGRESS whose due date lies
	// strictly before the given instant.
	Expired(ctx context.Context, before time.Time) ([]model.Action, error)
	UpdateStatusMany(ctx context.Context, ids []string, st model.Status) error
}

type ActionPlanRepo interface {
	ByID(ctx context.Context, id string) (model.ActionPlan, error)
	AllByLinePlan(ctx context.Context, linePlanID string) ([]model.ActionPlan, error)
	UpdateStatus(ctx context.Context, id string, st model.Status) error
}

type LinePlanRepo interface {
	ByID(ctx context.Context, id string) (model.LinePlan, error)
	UpdateStatus(ctx context.Context, id string, st model.Status) error
}
