package propagate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantrack/internal/eventbus"
	"plantrack/internal/model"
	"plantrack/internal/status"
	"plantrack/pkg/logx"
)

// Orchestrator recomputes aggregate statuses in response to leaf
// events. Handlers are thin wrappers over the exported Sync/Expire
// methods, so callers that need a cascade's outcome can invoke those
// directly instead of going through the bus.
type Orchestrator struct {
	actions   ActionRepo
	plans     ActionPlanRepo
	linePlans LinePlanRepo

	bus *eventbus.Bus
	log logx.Logger

	failClosed bool
}

type Option func(*Orchestrator)

// WithFailClosed makes repository read errors abort the cascade instead
// of degrading to an empty child set.
func WithFailClosed() Option {
	return func(o *Orchestrator) { o.failClosed = true }
}

func New(actions ActionRepo, plans ActionPlanRepo, linePlans LinePlanRepo, bus *eventbus.Bus, log logx.Logger, opts ...Option) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	o := &Orchestrator{
		actions:   actions,
		plans:     plans,
		linePlans: linePlans,
		bus:       bus,
		log:       log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register subscribes the orchestrator to the action and plan events it
// consumes.
func (o *Orchestrator) Register(bus *eventbus.Bus) {
	bus.On(eventbus.ActionCreated, func(ctx context.Context, payload any) error {
		ev, err := actionPayload(eventbus.ActionCreated, payload)
		if err != nil {
			return err
		}
		return o.handleActionMutation(ctx, ev, model.CauseActionCreated, eventbus.NotifyActionCreated)
	})
	bus.On(eventbus.ActionUpdated, func(ctx context.Context, payload any) error {
		ev, err := actionPayload(eventbus.ActionUpdated, payload)
		if err != nil {
			return err
		}
		return o.handleActionMutation(ctx, ev, model.CauseActionUpdated, eventbus.NotifyActionUpdated)
	})
	bus.On(eventbus.ActionDeleted, func(ctx context.Context, payload any) error {
		ev, err := actionPayload(eventbus.ActionDeleted, payload)
		if err != nil {
			return err
		}
		return o.SyncActionPlan(ctx, ev.ActionPlanID)
	})
	bus.On(eventbus.ActionImported, o.expiryHandler(eventbus.ActionImported))
	bus.On(eventbus.ActionSyncStatuses, o.expiryHandler(eventbus.ActionSyncStatuses))
	bus.On(eventbus.ActionPlanSyncStatuses, func(ctx context.Context, payload any) error {
		ev, ok := payload.(eventbus.PlanEvent)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", eventbus.ActionPlanSyncStatuses, payload)
		}
		return o.SyncActionPlan(ctx, ev.ActionPlanID)
	})
}

func (o *Orchestrator) expiryHandler(ev eventbus.Event) eventbus.Handler {
	return func(ctx context.Context, payload any) error {
		exp, ok := payload.(eventbus.ExpiryEvent)
		if !ok {
			return fmt.Errorf("%s: unexpected payload %T", ev, payload)
		}
		return o.ExpireOverdue(ctx, exp.ExpiryDate, exp.IDs)
	}
}

func actionPayload(ev eventbus.Event, payload any) (eventbus.ActionEvent, error) {
	ae, ok := payload.(eventbus.ActionEvent)
	if !ok {
		return eventbus.ActionEvent{}, fmt.Errorf("%s: unexpected payload %T", ev, payload)
	}
	return ae, nil
}

func (o *Orchestrator) handleActionMutation(ctx context.Context, ev eventbus.ActionEvent, cause model.NotificationCause, notify eventbus.Event) error {
	planID := ev.ActionPlanID
	if planID == "" && ev.ID != "" {
		// Callers that only know the action id still get a full cascade.
		act, err := o.actions.ByID(ctx, ev.ID)
		if err != nil {
			if ferr := o.readFailed("action by id", err, logx.String("action", ev.ID)); ferr != nil {
				return ferr
			}
			return nil
		}
		planID = act.ActionPlanID
	}

	o.emitNotification(ctx, notify, []model.NotificationEntry{{ActionID: ev.ID, ActionPlanID: planID}}, cause)
	return o.SyncActionPlan(ctx, planID)
}

// SyncActionPlan recomputes one action plan's status from its actions,
// persists it if it changed, and cascades to the owning line plan.
func (o *Orchestrator) SyncActionPlan(ctx context.Context, actionPlanID string) error {
	actions, err := o.actions.AllByActionPlan(ctx, actionPlanID)
	if err != nil {
		if ferr := o.readFailed("actions by plan", err, logx.String("action_plan", actionPlanID)); ferr != nil {
			return ferr
		}
		actions = nil
	}
	agg := status.OfActions(actions)

	plan, err := o.plans.ByID(ctx, actionPlanID)
	if err != nil {
		// Without the plan row there is nothing to update and no line
		// plan to cascade to.
		if ferr := o.readFailed("action plan by id", err, logx.String("action_plan", actionPlanID)); ferr != nil {
			return ferr
		}
		return nil
	}

	if plan.Status != agg {
		if err := o.plans.UpdateStatus(ctx, plan.ID, agg); err != nil {
			return fmt.Errorf("update action plan %s status: %w", plan.ID, err)
		}
		o.log.Info("action plan status recomputed",
			logx.String("action_plan", plan.ID),
			logx.String("from", string(plan.Status)),
			logx.String("to", string(agg)))
	}

	return o.SyncLinePlan(ctx, plan.LinePlanID)
}

// SyncLinePlan recomputes one line plan's status from its action plans
// and persists it if it changed.
func (o *Orchestrator) SyncLinePlan(ctx context.Context, linePlanID string) error {
	plans, err := o.plans.AllByLinePlan(ctx, linePlanID)
	if err != nil {
		if ferr := o.readFailed("action plans by line plan", err, logx.String("line_plan", linePlanID)); ferr != nil {
			return ferr
		}
		plans = nil
	}
	agg := status.OfActionPlans(plans)

	lp, err := o.linePlans.ByID(ctx, linePlanID)
	if err != nil {
		if ferr := o.readFailed("line plan by id", err, logx.String("line_plan", linePlanID)); ferr != nil {
			return ferr
		}
		return nil
	}

	if lp.Status == agg {
		return nil
	}
	if err := o.linePlans.UpdateStatus(ctx, lp.ID, agg); err != nil {
		return fmt.Errorf("update line plan %s status: %w", lp.ID, err)
	}
	o.log.Info("line plan status recomputed",
		logx.String("line_plan", lp.ID),
		logx.String("from", string(lp.Status)),
		logx.String("to", string(agg)))
	return nil
}

// ExpireOverdue bulk-transitions overdue IN_PROGRESS actions to
// DELAYED. When ids is non-empty the scan is restricted to those
// actions (the import flow); otherwise the whole table is scanned.
// Every affected action plan gets one cascade, deduplicated.
func (o *Orchestrator) ExpireOverdue(ctx context.Context, expiry time.Time, ids []string) error {
	expired, err := o.findExpired(ctx, expiry, ids)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	actionIDs := make([]string, 0, len(expired))
	entries := make([]model.NotificationEntry, 0, len(expired))
	planIDs := make([]string, 0, len(expired))
	seenPlans := make(map[string]struct{}, len(expired))
	for _, a := range expired {
		actionIDs = append(actionIDs, a.ID)
		entries = append(entries, model.NotificationEntry{ActionID: a.ID, ActionPlanID: a.ActionPlanID})
		if _, ok := seenPlans[a.ActionPlanID]; !ok {
			seenPlans[a.ActionPlanID] = struct{}{}
			planIDs = append(planIDs, a.ActionPlanID)
		}
	}

	if err := o.actions.UpdateStatusMany(ctx, actionIDs, model.StatusDelayed); err != nil {
		return fmt.Errorf("mark actions delayed: %w", err)
	}
	o.log.Info("overdue actions delayed",
		logx.Int("count", len(actionIDs)),
		logx.Time("expiry", expiry))

	o.emitNotification(ctx, eventbus.NotifyActionsDelayed, entries, model.CauseActionsDelayed)

	var errs []error
	for _, pid := range planIDs {
		if err := o.SyncActionPlan(ctx, pid); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) findExpired(ctx context.Context, expiry time.Time, ids []string) ([]model.Action, error) {
	if len(ids) == 0 {
		expired, err := o.actions.Expired(ctx, expiry)
		if err != nil {
			if ferr := o.readFailed("expired actions", err, logx.Time("expiry", expiry)); ferr != nil {
				return nil, ferr
			}
			return nil, nil
		}
		return expired, nil
	}

	list, err := o.actions.ByIDs(ctx, ids)
	if err != nil {
		if ferr := o.readFailed("actions by ids", err, logx.Int("ids", len(ids))); ferr != nil {
			return nil, ferr
		}
		return nil, nil
	}
	expired := list[:0]
	for _, a := range list {
		if a.Status == model.StatusInProgress && a.DueDate.Before(expiry) {
			expired = append(expired, a)
		}
	}
	return expired, nil
}

func (o *Orchestrator) emitNotification(ctx context.Context, ev eventbus.Event, entries []model.NotificationEntry, cause model.NotificationCause) {
	if o.bus == nil {
		return
	}
	o.bus.Emit(ctx, ev, eventbus.NotificationEvent{Entries: entries, Cause: cause})
}

// readFailed implements the fail-open read policy: by default a failed
// read is logged and the cascade continues with an empty result. The
// aggregate may be temporarily wrong and self-heals on the next event.
func (o *Orchestrator) readFailed(what string, err error, fields ...logx.Field) error {
	if o.failClosed {
		return fmt.Errorf("%s: %w", what, err)
	}
	o.log.Warn("read failed, continuing with empty result",
		append([]logx.Field{logx.String("read", what), logx.Err(err)}, fields...)...)
	return nil
}
