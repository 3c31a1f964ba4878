// Package status computes aggregate work-item status from child
// statuses with fixed precedence.
package status

import "plantrack/internal/model"

// Aggregate derives a parent status from its children's statuses:
//
//	DELAYED if any child is delayed;
//	else COMPLETED if every child is COMPLETED or REJECTED;
//	else IN_PROGRESS.
//
// An empty child set is IN_PROGRESS; it never reads as completed or
// delayed. The same shape applies Action→ActionPlan and
// ActionPlan→LinePlan, and re-running it over unchanged children is
// idempotent by construction (pure function of the input).
func Aggregate(children []model.Status) model.Status {
	if len(children) == 0 {
		return model.StatusInProgress
	}
	allClosed := true
	for _, s := range children {
		if s == model.StatusDelayed {
			return model.StatusDelayed
		}
		if !s.Closed() {
			allClosed = false
		}
	}
	if allClosed {
		return model.StatusCompleted
	}
	return model.StatusInProgress
}

// OfActions is Aggregate over a slice of actions.
func OfActions(actions []model.Action) model.Status {
	statuses := make([]model.Status, len(actions))
	for i, a := range actions {
		statuses[i] = a.Status
	}
	return Aggregate(statuses)
}

// OfActionPlans is Aggregate over a slice of action plans.
func OfActionPlans(plans []model.ActionPlan) model.Status {
	statuses := make([]model.Status, len(plans))
	for i, p := range plans {
		statuses[i] = p.Status
	}
	return Aggregate(statuses)
}
