package model

// Status is the shared work-item status vocabulary.
//
// Actions use all four values. ActionPlans use everything except
// REJECTED. LinePlans carry REJECTED in the schema for symmetry but it
// is never produced at that level.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusDelayed    Status = "DELAYED"
	StatusRejected   Status = "REJECTED"
)

// OccurrenceStatus is the lifecycle of a generated checklist occurrence.
type OccurrenceStatus string

const (
	OccurrenceMissing        OccurrenceStatus = "MISSING"
	OccurrenceDone           OccurrenceStatus = "DONE"
	OccurrenceActionRequired OccurrenceStatus = "ACTION_REQUIRED"
)

// SystemActor marks machine-generated, untouched rows.
// An occurrence whose updated_by is still SystemActor has never been
// submitted by a user.
const SystemActor = "SYSTEM"

// Closed reports whether a status counts as "done" for aggregation
// purposes. REJECTED children do not block completion of their parent.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusRejected
}

// LinePlanHealth is the two-level vocabulary used by checklist views:
// a line plan is OK only when its aggregate is COMPLETED.
type LinePlanHealth string

const (
	HealthOK  LinePlanHealth = "OK"
	HealthNOK LinePlanHealth = "NOK"
)

func HealthOf(s Status) LinePlanHealth {
	if s == StatusCompleted {
		return HealthOK
	}
	return HealthNOK
}
