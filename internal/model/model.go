package model

import "time"

// Frequency is a named, immutable set of UTC cron rules produced once
// at creation time from a user's local hour/day selection.
type Frequency struct {
	ID        string
	Name      string
	CronRules []string
}

// Definition is a logical, recurring task type (e.g. "check machine 1")
// that occurrences are generated for.
type Definition struct {
	ID          string
	Name        string
	FrequencyID string
}

// TaskOccurrence is one concrete instance of a definition within its
// [AvailableFrom, AvailableTo) window. Occurrences are created in bulk
// by the generator and never deleted; checklist submission flips the
// status and stamps the submitting user.
type TaskOccurrence struct {
	ID             string
	DefinitionID   string
	DefinitionName string
	FrequencyID    string
	AvailableFrom  time.Time
	AvailableTo    time.Time
	Status         OccurrenceStatus
	CreatedBy      string
	UpdatedBy      string
}

// Action is a leaf work item. Read-only to this core except for bulk
// DELAYED transitions triggered by expiry scans.
type Action struct {
	ID           string
	ActionPlanID string
	Status       Status
	DueDate      time.Time
}

// ActionPlan status is exclusively computed from its actions.
type ActionPlan struct {
	ID         string
	LinePlanID string
	Status     Status
}

// LinePlan status is exclusively computed from its action plans.
type LinePlan struct {
	ID             string
	OrganizationID string
	Status         Status
}

// NotificationCause identifies the leaf mutation that produced a batch
// of notification rows.
type NotificationCause string

const (
	CauseActionCreated  NotificationCause = "ACTION_CREATED"
	CauseActionUpdated  NotificationCause = "ACTION_UPDATED"
	CauseActionsDelayed NotificationCause = "ACTIONS_DELAYED"
)

// NotificationEntry is one pending notification row. Content rendering
// and transport belong to the surrounding service.
type NotificationEntry struct {
	ActionID     string
	ActionPlanID string
}

// Notification is a persisted notification row awaiting delivery.
type Notification struct {
	ID           int64
	ActionID     string
	ActionPlanID string
	Cause        NotificationCause
	CreatedAt    time.Time
	DeliveredAt  time.Time
}
