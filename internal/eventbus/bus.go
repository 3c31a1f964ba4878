// Package eventbus provides the in-process signal that keeps the
// Action → ActionPlan → LinePlan hierarchy consistent.
//
// Contract:
//   - Emit runs handlers synchronously, in registration order.
//   - Delivery is at-most-once per registered handler, in-process only.
//   - Handler errors and panics are logged, never returned to the
//     emitter (fire-and-forget). Callers that need a cascade's result
//     call the orchestrator methods directly instead.
//
// There is no unregistration and no wildcard matching; the event
// taxonomy is closed so registrations stay checkable.
package eventbus

import (
	"context"
	"sync"
	"time"

	"plantrack/internal/model"
	"plantrack/pkg/logx"
)

// Event names consumed and emitted by the propagation engine.
type Event string

const (
	ActionCreated          Event = "action:created"
	ActionUpdated          Event = "action:updated"
	ActionDeleted          Event = "action:deleted"
	ActionImported         Event = "action:imported"
	ActionSyncStatuses     Event = "action:syncStatuses"
	ActionPlanSyncStatuses Event = "actionPlan:syncStatuses"

	NotifyActionCreated  Event = "notification:actionCreated"
	NotifyActionUpdated  Event = "notification:actionUpdated"
	NotifyActionsDelayed Event = "notification:actionsDelayed"
)

// Payload shapes, one per event family.

// ActionEvent accompanies action:created|updated|deleted.
// Deleted events carry only the plan id.
type ActionEvent struct {
	ID           string
	ActionPlanID string
}

// PlanEvent accompanies actionPlan:syncStatuses.
type PlanEvent struct {
	ActionPlanID string
}

// ExpiryEvent accompanies action:imported and action:syncStatuses.
// IDs restricts the scan when non-empty.
type ExpiryEvent struct {
	IDs        []string
	ExpiryDate time.Time
}

// NotificationEvent accompanies the notification:* events.
type NotificationEvent struct {
	Entries []model.NotificationEntry
	Cause   model.NotificationCause
}

type Handler func(ctx context.Context, payload any) error

// Bus is a minimal synchronous publish/subscribe dispatcher keyed by
// event name. Safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	log      logx.Logger
}

func New(log logx.Logger) *Bus {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bus{handlers: map[Event][]Handler{}, log: log}
}

// On registers a handler for a named event. Multiple handlers per name
// fan out in registration order.
func (b *Bus) On(ev Event, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[ev] = append(b.handlers[ev], h)
	b.mu.Unlock()
}

// Emit invokes all handlers registered for ev with the given payload.
// An event with no handlers is a no-op.
func (b *Bus) Emit(ctx context.Context, ev Event, payload any) {
	b.mu.RLock()
	hs := b.handlers[ev]
	b.mu.RUnlock()

	for _, h := range hs {
		b.dispatch(ctx, ev, h, payload)
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", logx.String("event", string(ev)), logx.Any("panic", r))
		}
	}()
	if err := h(ctx, payload); err != nil {
		b.log.Warn("event handler failed", logx.String("event", string(ev)), logx.Err(err))
	}
}
