package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"plantrack/internal/eventbus"
	"plantrack/internal/model"
	"plantrack/pkg/logx"
)

// fakeRepo keeps notification rows in memory.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[int64]model.Notification{}}
}

func (r *fakeRepo) CreateMany(_ context.Context, entries []model.NotificationEntry, cause model.NotificationCause) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.nextID++
		r.rows[r.nextID] = model.Notification{
			ID: r.nextID, ActionID: e.ActionID, ActionPlanID: e.ActionPlanID,
			Cause: cause, CreatedAt: time.Now(),
		}
	}
	return nil
}

func (r *fakeRepo) ListUndelivered(_ context.Context, limit int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for id := int64(1); id <= r.nextID && len(out) < limit; id++ {
		n, ok := r.rows[id]
		if ok && n.DeliveredAt.IsZero() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkDelivered(_ context.Context, ids []int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		n := r.rows[id]
		n.DeliveredAt = at
		r.rows[id] = n
	}
	return nil
}

func (r *fakeRepo) undeliveredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.rows {
		if n.DeliveredAt.IsZero() {
			count++
		}
	}
	return count
}

// captureSink records every delivered notification.
type captureSink struct {
	mu   sync.Mutex
	seen []model.Notification
}

func (s *captureSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	s.seen = append(s.seen, n)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func TestRegisterPersistsNotificationEvents(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	svc := New(Config{}, repo, &captureSink{}, logx.Nop())
	bus := eventbus.New(logx.Nop())
	svc.Register(bus)

	bus.Emit(context.Background(), eventbus.NotifyActionsDelayed, eventbus.NotificationEvent{
		Entries: []model.NotificationEntry{
			{ActionID: "a1", ActionPlanID: "p1"},
			{ActionID: "a2", ActionPlanID: "p1"},
		},
		Cause: model.CauseActionsDelayed,
	})

	pending, err := repo.ListUndelivered(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListUndelivered: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Cause != model.CauseActionsDelayed {
		t.Fatalf("cause = %s", pending[0].Cause)
	}
}

func TestServiceDrainsAndDelivers(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	sink := &captureSink{}
	_ = repo.CreateMany(context.Background(), []model.NotificationEntry{
		{ActionID: "a1", ActionPlanID: "p1"},
		{ActionID: "a2", ActionPlanID: "p1"},
		{ActionID: "a3", ActionPlanID: "p2"},
	}, model.CauseActionCreated)

	svc := New(Config{
		Enabled:      true,
		Workers:      2,
		QueueSize:    16,
		RatePerSec:   100,
		PollInterval: 10 * time.Millisecond,
	}, repo, sink, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sink.count() == 3 && repo.undeliveredCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("delivered %d of 3, undelivered left %d", sink.count(), repo.undeliveredCount())
}

func TestServiceDisabledDoesNotStart(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	sink := &captureSink{}
	_ = repo.CreateMany(context.Background(), []model.NotificationEntry{{ActionID: "a1"}}, model.CauseActionCreated)

	svc := New(Config{Enabled: false, PollInterval: 5 * time.Millisecond}, repo, sink, logx.Nop())
	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatalf("disabled service delivered %d notifications", sink.count())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	svc := New(Config{Enabled: true}, newFakeRepo(), &captureSink{}, logx.Nop())
	svc.Start(context.Background())
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}
