// Package notify records notification rows produced by the propagation
// engine and drains them to a pluggable delivery sink.
//
// The pipeline is queue + worker pool + rate limit. What a delivered
// notification looks like (rendering, transport) is the sink owner's
// problem, as is any retry policy: a failed delivery stays undelivered
// and is picked up by a later drain.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"plantrack/internal/eventbus"
	"plantrack/internal/model"
	"plantrack/pkg/logx"
)

// Sink delivers a single notification row.
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Repo is the persistence capability the service needs.
type Repo interface {
	CreateMany(ctx context.Context, entries []model.NotificationEntry, cause model.NotificationCause) error
	ListUndelivered(ctx context.Context, limit int) ([]model.Notification, error)
	MarkDelivered(ctx context.Context, ids []int64, at time.Time) error
}

type Config struct {
	Enabled      bool
	Workers      int
	QueueSize    int
	RatePerSec   int
	PollInterval time.Duration
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	cfg     Config
	repo    Repo
	sink    Sink
	log     logx.Logger
	limiter *rate.Limiter

	queue  chan model.Notification
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// in-flight rows, so a drain tick never re-enqueues a row a worker
	// is still delivering
	imu      sync.Mutex
	inflight map[int64]struct{}
}

func New(cfg Config, repo Repo, sink Sink, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{repo: repo, sink: sink, log: log, inflight: map[int64]struct{}{}}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Register subscribes the service to the notification:* events; each
// event becomes a batch of persisted rows.
func (s *Service) Register(bus *eventbus.Bus) {
	h := func(ctx context.Context, payload any) error {
		ev, ok := payload.(eventbus.NotificationEvent)
		if !ok {
			return nil
		}
		return s.repo.CreateMany(ctx, ev.Entries, ev.Cause)
	}
	bus.On(eventbus.NotifyActionCreated, h)
	bus.On(eventbus.NotifyActionUpdated, h)
	bus.On(eventbus.NotifyActionsDelayed, h)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queue != nil || !s.cfg.Enabled || s.sink == nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.queue = make(chan model.Notification, s.cfg.QueueSize)
	workers := s.cfg.Workers
	poll := s.cfg.PollInterval
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workerLoop(runCtx)
		}()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drainLoop(runCtx, poll)
	}()
	s.log.Info("notifier started", logx.Int("workers", workers))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.queue = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (s *Service) drainLoop(ctx context.Context, poll time.Duration) {
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		s.drainOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Service) drainOnce(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	limit := s.cfg.QueueSize
	s.mu.Unlock()
	if q == nil {
		return
	}

	pending, err := s.repo.ListUndelivered(ctx, limit)
	if err != nil {
		s.log.Warn("listing undelivered notifications failed", logx.Err(err))
		return
	}
	for _, n := range pending {
		if !s.claim(n.ID) {
			continue
		}
		select {
		case q <- n:
		default:
			s.release(n.ID)
			return // queue full, next tick resumes
		}
	}
}

func (s *Service) workerLoop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-q:
			s.deliverOne(ctx, n)
		}
	}
}

func (s *Service) deliverOne(ctx context.Context, n model.Notification) {
	defer s.release(n.ID)

	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := s.sink.Deliver(callCtx, n)
	cancel()
	if err != nil {
		s.log.Debug("notification delivery failed",
			logx.Int64("id", n.ID), logx.String("cause", string(n.Cause)), logx.Err(err))
		return
	}
	if err := s.repo.MarkDelivered(ctx, []int64{n.ID}, time.Now()); err != nil {
		s.log.Warn("marking notification delivered failed", logx.Int64("id", n.ID), logx.Err(err))
	}
}

func (s *Service) claim(id int64) bool {
	s.imu.Lock()
	defer s.imu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id int64) {
	s.imu.Lock()
	delete(s.inflight, id)
	s.imu.Unlock()
}
