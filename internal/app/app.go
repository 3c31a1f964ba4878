// Package app wires configuration, storage, the event bus, the
// propagation orchestrator, the notifier and the job scheduler into one
// runnable daemon.
package app

import (
	"context"
	"fmt"
	"time"

	"plantrack/internal/config"
	"plantrack/internal/eventbus"
	"plantrack/internal/notify"
	"plantrack/internal/propagate"
	"plantrack/internal/schedule"
	"plantrack/internal/scheduler"
	"plantrack/internal/storage"
	"plantrack/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    *storage.Store
	bus      *eventbus.Bus
	orch     *propagate.Orchestrator
	notifier *notify.Service
	sched    *scheduler.Service
	eval     *schedule.CronEvaluator

	horizonDays int

	watchCancel context.CancelFunc
}

// New builds the full service graph from the config file. The sink
// receives drained notification rows; pass notify.LogSink when no
// transport is wired.
func New(cfgPath string, sink notify.Sink) (*App, error) {
	mgr := config.NewManager(cfgPath, logx.NewConsole("INFO"))
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging))

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout}, log.With(logx.String("svc", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bus := eventbus.New(log.With(logx.String("svc", "bus")))

	var opts []propagate.Option
	if cfg.Propagation.FailClosed {
		opts = append(opts, propagate.WithFailClosed())
	}
	orch := propagate.New(store.Actions(), store.ActionPlans(), store.LinePlans(), bus, log.With(logx.String("svc", "propagate")), opts...)
	orch.Register(bus)

	notifier := notify.New(notifyConfig(cfg.Notifier), store.Notifications(), sink, log.With(logx.String("svc", "notify")))
	notifier.Register(bus)

	sched := scheduler.New(scheduler.Config{
		Workers:  cfg.Scheduler.Workers,
		Timezone: cfg.Scheduler.Timezone,
	}, log.With(logx.String("svc", "scheduler")))

	return &App{
		cfgMgr:      mgr,
		logSvc:      logSvc,
		log:         log,
		store:       store,
		bus:         bus,
		orch:        orch,
		notifier:    notifier,
		sched:       sched,
		eval:        schedule.NewCronEvaluator(),
		horizonDays: cfg.Scheduler.HorizonDays,
	}, nil
}

// Bus exposes the event bus so the surrounding service can emit action
// mutation events into the cascade.
func (a *App) Bus() *eventbus.Bus { return a.bus }

// Store exposes the repositories for the surrounding service.
func (a *App) Store() *storage.Store { return a.store }

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()

	a.notifier.Start(ctx)
	a.sched.Start(ctx)

	if err := a.sched.AddDaily("expiry-sync", cfg.Scheduler.ExpirySyncAt, func(ctx context.Context) error {
		a.bus.Emit(ctx, eventbus.ActionSyncStatuses, eventbus.ExpiryEvent{ExpiryDate: time.Now().UTC()})
		return nil
	}); err != nil {
		return fmt.Errorf("schedule expiry sync: %w", err)
	}
	if err := a.sched.AddCron("occurrence-horizon", cfg.Scheduler.HorizonCron, a.GenerateHorizon); err != nil {
		return fmt.Errorf("schedule occurrence horizon: %w", err)
	}

	// Materialize the look-ahead window right away so a fresh install
	// has occurrences before the first cron tick.
	if err := a.GenerateHorizon(ctx); err != nil {
		a.log.Warn("initial occurrence generation failed", logx.Err(err))
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	go func() {
		if err := a.cfgMgr.Watch(watchCtx, a.applyConfig); err != nil && watchCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("plantrack started", logx.String("db", cfg.Storage.Path))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.sched.Stop(ctx)
	a.notifier.Stop(ctx)
	err := a.store.Close()
	_ = a.logSvc.Close()
	return err
}

// GenerateHorizon expands every stored definition's frequency into
// occurrences over the configured look-ahead window. Already-present
// occurrences are skipped by the storage uniqueness constraint.
func (a *App) GenerateHorizon(ctx context.Context) error {
	defs, err := a.store.Definitions().List(ctx)
	if err != nil {
		return fmt.Errorf("list definitions: %w", err)
	}
	if len(defs) == 0 {
		return nil
	}

	plans := make([]schedule.Plan, 0, len(defs))
	for _, d := range defs {
		freq, err := a.store.Frequencies().ByID(ctx, d.FrequencyID)
		if err != nil {
			a.log.Warn("definition without frequency, skipping",
				logx.String("definition", d.ID), logx.Err(err))
			continue
		}
		plans = append(plans, schedule.Plan{Definition: d, Frequency: freq})
	}

	start := time.Now().UTC()
	end := start.AddDate(0, 0, a.horizonDays)
	batches, err := schedule.Generate(a.eval, start, end, plans)
	if err != nil {
		return err
	}

	total := 0
	for _, b := range batches {
		n, err := a.store.Occurrences().BulkInsert(ctx, b.Occurrences)
		if err != nil {
			return fmt.Errorf("insert occurrences for %s: %w", b.Definition.ID, err)
		}
		total += n
	}
	a.log.Info("occurrence horizon generated",
		logx.Int("definitions", len(plans)),
		logx.Int("new", total),
		logx.Time("until", end))
	return nil
}

// ResolveOccurrences returns one definition's occurrence history with
// enablement computed against the current clock.
func (a *App) ResolveOccurrences(ctx context.Context, definitionID string) ([]schedule.Resolved, error) {
	occs, err := a.store.Occurrences().ListByDefinition(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	return schedule.Resolve(occs, time.Now().UTC()), nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logxConfig(cfg.Logging))
	a.notifier.Apply(notifyConfig(cfg.Notifier))
	a.log.Info("runtime config applied")
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: config.BoolOr(c.Console, true),
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

func notifyConfig(c config.NotifierConfig) notify.Config {
	poll, _ := config.ParseDurationField("notifier.poll_interval", c.PollInterval)
	return notify.Config{
		Enabled:      config.BoolOr(c.Enabled, true),
		Workers:      c.Workers,
		QueueSize:    c.QueueSize,
		RatePerSec:   c.RatePerSec,
		PollInterval: poll,
	}
}
