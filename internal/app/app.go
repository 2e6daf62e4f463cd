package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"timeoutsched/internal/config"
	"timeoutsched/internal/eventbus"
	"timeoutsched/internal/runtime/supervisor"
	"timeoutsched/internal/task/timeout"
	logx "timeoutsched/pkg/logx"
)

// App runs the timeout scheduler as a daemon: the configured timer plan is
// armed at start and re-armed per timer on every config reload.
type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	sched *timeout.Scheduler

	now func() time.Time

	mu     sync.Mutex
	cfg    *config.Config
	loc    *time.Location
	active map[string]armed
}

// armed holds the scheduler ids backing one configured timer.
type armed struct {
	id     uint64
	stopID uint64 // 0 when the timer has no stop_after
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()
	sched := timeout.New(timeout.Config{
		PanicLogPerSec: cfg.Scheduler.PanicLogPerSec,
		PanicLogBurst:  cfg.Scheduler.PanicLogBurst,
	}, log.With(logx.String("comp", "timeout")), bus)

	return &App{
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		bus:    bus,
		sched:  sched,
		now:    time.Now,
		active: map[string]armed{},
	}, nil
}

func (a *App) Scheduler() *timeout.Scheduler { return a.sched }

func (a *App) Start(ctx context.Context) error {
	// A panicking background goroutine takes the daemon down through Done.
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	// Subscribe before arming so no early event is missed.
	events, unsub := a.bus.Subscribe(256, "timeout.")
	a.sup.Go("event-logger", func(ctx context.Context) error {
		defer unsub()
		a.logEvents(ctx, events)
		return nil
	})

	a.apply(a.cfgm.Get())

	updates := a.cfgm.Subscribe(1)
	a.sup.Go("config-watch", a.cfgm.Watch)
	a.sup.Go("config-reload", func(ctx context.Context) error {
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cfg := <-updates:
				a.reload(cfg)
			}
		}
	})

	a.log.Info("app started", logx.String("config", a.cfgm.Path()), logx.Int("timers", len(a.cfgm.Get().Timers)))
	return nil
}

// Done is closed when the app context ends, either by the parent context or
// by a failed background goroutine.
func (a *App) Done() <-chan struct{} { return a.sup.Context().Done() }

// Stop cancels every pending timer and waits for background goroutines.
func (a *App) Stop(ctx context.Context) error {
	start := time.Now()
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	n := a.sched.StopAll()
	snap := a.sched.Snapshot()
	fields := []logx.Field{
		logx.Int("cancelled", n),
		logx.Uint64("fired", snap.Fired),
		logx.Uint64("stopped", snap.Stopped),
		logx.Uint64("panicked", snap.Panicked),
		logx.Uint64("events_dropped", a.bus.Dropped()),
	}
	if a.sup != nil {
		c := a.sup.Counters()
		fields = append(fields,
			logx.Uint64("goroutines_started", c.Started),
			logx.Uint64("goroutine_panics", c.Panics),
		)
	}
	fields = append(fields, logx.Duration("took", time.Since(start)))
	a.log.Info("app stopped", fields...)
	_ = a.logs.Close()
	return err
}

func (a *App) reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.mu.Lock()
	prev := a.cfg
	a.mu.Unlock()

	changed, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(changed) == 0 {
		return
	}
	if err := a.logs.Apply(logConfig(cfg.Logging)); err != nil {
		a.log.Warn("log sink change failed; using console", logx.Err(err))
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("sections", strings.Join(changed, ","))}, attrs...)...)
	if prev != nil && (prev.Scheduler.PanicLogPerSec != cfg.Scheduler.PanicLogPerSec || prev.Scheduler.PanicLogBurst != cfg.Scheduler.PanicLogBurst) {
		a.log.Warn("scheduler panic log limits apply on restart")
	}
	a.apply(cfg)
}

// apply disarms removed/changed timers and arms added/changed ones.
// Unchanged timers keep running (or stay fired).
func (a *App) apply(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	diff := config.DiffTimers(a.cfg, cfg)
	a.loc = loadLocation(cfg.Scheduler.Timezone)
	a.cfg = cfg

	for _, name := range append(diff.Removed, diff.Changed...) {
		a.disarmLocked(name)
	}

	byName := map[string]config.TimerConfig{}
	for _, tc := range cfg.Timers {
		byName[strings.TrimSpace(tc.Name)] = tc
	}
	now := a.now()
	for _, name := range append(diff.Added, diff.Changed...) {
		pt, err := resolveTimer(byName[name], now, a.loc)
		if err != nil {
			a.log.Error("timer rejected", logx.String("timer", name), logx.Err(err))
			continue
		}
		a.armLocked(pt)
	}
}

func (a *App) armLocked(pt plannedTimer) {
	log := a.log.With(logx.String("timer", pt.name))
	msg := pt.message
	id, err := a.sched.Start(pt.delay, func() {
		if msg != "" {
			log.Info(msg)
			return
		}
		log.Info("timer fired")
	})
	if err != nil {
		log.Error("timer start failed", logx.Err(err))
		return
	}
	arm := armed{id: id}

	if pt.stopAfter > 0 {
		// The cancellation is itself a timeout: its callback races the
		// timer's own expiry through Stop.
		stopID, err := a.sched.Start(pt.stopAfter, func() {
			if a.sched.Stop(id) {
				log.Info("timer cancelled by stop_after")
			} else {
				log.Debug("stop_after lost; timer already fired")
			}
		})
		if err != nil {
			log.Error("stop_after start failed", logx.Err(err))
		} else {
			arm.stopID = stopID
		}
	}
	a.active[pt.name] = arm
	log.Debug("timer armed",
		logx.Uint64("id", id),
		logx.String("source", pt.source),
		logx.Duration("delay", pt.delay),
		logx.Duration("stop_after", pt.stopAfter),
	)
}

func (a *App) disarmLocked(name string) {
	arm, ok := a.active[name]
	if !ok {
		return
	}
	delete(a.active, name)
	if arm.stopID != 0 {
		a.sched.Stop(arm.stopID)
	}
	if a.sched.Stop(arm.id) {
		a.log.Debug("timer disarmed", logx.String("timer", name), logx.Uint64("id", arm.id))
	}
}

// ArmedID returns the scheduler id backing the named timer.
func (a *App) ArmedID(name string) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	arm, ok := a.active[name]
	return arm.id, ok
}

// timerName maps a scheduler id back to the configured timer it belongs to.
// Disarmed timers are no longer in a.active, so their late events resolve
// to "".
func (a *App) timerName(id uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, arm := range a.active {
		if arm.id == id {
			return name
		}
	}
	return ""
}

// logEvents logs scheduler events that belong to configured timers.
func (a *App) logEvents(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			te, ok := ev.Data.(timeout.TaskEvent)
			if !ok || ev.Type == timeout.EventScheduled {
				continue
			}
			name := a.timerName(te.ID)
			if name == "" {
				continue
			}
			if ev.Type == timeout.EventPanic {
				a.log.Warn("timer callback panicked", logx.String("timer", name), logx.String("panic", te.Panic))
				continue
			}
			a.log.Trace("timer finished", logx.String("timer", name), logx.String("state", te.State))
		}
	}
}

func logConfig(c config.LoggingConfig) logx.Config {
	lc := logx.Config{Level: c.Level, Console: c.Console}
	if c.File.Enabled {
		lc.File = strings.TrimSpace(c.File.Path)
		if lc.File == "" {
			lc.File = "./timeoutd.log"
		}
	}
	return lc
}

func loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
