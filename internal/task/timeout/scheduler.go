package timeout

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"timeoutsched/internal/eventbus"
	logx "timeoutsched/pkg/logx"
)

// Scheduler runs one-shot callbacks after a delay unless stopped first.
//
// The zero value is not usable; construct with New. All methods are safe for
// concurrent use.
type Scheduler struct {
	log logx.Logger
	bus eventbus.Bus
	cfg Config

	mu    sync.RWMutex
	tasks map[uint64]*task

	// seq issues ids; the first id is 1.
	seq atomic.Uint64

	panicLimiter *rate.Limiter

	started  atomic.Uint64
	fired    atomic.Uint64
	stopped  atomic.Uint64
	panicked atomic.Uint64
}

// New creates a Scheduler. log and bus may be zero/nil.
func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Scheduler{
		log:          log,
		bus:          bus,
		cfg:          cfg,
		tasks:        map[uint64]*task{},
		panicLimiter: rate.NewLimiter(rate.Limit(cfg.PanicLogPerSec), cfg.PanicLogBurst),
	}
}

// Start schedules callback to run once after delay and returns the task id.
//
// Start never blocks on the delay, including a zero delay. callback may be
// nil, in which case the task only occupies an id until it expires or is
// stopped. A negative delay fails with ErrInvalidArgument; no task is
// created and no id is consumed.
func (s *Scheduler) Start(delay time.Duration, callback func()) (uint64, error) {
	if delay < 0 {
		return 0, fmt.Errorf("%w: delay must be >= 0, got %s", ErrInvalidArgument, delay)
	}

	id := s.seq.Add(1)
	t := newTask(id, delay, callback)

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()

	s.started.Add(1)
	s.log.Debug("timeout scheduled", logx.Uint64("id", id), logx.Duration("delay", delay), logx.Bool("callback", callback != nil))
	s.publish(EventScheduled, t.event(StatePending))

	go s.run(t)
	return id, nil
}

// Stop cancels the task with the given id.
//
// It returns true only if this call guaranteed that the callback never runs.
// It returns false for unknown or already deregistered ids, for tasks that
// already committed to firing, and for every Stop that lost to a concurrent
// Stop on the same id. Stop does not wait for an in-flight callback.
func (s *Scheduler) Stop(id uint64) bool {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	if !t.cancel() {
		s.log.Trace("timeout stop lost", logx.Uint64("id", id), logx.String("state", t.State().String()))
		return false
	}

	s.stopped.Add(1)
	s.log.Debug("timeout stopped", logx.Uint64("id", id))
	s.publish(EventStopped, t.event(StateStopped))
	return true
}

// StopAll calls Stop on every registered task and returns how many were
// stopped by this call.
func (s *Scheduler) StopAll() int {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if s.Stop(id) {
			n++
		}
	}
	return n
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		Pending:  s.Len(),
		LastID:   s.seq.Load(),
		Started:  s.started.Load(),
		Fired:    s.fired.Load(),
		Stopped:  s.stopped.Load(),
		Panicked: s.panicked.Load(),
	}
}

// run is the task's execution unit. It always deregisters the task on exit.
func (s *Scheduler) run(t *task) {
	defer s.deregister(t)

	t.wait()
	res := t.fire()
	if !res.fired {
		return
	}
	s.fired.Add(1)

	if res.panic != nil {
		s.reportPanic(t, res)
		return
	}
	s.log.Debug("timeout fired", logx.Uint64("id", t.id), logx.Duration("delay", t.delay))
	s.publish(EventFired, t.event(StateFired))
}

func (s *Scheduler) deregister(t *task) {
	s.mu.Lock()
	if cur, ok := s.tasks[t.id]; ok && cur == t {
		delete(s.tasks, t.id)
	}
	s.mu.Unlock()
}

func (s *Scheduler) reportPanic(t *task, res fireResult) {
	s.panicked.Add(1)
	msg := panicString(res.panic)
	if s.panicLimiter.Allow() {
		s.log.Error("timeout callback panic",
			logx.Uint64("id", t.id),
			logx.String("panic", msg),
			logx.Stack(string(res.stack)),
		)
	}
	ev := t.event(StateFired)
	ev.Panic = msg
	s.publish(EventPanic, ev)
}

func (s *Scheduler) publish(typ string, ev TaskEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
