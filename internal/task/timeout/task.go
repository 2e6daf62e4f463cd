package timeout

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// task is one scheduled (delay, callback) pair. Tasks are single-use.
type task struct {
	id       uint64
	delay    time.Duration
	callback func()

	// mu arbitrates the single transition out of StatePending.
	// state is written only while mu is held; Load is safe without it.
	mu    sync.Mutex
	state atomic.Int32

	cancelled  atomic.Bool
	cancelOnce sync.Once
	cancelCh   chan struct{}
}

func newTask(id uint64, delay time.Duration, callback func()) *task {
	return &task{
		id:       id,
		delay:    delay,
		callback: callback,
		cancelCh: make(chan struct{}),
	}
}

func (t *task) State() State { return State(t.state.Load()) }

// fireResult describes what the fire path did.
type fireResult struct {
	fired bool
	panic any
	stack []byte
}

// wait blocks for the task delay or until cancellation is signaled.
func (t *task) wait() {
	timer := time.NewTimer(t.delay)
	select {
	case <-timer.C:
	case <-t.cancelCh:
		timer.Stop()
	}
}

// fire is the timer-expiry side of the arbitration.
//
// The cancellation flag is checked once without the lock and again with it
// held: a Stop may signal between the two checks. When cancellation is seen
// the state is left Pending so the signaling Stop commits StateStopped.
func (t *task) fire() fireResult {
	if t.cancelled.Load() {
		return fireResult{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled.Load() || t.State() != StatePending {
		return fireResult{}
	}
	t.state.Store(int32(StateFiring))

	res := fireResult{fired: true}
	res.panic, res.stack = t.invoke()

	t.state.Store(int32(StateFired))
	return res
}

func (t *task) invoke() (p any, stack []byte) {
	if t.callback == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			p = r
			stack = debug.Stack()
		}
	}()
	t.callback()
	return nil, nil
}

// cancel is the Stop side of the arbitration. It reports whether this call
// committed StateStopped.
//
// The signal is raised unconditionally. The lock is only ever tried, never
// waited on: a failed TryLock means the fire path or a competing cancel is
// inside its critical section. Once the state has left Pending the outcome
// is final and cancel loses. While it is still Pending the holder is about to
// either commit or back off in favour of the signal, so cancel yields and
// tries again.
func (t *task) cancel() bool {
	t.cancelled.Store(true)
	t.cancelOnce.Do(func() { close(t.cancelCh) })

	for {
		if t.mu.TryLock() {
			won := t.State() == StatePending
			if won {
				t.state.Store(int32(StateStopped))
			}
			t.mu.Unlock()
			return won
		}
		if t.State() != StatePending {
			return false
		}
		runtime.Gosched()
	}
}

func (t *task) event(st State) TaskEvent {
	return TaskEvent{ID: t.id, Delay: t.delay, State: st.String()}
}

func panicString(p any) string {
	if err, ok := p.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p)
}
