// Package timeout provides a one-shot timeout scheduler.
//
// A caller registers a delay and an optional callback with Start. After the
// delay elapses with no cancellation, the callback runs exactly once on the
// task's own goroutine. Stop cancels a pending task.
//
// Fire vs. cancel:
//   - Every task leaves StatePending exactly once, either to StateFiring
//     (callback will run) or to StateStopped (callback never runs).
//   - Stop returns true only for the call that committed StateStopped.
//   - Stop never waits for a running callback; it returns false as soon as
//     it sees the task has committed to firing.
//
// The registry (id -> task) uses a RWMutex: Stop lookups share the read lock,
// insertion and removal take the write lock. A task's own mutex is never held
// together with the registry lock.
//
// Callback panics are recovered on the task goroutine, logged (rate limited)
// and published as EventPanic. The task still ends in StateFired and is
// deregistered.
package timeout
