package timeout

import (
	"errors"
	"testing"
	"time"
)

func TestTaskCancelBeforeFire(t *testing.T) {
	t.Parallel()
	ran := false
	tk := newTask(1, time.Hour, func() { ran = true })

	if !tk.cancel() {
		t.Fatal("cancel = false, want true")
	}
	if got := tk.State(); got != StateStopped {
		t.Fatalf("State = %s, want stopped", got)
	}
	if tk.cancel() {
		t.Fatal("second cancel = true, want false")
	}

	// The wait returns early once cancellation is signaled.
	done := make(chan struct{})
	go func() { tk.wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait not interrupted by cancel")
	}

	if res := tk.fire(); res.fired {
		t.Fatal("fire after cancel reported fired")
	}
	if ran {
		t.Fatal("callback ran after cancel")
	}
}

func TestTaskFireThenCancel(t *testing.T) {
	t.Parallel()
	calls := 0
	tk := newTask(1, 0, func() { calls++ })

	res := tk.fire()
	if !res.fired || res.panic != nil {
		t.Fatalf("fire = %+v, want fired without panic", res)
	}
	if got := tk.State(); got != StateFired {
		t.Fatalf("State = %s, want fired", got)
	}
	if tk.cancel() {
		t.Fatal("cancel after fire = true, want false")
	}
	if res := tk.fire(); res.fired {
		t.Fatal("second fire reported fired")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if got := tk.State(); got != StateFired {
		t.Fatalf("State = %s after late cancel, want fired", got)
	}
}

// A signal raised while the fire path holds the lock must be honoured:
// fire backs off and the signaling cancel commits StateStopped.
func TestTaskSignalDuringFireCritical(t *testing.T) {
	t.Parallel()
	tk := newTask(1, 0, func() { t.Error("callback ran") })

	tk.mu.Lock()
	result := make(chan bool, 1)
	go func() { result <- tk.cancel() }()

	// cancel keeps retrying while the state is still Pending.
	select {
	case <-result:
		t.Fatal("cancel returned while the lock was held with state pending")
	case <-time.After(20 * time.Millisecond):
	}
	if !tk.cancelled.Load() {
		t.Fatal("cancellation flag not raised")
	}
	tk.mu.Unlock()

	select {
	case won := <-result:
		if !won {
			t.Fatal("cancel = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not finish")
	}
	if res := tk.fire(); res.fired {
		t.Fatal("fire after signal reported fired")
	}
}

func TestTaskInvokeRecoversPanic(t *testing.T) {
	t.Parallel()
	tk := newTask(1, 0, func() { panic(errors.New("bad callback")) })
	res := tk.fire()
	if !res.fired {
		t.Fatal("fire = not fired, want fired")
	}
	if got := panicString(res.panic); got != "bad callback" {
		t.Fatalf("panic = %q, want %q", got, "bad callback")
	}
	if len(res.stack) == 0 {
		t.Fatal("expected stack for recovered panic")
	}
	if got := tk.State(); got != StateFired {
		t.Fatalf("State = %s, want fired", got)
	}
	// Lock must be released after a panicking callback.
	if !tk.mu.TryLock() {
		t.Fatal("task lock still held after panic")
	}
	tk.mu.Unlock()
}

func TestStateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StatePending, "pending", false},
		{StateFiring, "firing", false},
		{StateFired, "fired", true},
		{StateStopped, "stopped", true},
		{State(9), "state(9)", false},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Fatalf("%s.Terminal() = %v, want %v", tt.want, got, tt.terminal)
		}
	}
}
