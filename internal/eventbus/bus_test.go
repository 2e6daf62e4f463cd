package eventbus

import (
	"testing"
	"time"
)

func TestSubscribePrefixFilter(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	fired, unsubFired := b.Subscribe(4, "timeout.fired")
	defer unsubFired()

	b.Publish(Event{Type: "timeout.scheduled"})
	b.Publish(Event{Type: "timeout.fired", Data: 7})

	if got := len(all); got != 2 {
		t.Fatalf("all subscriber got %d events, want 2", got)
	}
	if got := len(fired); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	ev := <-fired
	if ev.Data != 7 {
		t.Fatalf("Data = %v, want 7", ev.Data)
	}
	if ev.Time.IsZero() {
		t.Fatal("expected Publish to stamp Time")
	}
}

func TestPublishDropsOnFullSubscriber(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			b.Publish(Event{Type: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if got := b.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	b.Publish(Event{Type: "x"})
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}

func TestPublishConcurrentWithUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	for i := 0; i < 200; i++ {
		_, unsub := b.Subscribe(1)
		start := make(chan struct{})
		done := make(chan struct{})
		go func() {
			<-start
			for j := 0; j < 4; j++ {
				b.Publish(Event{Type: "timeout.fired"})
			}
			close(done)
		}()
		close(start)
		unsub()
		<-done
	}
}
