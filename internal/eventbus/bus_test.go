package eventbus

import (
	"testing"
)

func TestPublishFiltersByType(t *testing.T) {
	t.Parallel()
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	only, unsubOnly := b.Subscribe(4, "cycle.completed")
	defer unsubOnly()

	b.Publish(Event{Type: "other"})
	b.Publish(Event{Type: "cycle.completed", Data: 3})

	if got := len(all); got != 2 {
		t.Fatalf("unfiltered subscriber got %d events, want 2", got)
	}
	if got := len(only); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	e := <-only
	if e.Data.(int) != 3 || e.Time.IsZero() {
		t.Fatalf("event = %+v", e)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 3; i++ {
		b.Publish(Event{Type: "x"})
	}
	if d := b.Dropped(); d != 2 {
		t.Fatalf("Dropped = %d, want 2", d)
	}
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: "x"})
}
