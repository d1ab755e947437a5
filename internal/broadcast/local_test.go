package broadcast

import (
	"context"
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return Event{} // unreachable
	}
}

func TestLocalFanOutPerRoom(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	a1, cancelA1, _ := l.Subscribe(ctx, "roomA")
	a2, cancelA2, _ := l.Subscribe(ctx, "roomA")
	b, cancelB, _ := l.Subscribe(ctx, "roomB")
	defer cancelA1()
	defer cancelA2()
	defer cancelB()

	ev, err := NewEvent("roomA", TopicGameStart, map[string]int{"round": 1})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if err := l.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := recvEvent(t, a1, 100*time.Millisecond); got.Topic != TopicGameStart {
		t.Fatalf("a1 got topic %q", got.Topic)
	}
	if got := recvEvent(t, a2, 100*time.Millisecond); got.RoomID != "roomA" {
		t.Fatalf("a2 got room %q", got.RoomID)
	}

	select {
	case ev := <-b:
		t.Fatalf("roomB subscriber got roomA event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalCancelClosesSubscription(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	ch, cancel, _ := l.Subscribe(ctx, "roomA")
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}

	// publishing after cancel must not panic or deliver
	ev, _ := NewEvent("roomA", TopicCanvasClear, nil)
	if err := l.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish after cancel: %v", err)
	}
}

func TestLocalDropsWhenSubscriberFull(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	ch, cancel, _ := l.Subscribe(ctx, "roomA")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		ev, _ := NewEvent("roomA", TopicTimerUpdate, map[string]int{"t": i})
		if err := l.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected buffer full at %d, got %d", subscriberBuffer, len(ch))
	}
}
