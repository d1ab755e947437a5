package broadcast

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// Local is an in-process fan-out keyed by room. Slow subscribers have events
// dropped rather than blocking the publisher, matching the at-most-once
// contract. Used in tests and single-node runs without redis.
type Local struct {
	mu    sync.Mutex
	next  int
	rooms map[string]map[int]chan Event
}

func NewLocal() *Local {
	return &Local{rooms: make(map[string]map[int]chan Event)}
}

func (l *Local) Publish(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.rooms[ev.RoomID] {
		select {
		case ch <- ev:
		default:
			// subscriber is full; drop this event for them
		}
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, roomID string) (<-chan Event, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	l.next++
	ch := make(chan Event, subscriberBuffer)
	if l.rooms[roomID] == nil {
		l.rooms[roomID] = make(map[int]chan Event)
	}
	l.rooms[roomID][id] = ch

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if sub, ok := l.rooms[roomID][id]; ok {
			delete(l.rooms[roomID], id)
			if len(l.rooms[roomID]) == 0 {
				delete(l.rooms, roomID)
			}
			close(sub)
		}
	}
	return ch, cancel, nil
}
