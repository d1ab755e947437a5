package registry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps rooms in a map. Used by tests and redis-less dev runs.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*Room)}
}

func (s *MemoryStore) Create(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	room.CreatedAt = now
	room.LastActivity = now
	cp := *room
	s.rooms[room.Code] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, code string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *room
	cp.Players = append([]Player(nil), room.Players...)
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; !ok {
		return ErrNotFound
	}
	room.LastActivity = time.Now()
	cp := *room
	cp.Players = append([]Player(nil), room.Players...)
	s.rooms[room.Code] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) DeleteIdle(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for code, room := range s.rooms {
		if room.LastActivity.Before(olderThan) {
			delete(s.rooms, code)
			n++
		}
	}
	return n, nil
}
