package registry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultRoomTTL is how long a room may sit idle before the sweep removes it.
const DefaultRoomTTL = 2 * time.Hour

// Sweeper periodically deletes rooms whose last activity is older than TTL.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(store Store, ttl, interval time.Duration, log *zap.Logger) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{store: store, ttl: ttl, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.store.DeleteIdle(ctx, time.Now().Add(-s.ttl))
			if err != nil {
				s.log.Warn("room sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("swept idle rooms", zap.Int64("deleted", n))
			}
		}
	}
}
