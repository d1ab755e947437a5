package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis carries room events over redis pub/sub, which is natively
// fire-and-forget: subscribers that miss a message never see it.
type Redis struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedis(client *redis.Client, log *zap.Logger) *Redis {
	return &Redis{client: client, log: log}
}

func channelName(roomID string) string { return "room:" + roomID }

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channelName(ev.RoomID), raw).Err()
}

func (r *Redis) Subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error) {
	sub := r.client.Subscribe(ctx, channelName(roomID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn("dropping undecodable broadcast event",
					zap.String("room", roomID), zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			default:
				// consumer is behind; at-most-once lets us drop
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
