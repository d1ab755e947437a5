// Package broadcast is the per-room fan-out the clients synchronize over.
// Delivery is at-most-once and unordered across topics; consumers must treat
// every event as an idempotent overwrite.
package broadcast

import (
	"context"
	"encoding/json"
)

// Topics carried on a room's channel.
const (
	TopicPlayerJoin   = "player:join"
	TopicPlayerLeave  = "player:leave"
	TopicGameStart    = "game:start"
	TopicGameRound    = "game:round"
	TopicWordSelected = "word:selected"
	TopicCanvasUpdate = "canvas:update"
	TopicCanvasClear  = "canvas:clear"
	TopicChatGuess    = "chat:guess"
	TopicChatCorrect  = "chat:correct"
	TopicChatClose    = "chat:close"
	TopicTimerUpdate  = "timer:update"
	TopicRoundEnd     = "game:round-end"
	TopicGameOver     = "game:over"
	TopicScoresUpdate = "scores:update"
)

var knownTopics = map[string]bool{
	TopicPlayerJoin: true, TopicPlayerLeave: true,
	TopicGameStart: true, TopicGameRound: true, TopicWordSelected: true,
	TopicCanvasUpdate: true, TopicCanvasClear: true,
	TopicChatGuess: true, TopicChatCorrect: true, TopicChatClose: true,
	TopicTimerUpdate: true, TopicRoundEnd: true, TopicGameOver: true,
	TopicScoresUpdate: true,
}

// ValidTopic reports whether t is one of the room topics.
func ValidTopic(t string) bool { return knownTopics[t] }

// Event is the wire envelope. Payload stays opaque here; each topic's shape
// is owned by the session package.
type Event struct {
	Topic   string          `json:"topic"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope. Marshal errors surface to the
// publisher rather than being dropped silently.
func NewEvent(roomID, topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, RoomID: roomID, Payload: raw}, nil
}

// Channel is the pub/sub contract. Subscribe returns a receive channel and a
// cancel func; the channel closes after cancel.
type Channel interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, roomID string) (<-chan Event, func(), error)
}
