package types

import (
	"encoding/json"

	"github.com/sketchparty/backend/internal/broadcast"
)

// ClientMessage is what a websocket client sends: a topic plus an opaque
// payload to publish on the room's channel.
type ClientMessage struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type  string           `json:"type"` // "Event" | "Error"
	Event *broadcast.Event `json:"event,omitempty"`
	Error string           `json:"error,omitempty"`
}
