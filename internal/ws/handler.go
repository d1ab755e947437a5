package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/registry"
	"github.com/sketchparty/backend/internal/types"
)

// Handler bridges one websocket connection onto its room's broadcast
// channel: inbound client messages are published, channel events are fanned
// back out. The relay never interprets payloads; that is the coordinator's
// job on the client.
func Handler(store registry.Store, channel broadcast.Channel, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			http.Error(w, "missing room", http.StatusBadRequest)
			return
		}
		if _, err := store.Get(r.Context(), roomID); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			http.Error(w, "registry unavailable", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connLog := log.With(
			zap.String("room", roomID),
			zap.String("player", r.URL.Query().Get("player")),
			zap.String("conn", uuid.NewString()))
		connLog.Debug("relay connected")
		defer connLog.Debug("relay disconnected")

		events, unsub, err := channel.Subscribe(r.Context(), roomID)
		if err != nil {
			connLog.Warn("subscribe failed", zap.Error(err))
			return
		}
		defer unsub()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range events {
				msg := types.ServerMessage{Type: "Event", Event: &ev}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}
			if !broadcast.ValidTopic(cm.Topic) {
				writeError(r.Context(), conn, "unknown topic")
				continue
			}

			// fire and forget, per the at-most-once contract
			if err := channel.Publish(r.Context(), broadcast.Event{
				Topic:   cm.Topic,
				RoomID:  roomID,
				Payload: cm.Payload,
			}); err != nil {
				connLog.Warn("publish failed", zap.Error(err))
			}
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, detail string) {
	msg, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: detail})
	_ = conn.Write(ctx, websocket.MessageText, msg)
}
