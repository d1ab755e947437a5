package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/registry"
	"github.com/sketchparty/backend/internal/session"
	"github.com/sketchparty/backend/internal/ws"
)

func SetupRoutes(svc *session.Service, store registry.Store, channel broadcast.Channel, log *zap.Logger) http.Handler {
	a := NewAPI(svc, log)
	r := chi.NewRouter()

	r.Post("/rooms", a.CreateRoom)
	r.Post("/rooms/{roomID}/join", a.JoinRoom)
	r.Post("/rooms/{roomID}/start", a.StartGame)
	r.Post("/rooms/{roomID}/round", a.StartRound)
	r.Post("/rooms/{roomID}/round/end", a.EndRound)
	r.Post("/rooms/{roomID}/end", a.EndGame)
	r.Post("/guess", a.SubmitGuess)
	r.Get("/ws", ws.Handler(store, channel, log))
	r.Get("/healthz", Healthz)
	return r
}
