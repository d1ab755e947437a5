package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sketchparty/backend/internal/registry"
	"github.com/sketchparty/backend/internal/session"
)

// API exposes the session operations over plain request/response HTTP.
// Nothing here holds game state; every handler is one stateless transition
// whose result the caller broadcasts.
type API struct {
	svc *session.Service
	log *zap.Logger
}

func NewAPI(svc *session.Service, log *zap.Logger) *API {
	return &API{svc: svc, log: log}
}

type errorBody struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("encode response", zap.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	if ve, ok := session.IsValidation(err); ok {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Code: ve.Code, Field: ve.Field, Message: ve.Detail})
		return
	}
	if errors.Is(err, session.ErrRoomNotFound) || errors.Is(err, registry.ErrNotFound) {
		a.writeJSON(w, http.StatusNotFound, errorBody{Code: "room_not_found", Message: "room not found"})
		return
	}
	a.log.Error("handler failed", zap.Error(err))
	a.writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, &session.ValidationError{Code: session.CodeBadField, Detail: "malformed json body"}
	}
	return v, nil
}

type createRoomRequest struct {
	HostID   string            `json:"hostId"`
	Settings registry.Settings `json:"settings"`
}

func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	req, err := decode[createRoomRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	res, err := a.svc.CreateRoom(r.Context(), req.HostID, req.Settings)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, res)
}

func (a *API) JoinRoom(w http.ResponseWriter, r *http.Request) {
	req, err := decode[session.JoinRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	req.RoomID = chi.URLParam(r, "roomID")
	res, err := a.svc.JoinRoom(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) StartGame(w http.ResponseWriter, r *http.Request) {
	req, err := decode[session.StartGameRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	req.RoomID = chi.URLParam(r, "roomID")
	res, err := a.svc.StartGame(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) StartRound(w http.ResponseWriter, r *http.Request) {
	req, err := decode[session.StartRoundRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	req.RoomID = chi.URLParam(r, "roomID")
	res, err := a.svc.StartRound(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) EndRound(w http.ResponseWriter, r *http.Request) {
	req, err := decode[session.EndRoundRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	req.RoomID = chi.URLParam(r, "roomID")
	res, err := a.svc.EndRound(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *API) EndGame(w http.ResponseWriter, r *http.Request) {
	req, err := decode[session.EndGameRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	req.RoomID = chi.URLParam(r, "roomID")
	res, err := a.svc.EndGame(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

type guessRequest struct {
	Guess      string `json:"guess"`
	ActualWord string `json:"actualWord"`
}

func (a *API) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	req, err := decode[guessRequest](r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, a.svc.SubmitGuess(req.Guess, req.ActualWord))
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
