package session

import (
	"errors"
	"fmt"
)

var ErrRoomNotFound = errors.New("room not found")

// Validation error codes. These map to 400s at the HTTP edge and are never
// retried automatically.
const (
	CodeMissingField      = "missing_field"
	CodeBadField          = "bad_field"
	CodeNotEnoughPlayers  = "not_enough_players"
	CodeIncompleteTeams   = "incomplete_teams"
	CodeUnknownAction     = "unknown_action"
	CodeRoomFull          = "room_full"
	CodeGameNotStartable  = "game_not_startable"
)

// ValidationError is the structured rejection for malformed session calls:
// a machine-checkable code plus a human-readable detail.
type ValidationError struct {
	Code   string `json:"code"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func invalid(code, field, detail string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Detail: detail}
}

// IsValidation reports whether err is a validation rejection and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
