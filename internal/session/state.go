package session

import (
	"time"

	"github.com/sketchparty/backend/internal/registry"
)

// Phase is the explicit tag for where a turn is. Exactly one phase holds at
// any time; event application always overwrites it wholesale.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseWordSelection Phase = "word_selection"
	PhaseDrawing       Phase = "drawing"
	PhaseTurnEnd       Phase = "turn_end"
	PhaseRoundEnd      Phase = "round_end"
	PhaseGameOver      Phase = "game_over"
)

// GuessRecord is one confirmed correct guess within the current turn. The
// per-turn list is cleared at every turn boundary.
type GuessRecord struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	TimeTaken  float64 `json:"timeTaken"`
	Points     int     `json:"points"`
	Timestamp  int64   `json:"timestamp"`
}

// State is the per-client mirror of the session. There is no server copy of
// this mid-round; every participant rebuilds it from broadcast events.
type State struct {
	RoomID           string           `json:"roomId"`
	Phase            Phase            `json:"phase"`
	CurrentRound     int              `json:"currentRound"`
	TotalRounds      int              `json:"totalRounds"`
	TurnOrder        []string         `json:"turnOrder"`
	CurrentTurnIndex int              `json:"currentTurnIndex"`
	DrawerID         string           `json:"drawerId"`
	CurrentWord      string           `json:"currentWord,omitempty"`
	WordOptions      []string         `json:"wordOptions,omitempty"`
	WordLength       int              `json:"wordLength"`
	TimeRemaining    int              `json:"timeRemaining"`
	DrawingTime      int              `json:"drawingTime"`
	UsedWords        []string         `json:"usedWords,omitempty"`
	Scores           map[string]int   `json:"scores"`
	CorrectGuesses   []GuessRecord    `json:"correctGuesses,omitempty"`
	Players          []registry.Player `json:"players"`
	Winner           string           `json:"winner,omitempty"`
	WinnerType       string           `json:"winnerType,omitempty"`
}

// IsActive reports whether a turn cycle is in flight.
func (s *State) IsActive() bool {
	switch s.Phase {
	case PhaseWordSelection, PhaseDrawing, PhaseTurnEnd, PhaseRoundEnd:
		return true
	}
	return false
}

// ExpectedDrawer is turnOrder[currentTurnIndex], the invariant value for
// DrawerID while active.
func (s *State) ExpectedDrawer() string {
	if s.CurrentTurnIndex < 0 || s.CurrentTurnIndex >= len(s.TurnOrder) {
		return ""
	}
	return s.TurnOrder[s.CurrentTurnIndex]
}

func NewState(roomID string) State {
	return State{
		RoomID: roomID,
		Phase:  PhaseLobby,
		Scores: map[string]int{},
	}
}

// NowMillis stamps guess records; swappable in tests.
var NowMillis = func() int64 { return time.Now().UnixMilli() }
