package session

import (
	"encoding/json"

	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/registry"
)

// Payload shapes for each broadcast topic. Every one is a full overwrite of
// the fields it carries, so applying duplicates or stale copies is harmless.

type GameStartPayload struct {
	Round       int      `json:"round"`
	TotalRounds int      `json:"totalRounds"`
	TurnOrder   []string `json:"turnOrder"`
	DrawerID    string   `json:"drawerId"`
	WordOptions []string `json:"wordOptions"`
	DrawingTime int      `json:"drawingTime"`
}

// RoundPayload announces the next turn: a fresh drawer with word options
// pending selection.
type RoundPayload struct {
	Round       int      `json:"round"`
	TurnIndex   int      `json:"turnIndex"`
	TurnOrder   []string `json:"turnOrder"`
	DrawerID    string   `json:"drawerId"`
	WordOptions []string `json:"wordOptions"`
}

// WordSelectedPayload starts the drawing phase. The word itself rides along
// so every mirror can evaluate guesses locally; hiding it from the guesser
// is the presentation layer's job.
type WordSelectedPayload struct {
	Word        string   `json:"word"`
	WordLength  int      `json:"wordLength"`
	DrawingTime int      `json:"drawingTime"`
	UsedWords   []string `json:"usedWords,omitempty"`
}

type TimerPayload struct {
	Remaining int `json:"remaining"`
}

type ScoresPayload struct {
	Scores        map[string]int `json:"scores"`
	Authoritative bool           `json:"authoritative"`
}

type ChatClosePayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type RoundEndPayload struct {
	Word          string         `json:"word"`
	Scores        map[string]int `json:"scores"`
	NextDrawer    string         `json:"nextDrawer"`
	NextTurnIndex int            `json:"nextTurnIndex"`
	NextRound     int            `json:"nextRound"`
	IsNewRound    bool           `json:"isNewRound"`
	IsGameOver    bool           `json:"isGameOver"`
	Reason        string         `json:"reason"`
	UsedWords     []string       `json:"usedWords,omitempty"`
	WordOptions   []string       `json:"wordOptions,omitempty"`
}

type GameOverPayload struct {
	Winner      string         `json:"winner"`
	WinnerType  string         `json:"winnerType"`
	FinalScores map[string]int `json:"finalScores"`
	Message     string         `json:"message"`
}

type RosterPayload struct {
	Player  registry.Player   `json:"player"`
	Players []registry.Player `json:"players"`
}

// CanvasPath is relayed opaquely; the core only reads its id for dedup.
type CanvasPath struct {
	ID string `json:"id"`
}

// Reduce applies one broadcast event to a mirror, returning the new mirror.
// It is pure, idempotent and order-tolerant: every branch overwrites fields
// rather than merging, so duplicates and stale arrivals cannot corrupt the
// state. Role-dependent filtering (who owns the timer, which score updates
// count) happens in the coordinator before this is called.
func Reduce(s State, ev broadcast.Event) (State, error) {
	switch ev.Topic {
	case broadcast.TopicGameStart:
		var p GameStartPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		s.Phase = PhaseWordSelection
		s.CurrentRound = p.Round
		s.TotalRounds = p.TotalRounds
		s.TurnOrder = p.TurnOrder
		s.CurrentTurnIndex = 0
		s.DrawerID = p.DrawerID
		s.WordOptions = p.WordOptions
		s.CurrentWord = ""
		s.WordLength = 0
		s.DrawingTime = p.DrawingTime
		s.TimeRemaining = p.DrawingTime
		s.UsedWords = nil
		s.CorrectGuesses = nil
		if s.Scores == nil {
			s.Scores = map[string]int{}
		}

	case broadcast.TopicGameRound:
		var p RoundPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		s.Phase = PhaseWordSelection
		s.CurrentRound = p.Round
		s.CurrentTurnIndex = p.TurnIndex
		if len(p.TurnOrder) > 0 {
			s.TurnOrder = p.TurnOrder
		}
		s.DrawerID = p.DrawerID
		s.WordOptions = p.WordOptions
		s.CurrentWord = ""
		s.WordLength = 0
		s.CorrectGuesses = nil

	case broadcast.TopicWordSelected:
		var p WordSelectedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		s.Phase = PhaseDrawing
		s.CurrentWord = p.Word
		s.WordLength = p.WordLength
		s.WordOptions = nil
		if p.DrawingTime > 0 {
			s.DrawingTime = p.DrawingTime
		}
		s.TimeRemaining = s.DrawingTime
		if len(p.UsedWords) > 0 {
			s.UsedWords = p.UsedWords
		}

	case broadcast.TopicTimerUpdate:
		var p TimerPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		s.TimeRemaining = p.Remaining

	case broadcast.TopicScoresUpdate:
		var p ScoresPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		merged := make(map[string]int, len(p.Scores))
		for id, pts := range p.Scores {
			merged[id] = pts
		}
		s.Scores = merged

	case broadcast.TopicRoundEnd:
		var p RoundEndPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		if p.IsGameOver {
			s.Phase = PhaseGameOver
			s.DrawerID = ""
			s.WordOptions = nil
			s.CurrentWord = ""
			break
		}
		if p.IsNewRound {
			s.Phase = PhaseRoundEnd
		} else {
			s.Phase = PhaseTurnEnd
		}
		s.CurrentRound = p.NextRound
		s.CurrentTurnIndex = p.NextTurnIndex
		s.DrawerID = p.NextDrawer
		s.CurrentWord = ""
		s.WordLength = 0
		s.WordOptions = p.WordOptions
		s.CorrectGuesses = nil
		if len(p.UsedWords) > 0 {
			s.UsedWords = p.UsedWords
		}
		if len(p.Scores) > 0 {
			s.Scores = p.Scores
		}

	case broadcast.TopicGameOver:
		var p GameOverPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		s.Phase = PhaseGameOver
		s.Winner = p.Winner
		s.WinnerType = p.WinnerType
		s.DrawerID = ""
		s.CurrentWord = ""
		// WordOptions survive on purpose: pending options under a game-over
		// tag is how the self-healer recognizes a stale game-over
		if len(p.FinalScores) > 0 {
			s.Scores = p.FinalScores
		}

	case broadcast.TopicPlayerJoin, broadcast.TopicPlayerLeave:
		var p RosterPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return s, err
		}
		s.Players = p.Players
	}

	return s, nil
}
