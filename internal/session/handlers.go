package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/sketchparty/backend/internal/guess"
	"github.com/sketchparty/backend/internal/registry"
	"github.com/sketchparty/backend/internal/rotation"
	"github.com/sketchparty/backend/internal/words"
)

// Service hosts the stateless session operations. Each call is a single
// request/response transition; no per-turn state survives between calls, so
// any participant can invoke any operation and the result is broadcast by
// the caller.
type Service struct {
	store registry.Store
	log   *zap.Logger
}

func NewService(store registry.Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

const roomCodeLen = 6

func generateRoomCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	code := make([]byte, roomCodeLen)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type CreateRoomResult struct {
	RoomID    string            `json:"roomId"`
	Settings  registry.Settings `json:"settings"`
	CreatedAt time.Time         `json:"createdAt"`
}

// CreateRoom persists a fresh room. The roster stays empty until the host
// joins; the first joiner is marked creator.
func (s *Service) CreateRoom(ctx context.Context, hostID string, settings registry.Settings) (*CreateRoomResult, error) {
	if hostID == "" {
		return nil, invalid(CodeMissingField, "hostId", "host id is required")
	}
	if settings.Rounds <= 0 {
		settings.Rounds = 3
	}
	if settings.DrawingTime <= 0 {
		settings.DrawingTime = rotation.GuessWindowSec
	}

	var code string
	for {
		c, err := generateRoomCode()
		if err != nil {
			return nil, err
		}
		if _, err := s.store.Get(ctx, c); errors.Is(err, registry.ErrNotFound) {
			code = c
			break
		} else if err != nil {
			return nil, err
		}
		s.log.Debug("room code collision, regenerating", zap.String("code", c))
	}

	room := &registry.Room{
		Code:       code,
		HostID:     hostID,
		Players:    []registry.Player{},
		Settings:   settings,
		Status:     registry.StatusLobby,
		Active:     true,
		MaxPlayers: registry.MaxPlayers,
	}
	if err := s.store.Create(ctx, room); err != nil {
		return nil, err
	}
	s.log.Info("room created", zap.String("room", code), zap.String("host", hostID))
	return &CreateRoomResult{RoomID: code, Settings: settings, CreatedAt: room.CreatedAt}, nil
}

const (
	JoinActionJoin     = "join"
	JoinActionLeave    = "leave"
	JoinActionGetState = "get-state"
)

type JoinRequest struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	Action      string `json:"action"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Team        string `json:"team,omitempty"`
}

type JoinResult struct {
	Room        *registry.Room `json:"room,omitempty"`
	RoomDeleted bool           `json:"roomDeleted,omitempty"`
	// ForceEnd signals the caller that the remaining roster can no longer
	// sustain the active game. The caller owns the grace delay before
	// actually ending.
	ForceEnd bool `json:"forceEnd,omitempty"`
}

// JoinRoom mutates the roster. Leaving the last player deletes the room.
func (s *Service) JoinRoom(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if req.RoomID == "" {
		return nil, invalid(CodeMissingField, "roomId", "room id is required")
	}
	if req.PlayerID == "" {
		return nil, invalid(CodeMissingField, "playerId", "player id is required")
	}

	room, err := s.store.Get(ctx, req.RoomID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case JoinActionGetState:
		return &JoinResult{Room: room}, nil

	case JoinActionJoin, "":
		if existing := room.FindPlayer(req.PlayerID); existing != nil {
			// rejoin: refresh display data, keep seat
			existing.DisplayName = req.DisplayName
			existing.AvatarURL = req.AvatarURL
		} else {
			if len(room.Players) >= room.MaxPlayers {
				return nil, invalid(CodeRoomFull, "playerId",
					fmt.Sprintf("room is limited to %d players", room.MaxPlayers))
			}
			room.Players = append(room.Players, registry.Player{
				ID:          req.PlayerID,
				DisplayName: req.DisplayName,
				AvatarURL:   req.AvatarURL,
				Team:        req.Team,
				IsCreator:   len(room.Players) == 0,
				JoinedAt:    time.Now(),
			})
			if len(room.Players) == 1 {
				room.HostID = req.PlayerID
			}
		}
		if err := s.store.Save(ctx, room); err != nil {
			return nil, err
		}
		return &JoinResult{Room: room}, nil

	case JoinActionLeave:
		kept := room.Players[:0]
		for _, p := range room.Players {
			if p.ID != req.PlayerID {
				kept = append(kept, p)
			}
		}
		room.Players = kept

		if len(room.Players) == 0 {
			if err := s.store.Delete(ctx, room.Code); err != nil {
				return nil, err
			}
			s.log.Info("room emptied and deleted", zap.String("room", room.Code))
			return &JoinResult{RoomDeleted: true}, nil
		}
		if room.HostID == req.PlayerID {
			room.HostID = room.Players[0].ID
		}
		if err := s.store.Save(ctx, room); err != nil {
			return nil, err
		}
		return &JoinResult{Room: room, ForceEnd: s.rosterTooThin(room)}, nil

	default:
		return nil, invalid(CodeUnknownAction, "action", "action must be join, leave or get-state")
	}
}

// rosterTooThin reports whether an in-flight game can continue: at least 2
// players, and for team mode at least 2 surviving teams.
func (s *Service) rosterTooThin(room *registry.Room) bool {
	if room.Status != registry.StatusPlaying {
		return false
	}
	if len(room.Players) <= 1 {
		return true
	}
	if room.Settings.IsTeamGame {
		teams := map[string]bool{}
		for _, p := range room.Players {
			if p.Team != "" {
				teams[p.Team] = true
			}
		}
		return len(teams) < 2
	}
	return false
}

type StartGameRequest struct {
	RoomID   string            `json:"roomId"`
	HostID   string            `json:"hostId"`
	Players  []registry.Player `json:"players"`
	Settings registry.Settings `json:"settings"`
}

type StartGameResult struct {
	Round       int      `json:"round"`
	TotalRounds int      `json:"totalRounds"`
	NextDrawer  string   `json:"nextDrawer"`
	WordOptions []string `json:"wordOptions"`
	TurnOrder   []string `json:"turnOrder"`
	DrawingTime int      `json:"drawingTime"`
	Theme       string   `json:"theme"`
}

// StartGame validates the lobby, builds the rotation and offers the first
// drawer their word options. The room row is updated as a side effect.
func (s *Service) StartGame(ctx context.Context, req StartGameRequest) (*StartGameResult, error) {
	if req.RoomID == "" {
		return nil, invalid(CodeMissingField, "roomId", "room id is required")
	}
	if len(req.Players) < 2 {
		return nil, invalid(CodeNotEnoughPlayers, "players", "need at least 2 players to start")
	}
	if req.Settings.IsTeamGame {
		teams := map[string]bool{}
		for _, p := range req.Players {
			if p.Team != "" {
				teams[p.Team] = true
			}
		}
		if len(teams) < 2 {
			return nil, invalid(CodeIncompleteTeams, "players", "team game needs 2 non-empty teams")
		}
	}

	room, err := s.store.Get(ctx, req.RoomID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if room.Status == registry.StatusPlaying {
		return nil, invalid(CodeGameNotStartable, "roomId", "game already running")
	}

	seats := make([]rotation.Seat, len(req.Players))
	for i, p := range req.Players {
		seats[i] = rotation.Seat{ID: p.ID, Team: p.Team}
	}
	turnOrder := rotation.BuildTurnOrder(seats, req.Settings.IsTeamGame, req.HostID)

	theme := s.resolveTheme(req.Settings)
	options := words.PickOptions(theme, nil, req.Settings.MaxWordLength)

	room.Players = req.Players
	room.Settings = req.Settings
	room.Status = registry.StatusPlaying
	if err := s.store.Save(ctx, room); err != nil {
		return nil, err
	}

	s.log.Info("game started",
		zap.String("room", req.RoomID),
		zap.Int("players", len(req.Players)),
		zap.Strings("turnOrder", turnOrder))

	return &StartGameResult{
		Round:       1,
		TotalRounds: req.Settings.Rounds,
		NextDrawer:  turnOrder[0],
		WordOptions: options,
		TurnOrder:   turnOrder,
		DrawingTime: req.Settings.DrawingTime,
		Theme:       theme,
	}, nil
}

func (s *Service) resolveTheme(settings registry.Settings) string {
	if !settings.IsThemedGame || settings.Theme == "" {
		return words.ThemeDefault
	}
	return settings.Theme
}

const (
	RoundActionGenerateWords = "generate_words"
	RoundActionStartRound    = "start_round"
)

type StartRoundRequest struct {
	Action        string   `json:"action"`
	RoomID        string   `json:"roomId"`
	DrawerID      string   `json:"drawerId"`
	RoundNumber   int      `json:"roundNumber"`
	TurnIndex     int      `json:"turnIndex"`
	TurnOrder     []string `json:"turnOrder"`
	UsedWords     []string `json:"usedWords"`
	DrawingTime   int      `json:"drawingTime"`
	Theme         string   `json:"theme"`
	MaxWordLength int      `json:"maxWordLength"`
	SelectedWord  string   `json:"selectedWord,omitempty"`
}

type StartRoundResult struct {
	WordOptions  []string `json:"wordOptions,omitempty"`
	SelectedWord string   `json:"selectedWord,omitempty"`
	WordLength   int      `json:"wordLength,omitempty"`
	DrawingTime  int      `json:"drawingTime,omitempty"`
	UsedWords    []string `json:"usedWords,omitempty"`
	TurnIndex    int      `json:"turnIndex"`
	TurnOrder    []string `json:"turnOrder,omitempty"`
}

// StartRound serves both halves of the word-selection phase: generating 3
// options for the drawer, then locking in the chosen word.
func (s *Service) StartRound(ctx context.Context, req StartRoundRequest) (*StartRoundResult, error) {
	if req.RoomID == "" {
		return nil, invalid(CodeMissingField, "roomId", "room id is required")
	}
	if req.DrawerID == "" {
		return nil, invalid(CodeMissingField, "drawerId", "drawer id is required")
	}

	theme := req.Theme
	if theme == "" {
		theme = words.ThemeDefault
	}

	switch req.Action {
	case RoundActionGenerateWords:
		return &StartRoundResult{
			WordOptions: words.PickOptions(theme, req.UsedWords, req.MaxWordLength),
			TurnIndex:   req.TurnIndex,
			TurnOrder:   req.TurnOrder,
		}, nil

	case RoundActionStartRound:
		if req.SelectedWord == "" {
			return nil, invalid(CodeMissingField, "selectedWord", "a word must be selected to start the round")
		}
		s.touch(ctx, req.RoomID)
		used := append(append([]string(nil), req.UsedWords...), req.SelectedWord)
		drawingTime := req.DrawingTime
		if drawingTime <= 0 {
			drawingTime = rotation.GuessWindowSec
		}
		return &StartRoundResult{
			SelectedWord: req.SelectedWord,
			WordLength:   len([]rune(req.SelectedWord)),
			DrawingTime:  drawingTime,
			UsedWords:    used,
			TurnIndex:    req.TurnIndex,
			TurnOrder:    req.TurnOrder,
		}, nil

	default:
		return nil, invalid(CodeUnknownAction, "action", "action must be generate_words or start_round")
	}
}

// touch bumps the room's activity clock so the sweeper leaves live games
// alone. Best effort.
func (s *Service) touch(ctx context.Context, roomID string) {
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return
	}
	if err := s.store.Save(ctx, room); err != nil {
		s.log.Debug("failed to touch room", zap.String("room", roomID), zap.Error(err))
	}
}

// End-round reasons.
const (
	ReasonTimeout    = "timeout"
	ReasonAllGuessed = "all_guessed"
	ReasonManual     = "manual"
)

// PlayerGuess is one correct guesser reported at turn end.
type PlayerGuess struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	TimeTaken  float64 `json:"timeTaken"`
	Timestamp  int64   `json:"timestamp"`
}

type EndRoundRequest struct {
	RoomID           string        `json:"roomId"`
	CurrentDrawerID  string        `json:"currentDrawerId"`
	Word             string        `json:"word"`
	PlayerScores     []PlayerGuess `json:"playerScores"`
	CurrentRound     int           `json:"currentRound"`
	TotalRounds      int           `json:"totalRounds"`
	TurnOrder        []string      `json:"turnOrder"`
	CurrentTurnIndex int           `json:"currentTurnIndex"`
	Reason           string        `json:"reason"`
}

type GameProgress struct {
	CompletedTurns int `json:"completedTurns"`
	TotalTurns     int `json:"totalTurns"`
}

type EndRoundResult struct {
	Scores         map[string]int `json:"scores"`
	CorrectGuesses []GuessRecord  `json:"correctGuesses"`
	NextDrawer     string         `json:"nextDrawer"`
	NextTurnIndex  int            `json:"nextTurnIndex"`
	NextRound      int            `json:"nextRound"`
	IsNewRound     bool           `json:"isNewRound"`
	IsGameOver     bool           `json:"isGameOver"`
	GameProgress   GameProgress   `json:"gameProgress"`
}

// EndRound scores the finished turn and advances the rotation. On game over
// the room row is deleted outright; mid-round state was never persisted, so
// that is the terminal cleanup.
func (s *Service) EndRound(ctx context.Context, req EndRoundRequest) (*EndRoundResult, error) {
	if err := validateEndRound(req); err != nil {
		return nil, err
	}

	roundScores := make(map[string]int, len(req.PlayerScores)+1)
	records := make([]GuessRecord, 0, len(req.PlayerScores))
	for _, g := range req.PlayerScores {
		pts := rotation.GuesserPoints(g.TimeTaken)
		roundScores[g.PlayerID] += pts
		records = append(records, GuessRecord{
			PlayerID:   g.PlayerID,
			PlayerName: g.PlayerName,
			TimeTaken:  g.TimeTaken,
			Points:     pts,
			Timestamp:  g.Timestamp,
		})
	}
	roundScores[req.CurrentDrawerID] += rotation.DrawerPoints(len(req.PlayerScores), len(req.TurnOrder))

	next := rotation.NextTurn(req.TurnOrder, req.CurrentTurnIndex, req.CurrentRound, req.TotalRounds)

	if next.IsGameOver {
		if err := s.store.Delete(ctx, req.RoomID); err != nil {
			s.log.Warn("failed to delete finished room", zap.String("room", req.RoomID), zap.Error(err))
		}
	} else {
		s.touch(ctx, req.RoomID)
	}

	return &EndRoundResult{
		Scores:         roundScores,
		CorrectGuesses: records,
		NextDrawer:     next.NextDrawer,
		NextTurnIndex:  next.NextIndex,
		NextRound:      next.NextRound,
		IsNewRound:     next.IsNewRound,
		IsGameOver:     next.IsGameOver,
		GameProgress: GameProgress{
			CompletedTurns: (req.CurrentRound-1)*len(req.TurnOrder) + req.CurrentTurnIndex + 1,
			TotalTurns:     req.TotalRounds * len(req.TurnOrder),
		},
	}, nil
}

func validateEndRound(req EndRoundRequest) error {
	switch {
	case req.RoomID == "":
		return invalid(CodeMissingField, "roomId", "room id is required")
	case req.CurrentDrawerID == "":
		return invalid(CodeMissingField, "currentDrawerId", "drawer id is required")
	case req.Word == "":
		return invalid(CodeMissingField, "word", "word is required")
	case len(req.TurnOrder) == 0:
		return invalid(CodeMissingField, "turnOrder", "turn order is required")
	case req.CurrentRound <= 0 || req.TotalRounds <= 0:
		return invalid(CodeBadField, "currentRound", "round counters must be positive")
	case req.CurrentTurnIndex < 0 || req.CurrentTurnIndex >= len(req.TurnOrder):
		return invalid(CodeBadField, "currentTurnIndex", "turn index outside turn order")
	}
	switch req.Reason {
	case ReasonTimeout, ReasonAllGuessed, ReasonManual:
		return nil
	default:
		return invalid(CodeBadField, "reason", "reason must be timeout, all_guessed or manual")
	}
}

// End-game reasons.
const (
	EndReasonCompleted    = "completed"
	EndReasonHostEnded    = "host_ended"
	EndReasonInsufficient = "insufficient_players"
)

type EndGameRequest struct {
	RoomID      string         `json:"roomId"`
	Winner      string         `json:"winner,omitempty"`
	FinalScores map[string]int `json:"finalScores"`
	TeamScores  map[string]int `json:"teamScores,omitempty"`
	Reason      string         `json:"reason"`
}

type EndGameResult struct {
	Winner      string         `json:"winner"`
	WinnerType  string         `json:"winnerType"`
	FinalScores map[string]int `json:"finalScores"`
	TeamScores  map[string]int `json:"teamScores,omitempty"`
	Message     string         `json:"message"`
}

// EndGame derives a winner when none is supplied and deletes the room.
func (s *Service) EndGame(ctx context.Context, req EndGameRequest) (*EndGameResult, error) {
	if req.RoomID == "" {
		return nil, invalid(CodeMissingField, "roomId", "room id is required")
	}

	winner := req.Winner
	winnerType := "player"
	if len(req.TeamScores) > 0 {
		winnerType = "team"
		if winner == "" {
			winner = topScorer(req.TeamScores)
		}
	} else if winner == "" {
		winner = topScorer(req.FinalScores)
	}

	if err := s.store.Delete(ctx, req.RoomID); err != nil {
		s.log.Warn("failed to delete ended room", zap.String("room", req.RoomID), zap.Error(err))
	}
	s.log.Info("game ended",
		zap.String("room", req.RoomID),
		zap.String("winner", winner),
		zap.String("reason", req.Reason))

	return &EndGameResult{
		Winner:      winner,
		WinnerType:  winnerType,
		FinalScores: req.FinalScores,
		TeamScores:  req.TeamScores,
		Message:     endMessage(req.Reason, winner),
	}, nil
}

func topScorer(scores map[string]int) string {
	best := ""
	bestPts := -1
	for id, pts := range scores {
		if pts > bestPts || (pts == bestPts && id < best) {
			best, bestPts = id, pts
		}
	}
	return best
}

func endMessage(reason, winner string) string {
	switch reason {
	case EndReasonHostEnded:
		return fmt.Sprintf("The host ended the game. %s wins!", winner)
	case EndReasonInsufficient:
		return fmt.Sprintf("Not enough players to continue. %s wins!", winner)
	default:
		return fmt.Sprintf("Game over! %s wins!", winner)
	}
}

// SubmitGuess evaluates a guess against the secret word. Pure; exposed as an
// operation so guess checking stays consistent across clients.
func (s *Service) SubmitGuess(guessText, actualWord string) guess.Result {
	return guess.Evaluate(guessText, actualWord)
}
