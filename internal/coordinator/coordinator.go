// Package coordinator is the per-participant reactive core. Each client runs
// one Coordinator per joined room: it mirrors the session state from the
// room's broadcast channel and, for the turns where the local participant is
// the drawer, acts as the single writer for the countdown and score ledger.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/session"
)

// SessionCaller is the slice of session operations the coordinator invokes
// over the network. *session.Service satisfies it directly for in-process
// use.
type SessionCaller interface {
	StartRound(ctx context.Context, req session.StartRoundRequest) (*session.StartRoundResult, error)
	EndRound(ctx context.Context, req session.EndRoundRequest) (*session.EndRoundResult, error)
	EndGame(ctx context.Context, req session.EndGameRequest) (*session.EndGameResult, error)
}

// Msg is anything the coordinator's single-threaded loop consumes.
type Msg interface{ isCoordMsg() }

// LocalGuess is the local participant typing a guess.
type LocalGuess struct{ Text string }

// SelectWord is the local drawer locking in one of their word options.
type SelectWord struct{ Word string }

// EndTurn is the local drawer ending the turn by hand.
type EndTurn struct{}

// GetState reflects internal state without data races; used by tests and
// the UI layer.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (LocalGuess) isCoordMsg() {}
func (SelectWord) isCoordMsg() {}
func (EndTurn) isCoordMsg()    {}
func (GetState) isCoordMsg()   {}
func (Shutdown) isCoordMsg()   {}

type View struct {
	Version  int
	State    session.State
	IsDrawer bool
}

// Options tune the coordinator; zero values take the defaults. Theme and
// team settings ride along because the mirror itself holds no settings.
type Options struct {
	TickInterval  time.Duration // countdown granularity, default 1s
	HealInterval  time.Duration // self-heal cadence, default 5s
	ForceEndGrace time.Duration // delay before a thin roster ends the game, default 5s
	Theme         string
	MaxWordLength int
	TeamGame      bool
	// OnPresentation receives deduplicated canvas and chat events the core
	// relays but does not interpret.
	OnPresentation func(broadcast.Event)
}

const dedupCapacity = 128

type Coordinator struct {
	roomID     string
	playerID   string
	playerName string

	channel broadcast.Channel
	caller  SessionCaller
	log     *zap.Logger
	opts    Options

	inbox      chan Msg
	sub        <-chan broadcast.Event
	unsub      func()
	state      session.State
	version    int
	turnBase   map[string]int // score ledger snapshot at the start of the turn
	hasGuessed bool
	guessSeen  *dedupRing
	canvasSeen *dedupRing
	forceEndAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, roomID, playerID, playerName string,
	channel broadcast.Channel, caller SessionCaller, log *zap.Logger, opts Options) (*Coordinator, error) {

	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.HealInterval <= 0 {
		opts.HealInterval = 5 * time.Second
	}
	if opts.ForceEndGrace <= 0 {
		opts.ForceEndGrace = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(parent)
	sub, unsub, err := channel.Subscribe(ctx, roomID)
	if err != nil {
		cancel()
		return nil, err
	}

	c := &Coordinator{
		roomID:     roomID,
		playerID:   playerID,
		playerName: playerName,
		channel:    channel,
		caller:     caller,
		log:        log.With(zap.String("room", roomID), zap.String("player", playerID)),
		opts:       opts,
		inbox:      make(chan Msg, 64),
		sub:        sub,
		unsub:      unsub,
		state:      session.NewState(roomID),
		turnBase:   map[string]int{},
		guessSeen:  newDedupRing(dedupCapacity),
		canvasSeen: newDedupRing(dedupCapacity),
		ctx:        ctx,
		cancel:     cancel,
	}
	go c.loop()
	return c, nil
}

// Inbox accepts local-action and control messages.
func (c *Coordinator) Inbox() chan<- Msg { return c.inbox }

func (c *Coordinator) loop() {
	tick := time.NewTicker(c.opts.TickInterval)
	heal := time.NewTicker(c.opts.HealInterval)
	defer tick.Stop()
	defer heal.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case ev, ok := <-c.sub:
			if !ok {
				c.shutdown()
				return
			}
			c.handleEvent(ev)

		case m := <-c.inbox:
			switch msg := m.(type) {
			case LocalGuess:
				c.role().onLocalGuess(c, msg.Text)
			case SelectWord:
				c.selectWord(msg.Word)
			case EndTurn:
				if c.isDrawer() && c.state.Phase == session.PhaseDrawing {
					c.completeTurn(session.ReasonManual)
				}
			case GetState:
				msg.Reply <- View{Version: c.version, State: c.state, IsDrawer: c.isDrawer()}
			case Shutdown:
				c.shutdown()
				return
			}

		case <-tick.C:
			c.role().onTick(c)
			c.checkForceEnd()

		case <-heal.C:
			c.heal()
		}
	}
}

func (c *Coordinator) shutdown() {
	c.unsub()
	c.cancel()
}

// handleEvent routes one broadcast event. All handlers are idempotent
// overwrites, so duplicates and stale arrivals are safe to apply.
func (c *Coordinator) handleEvent(ev broadcast.Event) {
	switch ev.Topic {
	case broadcast.TopicChatCorrect:
		var rec session.GuessRecord
		if err := json.Unmarshal(ev.Payload, &rec); err != nil {
			c.log.Warn("bad chat:correct payload", zap.Error(err))
			return
		}
		key := fmt.Sprintf("%s|%d", rec.PlayerID, rec.Timestamp)
		if c.guessSeen.Seen(key) {
			return
		}
		c.role().onCorrectGuess(c, rec)
		c.present(ev)

	case broadcast.TopicScoresUpdate:
		var p session.ScoresPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			c.log.Warn("bad scores:update payload", zap.Error(err))
			return
		}
		if !c.role().acceptScores(p) {
			return
		}
		if p.Authoritative {
			// full ledger replacement
			c.state.Scores = copyScores(p.Scores)
		} else {
			// optimistic partial: per-key overwrite on the authority
			for id, pts := range p.Scores {
				c.state.Scores[id] = pts
			}
		}
		c.version++

	case broadcast.TopicTimerUpdate:
		if c.isDrawer() {
			// the local countdown is authoritative here
			return
		}
		c.reduce(ev)

	case broadcast.TopicCanvasUpdate:
		var path session.CanvasPath
		if err := json.Unmarshal(ev.Payload, &path); err != nil || path.ID == "" {
			return
		}
		if c.canvasSeen.Seen(path.ID) {
			return
		}
		c.present(ev)

	case broadcast.TopicCanvasClear, broadcast.TopicChatGuess, broadcast.TopicChatClose:
		c.present(ev)

	default:
		c.reduce(ev)
		c.afterReduce(ev.Topic)
	}
}

func (c *Coordinator) reduce(ev broadcast.Event) {
	next, err := session.Reduce(c.state, ev)
	if err != nil {
		c.log.Warn("dropping undecodable event", zap.String("topic", ev.Topic), zap.Error(err))
		return
	}
	c.state = next
	c.version++
}

// afterReduce runs the transitions a fresh mirror state demands.
func (c *Coordinator) afterReduce(topic string) {
	switch topic {
	case broadcast.TopicWordSelected:
		// turn really begins: snapshot the ledger and reset per-turn flags
		c.turnBase = copyScores(c.state.Scores)
		c.hasGuessed = false

	case broadcast.TopicGameStart, broadcast.TopicGameRound:
		c.hasGuessed = false

	case broadcast.TopicRoundEnd:
		c.hasGuessed = false
		// the incoming drawer fetches their word options
		if c.state.Phase != session.PhaseGameOver && c.needsWordOptions() {
			c.generateWords()
		}

	case broadcast.TopicPlayerJoin, broadcast.TopicPlayerLeave:
		c.evaluateRoster()
	}
}

func (c *Coordinator) needsWordOptions() bool {
	return c.playerID == c.state.ExpectedDrawer() &&
		c.state.CurrentWord == "" &&
		len(c.state.WordOptions) == 0
}

func (c *Coordinator) eligibleGuessers() int {
	if n := len(c.state.Players); n > 1 {
		return n - 1
	}
	return len(c.state.TurnOrder) - 1
}

// selectWord locks in the drawer's choice and opens the drawing phase.
func (c *Coordinator) selectWord(word string) {
	if !c.isDrawer() || c.state.Phase != session.PhaseWordSelection {
		return
	}
	res, err := c.caller.StartRound(c.ctx, session.StartRoundRequest{
		Action:       session.RoundActionStartRound,
		RoomID:       c.roomID,
		DrawerID:     c.playerID,
		RoundNumber:  c.state.CurrentRound,
		TurnIndex:    c.state.CurrentTurnIndex,
		TurnOrder:    c.state.TurnOrder,
		UsedWords:    c.state.UsedWords,
		DrawingTime:  c.state.DrawingTime,
		Theme:        c.opts.Theme,
		SelectedWord: word,
	})
	if err != nil {
		c.log.Error("start_round call failed", zap.Error(err))
		return
	}
	c.publishAndApply(broadcast.TopicWordSelected, session.WordSelectedPayload{
		Word:        res.SelectedWord,
		WordLength:  res.WordLength,
		DrawingTime: res.DrawingTime,
		UsedWords:   res.UsedWords,
	})
}

// generateWords fetches exactly 3 options for the local drawer. This is one
// of the two paths with an automatic retry.
func (c *Coordinator) generateWords() {
	var res *session.StartRoundResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		res, err = c.caller.StartRound(c.ctx, session.StartRoundRequest{
			Action:        session.RoundActionGenerateWords,
			RoomID:        c.roomID,
			DrawerID:      c.playerID,
			RoundNumber:   c.state.CurrentRound,
			TurnIndex:     c.state.CurrentTurnIndex,
			TurnOrder:     c.state.TurnOrder,
			UsedWords:     c.state.UsedWords,
			Theme:         c.opts.Theme,
			MaxWordLength: c.opts.MaxWordLength,
		})
		if err == nil {
			break
		}
	}
	if err != nil {
		c.log.Error("generate_words failed after retry", zap.Error(err))
		return
	}
	c.publishAndApply(broadcast.TopicGameRound, session.RoundPayload{
		Round:       c.state.CurrentRound,
		TurnIndex:   c.state.CurrentTurnIndex,
		TurnOrder:   c.state.TurnOrder,
		DrawerID:    c.playerID,
		WordOptions: res.WordOptions,
	})
}

// completeTurn is the authority ending the turn: final scoring call, final
// authoritative ledger, round-end broadcast, and terminal handling.
func (c *Coordinator) completeTurn(reason string) {
	if c.state.Phase != session.PhaseDrawing {
		return
	}
	guesses := make([]session.PlayerGuess, len(c.state.CorrectGuesses))
	for i, g := range c.state.CorrectGuesses {
		guesses[i] = session.PlayerGuess{
			PlayerID:   g.PlayerID,
			PlayerName: g.PlayerName,
			TimeTaken:  g.TimeTaken,
			Timestamp:  g.Timestamp,
		}
	}

	res, err := c.caller.EndRound(c.ctx, session.EndRoundRequest{
		RoomID:           c.roomID,
		CurrentDrawerID:  c.playerID,
		Word:             c.state.CurrentWord,
		PlayerScores:     guesses,
		CurrentRound:     c.state.CurrentRound,
		TotalRounds:      c.state.TotalRounds,
		TurnOrder:        c.state.TurnOrder,
		CurrentTurnIndex: c.state.CurrentTurnIndex,
		Reason:           reason,
	})
	if err != nil {
		c.log.Error("end-round call failed", zap.String("reason", reason), zap.Error(err))
		return
	}

	final := copyScores(c.turnBase)
	for id, pts := range res.Scores {
		final[id] += pts
	}
	c.publishAndApply(broadcast.TopicScoresUpdate, session.ScoresPayload{Scores: final, Authoritative: true})
	c.publishAndApply(broadcast.TopicRoundEnd, session.RoundEndPayload{
		Word:          c.state.CurrentWord,
		Scores:        final,
		NextDrawer:    res.NextDrawer,
		NextTurnIndex: res.NextTurnIndex,
		NextRound:     res.NextRound,
		IsNewRound:    res.IsNewRound,
		IsGameOver:    res.IsGameOver,
		Reason:        reason,
		UsedWords:     c.state.UsedWords,
	})
	c.publish(broadcast.TopicCanvasClear, nil)

	if res.IsGameOver {
		c.finishGame(final, session.EndReasonCompleted)
	}
}

func (c *Coordinator) finishGame(finalScores map[string]int, reason string) {
	var teamScores map[string]int
	if c.opts.TeamGame {
		teamScores = map[string]int{}
		for _, p := range c.state.Players {
			if p.Team != "" {
				teamScores[p.Team] += finalScores[p.ID]
			}
		}
	}
	res, err := c.caller.EndGame(c.ctx, session.EndGameRequest{
		RoomID:      c.roomID,
		FinalScores: finalScores,
		TeamScores:  teamScores,
		Reason:      reason,
	})
	if err != nil {
		c.log.Error("end-game call failed", zap.Error(err))
		return
	}
	c.publishAndApply(broadcast.TopicGameOver, session.GameOverPayload{
		Winner:      res.Winner,
		WinnerType:  res.WinnerType,
		FinalScores: res.FinalScores,
		Message:     res.Message,
	})
}

// evaluateRoster arms or disarms the forced-end countdown after roster
// churn. The short grace absorbs disconnect/reconnect blips.
func (c *Coordinator) evaluateRoster() {
	if !c.state.IsActive() {
		c.forceEndAt = time.Time{}
		return
	}
	if !c.rosterTooThin() {
		c.forceEndAt = time.Time{}
		return
	}
	if !c.amForceEndOwner() {
		return
	}
	if c.forceEndAt.IsZero() {
		c.forceEndAt = time.Now().Add(c.opts.ForceEndGrace)
		c.log.Info("roster too thin, arming forced end",
			zap.Duration("grace", c.opts.ForceEndGrace))
	}
}

func (c *Coordinator) rosterTooThin() bool {
	if len(c.state.Players) <= 1 {
		return true
	}
	if c.opts.TeamGame {
		teams := map[string]bool{}
		for _, p := range c.state.Players {
			if p.Team != "" {
				teams[p.Team] = true
			}
		}
		return len(teams) < 2
	}
	return false
}

// amForceEndOwner picks one deterministic participant to run the forced
// end: the drawer if still present, otherwise the first surviving player.
func (c *Coordinator) amForceEndOwner() bool {
	drawer := c.state.ExpectedDrawer()
	for _, p := range c.state.Players {
		if p.ID == drawer {
			return drawer == c.playerID
		}
	}
	return len(c.state.Players) > 0 && c.state.Players[0].ID == c.playerID
}

func (c *Coordinator) checkForceEnd() {
	if c.forceEndAt.IsZero() || time.Now().Before(c.forceEndAt) {
		return
	}
	c.forceEndAt = time.Time{}
	if !c.rosterTooThin() || !c.state.IsActive() {
		return
	}
	c.log.Info("forced end: not enough players to continue")
	c.finishGame(copyScores(c.state.Scores), session.EndReasonInsufficient)
}

// heal repairs the two impossible mirror combinations that lost or
// duplicated events can leave behind. Best effort, not a guarantee.
func (c *Coordinator) heal() {
	// game-over flag with unconsumed word options: the game-over was stale
	if c.state.Phase == session.PhaseGameOver && len(c.state.WordOptions) > 0 {
		c.log.Warn("healing: clearing stale game-over flag")
		c.state.Phase = session.PhaseWordSelection
		c.state.DrawerID = c.state.ExpectedDrawer()
		c.version++
	}
	// designated drawer stuck with no word and no options
	if c.state.IsActive() && c.state.Phase != session.PhaseDrawing &&
		c.needsWordOptions() && len(c.state.Players) > 1 {
		c.log.Warn("healing: drawer has no word options, regenerating")
		c.generateWords()
	}
}

// publishAndApply applies an event locally first (optimistic echo), then
// broadcasts it. The reducer's idempotence makes the later self-delivery a
// no-op.
func (c *Coordinator) publishAndApply(topic string, payload any) {
	ev, err := broadcast.NewEvent(c.roomID, topic, payload)
	if err != nil {
		c.log.Error("marshal broadcast payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	c.reduce(ev)
	c.afterReduce(topic)
	if err := c.channel.Publish(c.ctx, ev); err != nil {
		c.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *Coordinator) publish(topic string, payload any) {
	ev, err := broadcast.NewEvent(c.roomID, topic, payload)
	if err != nil {
		c.log.Error("marshal broadcast payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := c.channel.Publish(c.ctx, ev); err != nil {
		c.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

type chatPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
}

func (c *Coordinator) publishChat(topic, text string) {
	c.publish(topic, chatPayload{PlayerID: c.playerID, PlayerName: c.playerName, Text: text})
}

func (c *Coordinator) present(ev broadcast.Event) {
	if c.opts.OnPresentation != nil {
		c.opts.OnPresentation(ev)
	}
}
