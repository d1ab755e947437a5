package coordinator

import (
	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/guess"
	"github.com/sketchparty/backend/internal/rotation"
	"github.com/sketchparty/backend/internal/session"

	"go.uber.org/zap"
)

// role is the authority strategy for the current turn. Which one a
// participant holds is a pure function of turnOrder[currentTurnIndex], so
// every mirror agrees on the single writer without any election round.
type role interface {
	// onTick fires once per second of local wall clock.
	onTick(c *Coordinator)
	// onCorrectGuess handles a deduplicated chat:correct event.
	onCorrectGuess(c *Coordinator, rec session.GuessRecord)
	// acceptScores decides whether an inbound scores:update applies here.
	acceptScores(p session.ScoresPayload) bool
	// onLocalGuess handles the local participant typing a guess.
	onLocalGuess(c *Coordinator, text string)
}

func (c *Coordinator) role() role {
	if c.isDrawer() {
		return drawerRole{}
	}
	return guesserRole{}
}

func (c *Coordinator) isDrawer() bool {
	return c.state.IsActive() && c.playerID == c.state.ExpectedDrawer()
}

// drawerRole is the turn authority: sole owner of the countdown, the score
// ledger and turn-completion detection.
type drawerRole struct{}

func (drawerRole) onTick(c *Coordinator) {
	if c.state.Phase != session.PhaseDrawing {
		return
	}
	c.state.TimeRemaining--
	c.version++
	c.publish(broadcast.TopicTimerUpdate, session.TimerPayload{Remaining: c.state.TimeRemaining})
	if c.state.TimeRemaining <= 0 {
		c.completeTurn(session.ReasonTimeout)
	}
}

func (drawerRole) onCorrectGuess(c *Coordinator, rec session.GuessRecord) {
	if c.state.Phase != session.PhaseDrawing || rec.PlayerID == c.playerID {
		return
	}
	rec.Points = rotation.GuesserPoints(rec.TimeTaken)
	c.state.CorrectGuesses = append(c.state.CorrectGuesses, rec)
	c.version++

	// rebuild the ledger from the turn-start snapshot so reapplication is
	// a no-op rather than a double count
	ledger := copyScores(c.turnBase)
	for _, g := range c.state.CorrectGuesses {
		ledger[g.PlayerID] += g.Points
	}
	c.state.Scores = ledger
	c.publish(broadcast.TopicScoresUpdate, session.ScoresPayload{Scores: ledger, Authoritative: true})

	if len(c.state.CorrectGuesses) >= c.eligibleGuessers() {
		c.completeTurn(session.ReasonAllGuessed)
	}
}

// The authority folds every score signal, including optimistic partials.
func (drawerRole) acceptScores(session.ScoresPayload) bool { return true }

func (drawerRole) onLocalGuess(c *Coordinator, text string) {
	// the drawer knows the word; their chat is never a guess
	c.publishChat(broadcast.TopicChatGuess, text)
}

// guesserRole mirrors the authority's broadcasts and only originates its own
// guess events.
type guesserRole struct{}

func (guesserRole) onTick(*Coordinator) {
	// the countdown arrives via timer:update; advancing it locally would
	// make this client a second writer
}

func (guesserRole) onCorrectGuess(c *Coordinator, rec session.GuessRecord) {
	// kept for display only; the ledger comes from authoritative updates
	c.state.CorrectGuesses = append(c.state.CorrectGuesses, rec)
	c.version++
}

func (guesserRole) acceptScores(p session.ScoresPayload) bool { return p.Authoritative }

func (guesserRole) onLocalGuess(c *Coordinator, text string) {
	if c.state.Phase != session.PhaseDrawing || c.state.CurrentWord == "" {
		c.publishChat(broadcast.TopicChatGuess, text)
		return
	}
	if c.hasGuessed {
		return
	}

	res := guess.Evaluate(text, c.state.CurrentWord)
	switch {
	case res.IsCorrect:
		c.hasGuessed = true
		taken := float64(c.state.DrawingTime - c.state.TimeRemaining)
		rec := session.GuessRecord{
			PlayerID:   c.playerID,
			PlayerName: c.playerName,
			TimeTaken:  taken,
			Points:     rotation.GuesserPoints(taken),
			Timestamp:  session.NowMillis(),
		}
		c.publish(broadcast.TopicChatCorrect, rec)
		// optimistic partial: own entry only, non-authoritative. Only the
		// authority folds it; everyone else waits for the authoritative
		// ledger, so nothing double counts.
		echo := map[string]int{c.playerID: c.state.Scores[c.playerID] + rec.Points}
		c.publish(broadcast.TopicScoresUpdate, session.ScoresPayload{Scores: echo, Authoritative: false})
		c.log.Debug("guessed the word", zap.String("player", c.playerID), zap.Float64("timeTaken", taken))

	case res.IsClose:
		c.publish(broadcast.TopicChatClose, session.ChatClosePayload{
			PlayerID: c.playerID, PlayerName: c.playerName,
		})

	default:
		c.publishChat(broadcast.TopicChatGuess, text)
	}
}

func copyScores(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
