package coordinator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sketchparty/backend/internal/broadcast"
	"github.com/sketchparty/backend/internal/registry"
	"github.com/sketchparty/backend/internal/session"
)

type fixture struct {
	channel *broadcast.Local
	store   *registry.MemoryStore
	svc     *session.Service
	tap     <-chan broadcast.Event
}

func newFixture(t *testing.T, roomID string, players ...registry.Player) *fixture {
	t.Helper()
	store := registry.NewMemoryStore()
	room := &registry.Room{
		Code:       roomID,
		Players:    players,
		Status:     registry.StatusPlaying,
		Active:     true,
		MaxPlayers: registry.MaxPlayers,
	}
	if len(players) > 0 {
		room.HostID = players[0].ID
	}
	require.NoError(t, store.Create(context.Background(), room))

	channel := broadcast.NewLocal()
	tap, cancel, err := channel.Subscribe(context.Background(), roomID)
	require.NoError(t, err)
	t.Cleanup(cancel)

	return &fixture{
		channel: channel,
		store:   store,
		svc:     session.NewService(store, zap.NewNop()),
		tap:     tap,
	}
}

func (f *fixture) coordinator(t *testing.T, playerID string, opts Options) *Coordinator {
	t.Helper()
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Hour // keep ticks out of non-timer tests
	}
	if opts.HealInterval == 0 {
		opts.HealInterval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := New(ctx, "ROOM", playerID, "name-"+playerID, f.channel, f.svc, zap.NewNop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Inbox() <- Shutdown{} })
	return c
}

func (f *fixture) emit(t *testing.T, topic string, payload any) {
	t.Helper()
	ev, err := broadcast.NewEvent("ROOM", topic, payload)
	require.NoError(t, err)
	require.NoError(t, f.channel.Publish(context.Background(), ev))
}

// waitForView polls GetState until cond holds or the deadline passes.
func waitForView(t *testing.T, c *Coordinator, within time.Duration, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		reply := make(chan View, 1)
		c.Inbox() <- GetState{Reply: reply}
		select {
		case v := <-reply:
			if cond(v) {
				return v
			}
		case <-time.After(within):
		}
		if time.Now().After(deadline) {
			reply := make(chan View, 1)
			c.Inbox() <- GetState{Reply: reply}
			v := <-reply
			t.Fatalf("condition not reached within %v; last state: %+v", within, v.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// waitForTopic drains the tap until an event with the topic arrives.
func waitForTopic(t *testing.T, tap <-chan broadcast.Event, topic string, within time.Duration) broadcast.Event {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev, ok := <-tap:
			if !ok {
				t.Fatalf("tap closed while waiting for %s", topic)
			}
			if ev.Topic == topic {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within %v", topic, within)
		}
	}
}

func gameStart(drawer string, order []string, drawingTime int) session.GameStartPayload {
	return session.GameStartPayload{
		Round:       1,
		TotalRounds: 2,
		TurnOrder:   order,
		DrawerID:    drawer,
		WordOptions: []string{"cat", "dog", "fox"},
		DrawingTime: drawingTime,
	}
}

func correctGuess(playerID string, taken float64, ts int64) session.GuessRecord {
	return session.GuessRecord{
		PlayerID:   playerID,
		PlayerName: "name-" + playerID,
		TimeTaken:  taken,
		Timestamp:  ts,
	}
}

func TestCoordinatorMirrorsGameStart(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "B", Options{})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 60))

	v := waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseWordSelection
	})
	assert.Equal(t, "A", v.State.DrawerID)
	assert.False(t, v.IsDrawer)
	assert.Equal(t, v.State.ExpectedDrawer(), v.State.DrawerID)
}

func TestDrawerSelectsWordAndOwnsTimer(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "A", Options{TickInterval: 10 * time.Millisecond})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 3))
	waitForView(t, c, time.Second, func(v View) bool { return v.IsDrawer })

	c.Inbox() <- SelectWord{Word: "cat"}

	sel := waitForTopic(t, f.tap, broadcast.TopicWordSelected, time.Second)
	var wp session.WordSelectedPayload
	require.NoError(t, json.Unmarshal(sel.Payload, &wp))
	assert.Equal(t, "cat", wp.Word)
	assert.Equal(t, 3, wp.WordLength)
	assert.Contains(t, wp.UsedWords, "cat")

	// the drawer's clock drives timer:update broadcasts
	tick := waitForTopic(t, f.tap, broadcast.TopicTimerUpdate, time.Second)
	var tp session.TimerPayload
	require.NoError(t, json.Unmarshal(tick.Payload, &tp))
	assert.Less(t, tp.Remaining, 3)

	// countdown exhaustion ends the round with reason timeout
	end := waitForTopic(t, f.tap, broadcast.TopicRoundEnd, 2*time.Second)
	var rp session.RoundEndPayload
	require.NoError(t, json.Unmarshal(end.Payload, &rp))
	assert.Equal(t, session.ReasonTimeout, rp.Reason)
	assert.Equal(t, "B", rp.NextDrawer)
	assert.Equal(t, "cat", rp.Word)
}

func TestAuthorityFoldsGuessesAndDedupes(t *testing.T) {
	f := newFixture(t, "ROOM",
		registry.Player{ID: "A"}, registry.Player{ID: "B"}, registry.Player{ID: "C"})
	c := f.coordinator(t, "A", Options{})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B", "C"}, 60))
	waitForView(t, c, time.Second, func(v View) bool { return v.IsDrawer })
	c.Inbox() <- SelectWord{Word: "cat"}
	waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseDrawing
	})

	// same (playerId, timestamp) delivered twice: ledger moves exactly once
	f.emit(t, broadcast.TopicChatCorrect, correctGuess("B", 0, 1111))
	f.emit(t, broadcast.TopicChatCorrect, correctGuess("B", 0, 1111))

	v := waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Scores["B"] == 100
	})
	assert.Len(t, v.State.CorrectGuesses, 1, "duplicate guess event folded once")

	scores := waitForTopic(t, f.tap, broadcast.TopicScoresUpdate, time.Second)
	var sp session.ScoresPayload
	require.NoError(t, json.Unmarshal(scores.Payload, &sp))
	assert.True(t, sp.Authoritative)
}

func TestAuthorityDetectsAllGuessed(t *testing.T) {
	f := newFixture(t, "ROOM",
		registry.Player{ID: "A"}, registry.Player{ID: "B"}, registry.Player{ID: "C"})
	c := f.coordinator(t, "A", Options{})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B", "C"}, 60))
	waitForView(t, c, time.Second, func(v View) bool { return v.IsDrawer })
	c.Inbox() <- SelectWord{Word: "cat"}
	waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseDrawing
	})

	f.emit(t, broadcast.TopicChatCorrect, correctGuess("B", 0, 1))
	f.emit(t, broadcast.TopicChatCorrect, correctGuess("C", 30, 2))

	end := waitForTopic(t, f.tap, broadcast.TopicRoundEnd, time.Second)
	var rp session.RoundEndPayload
	require.NoError(t, json.Unmarshal(end.Payload, &rp))
	assert.Equal(t, session.ReasonAllGuessed, rp.Reason)
	assert.Equal(t, "B", rp.NextDrawer)
	assert.Equal(t, 1, rp.NextTurnIndex)
	assert.False(t, rp.IsNewRound)

	// 100 for the instant guess, 50 for the slow one, 50 drawer pool
	assert.Equal(t, 100, rp.Scores["B"])
	assert.Equal(t, 50, rp.Scores["C"])
	assert.Equal(t, 50, rp.Scores["A"])
}

func TestGuesserIgnoresNonAuthoritativeScores(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "B", Options{})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 60))
	waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseWordSelection
	})

	f.emit(t, broadcast.TopicScoresUpdate, session.ScoresPayload{
		Scores: map[string]int{"B": 999}, Authoritative: false,
	})
	f.emit(t, broadcast.TopicScoresUpdate, session.ScoresPayload{
		Scores: map[string]int{"A": 50, "B": 100}, Authoritative: true,
	})

	v := waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Scores["A"] == 50
	})
	assert.Equal(t, 100, v.State.Scores["B"], "optimistic partial must not stick on a guesser")
}

func TestGuesserPublishesCorrectAndCloseGuesses(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "B", Options{})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 60))
	f.emit(t, broadcast.TopicWordSelected, session.WordSelectedPayload{
		Word: "penguin", WordLength: 7, DrawingTime: 60,
	})
	waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseDrawing
	})

	c.Inbox() <- LocalGuess{Text: "pengiun"}
	closeEv := waitForTopic(t, f.tap, broadcast.TopicChatClose, time.Second)
	var cp session.ChatClosePayload
	require.NoError(t, json.Unmarshal(closeEv.Payload, &cp))
	assert.Equal(t, "B", cp.PlayerID)

	c.Inbox() <- LocalGuess{Text: "Penguin "}
	correct := waitForTopic(t, f.tap, broadcast.TopicChatCorrect, time.Second)
	var rec session.GuessRecord
	require.NoError(t, json.Unmarshal(correct.Payload, &rec))
	assert.Equal(t, "B", rec.PlayerID)
	assert.Equal(t, 100, rec.Points, "no time elapsed yet")

	// a second correct guess from the same player is suppressed locally
	c.Inbox() <- LocalGuess{Text: "penguin"}
	v := waitForView(t, c, time.Second, func(v View) bool { return true })
	assert.True(t, v.State.Phase == session.PhaseDrawing)
}

func TestNextDrawerFetchesWordOptionsAfterRoundEnd(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "B", Options{Theme: "animals"})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 60))
	f.emit(t, broadcast.TopicRoundEnd, session.RoundEndPayload{
		Word:          "cat",
		NextDrawer:    "B",
		NextTurnIndex: 1,
		NextRound:     1,
		Reason:        session.ReasonTimeout,
		UsedWords:     []string{"cat"},
	})

	round := waitForTopic(t, f.tap, broadcast.TopicGameRound, time.Second)
	var rp session.RoundPayload
	require.NoError(t, json.Unmarshal(round.Payload, &rp))
	assert.Equal(t, "B", rp.DrawerID)
	assert.Len(t, rp.WordOptions, 3)
	assert.NotContains(t, rp.WordOptions, "cat")

	v := waitForView(t, c, time.Second, func(v View) bool { return v.IsDrawer })
	assert.Equal(t, session.PhaseWordSelection, v.State.Phase)
}

func TestHealerClearsStaleGameOver(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "A", Options{HealInterval: 20 * time.Millisecond})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 60))
	waitForView(t, c, time.Second, func(v View) bool { return v.IsDrawer })

	// a stale game-over lands while word options are still pending
	f.emit(t, broadcast.TopicGameOver, session.GameOverPayload{Winner: "B"})
	waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseGameOver
	})

	v := waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseWordSelection
	})
	assert.Equal(t, "A", v.State.DrawerID)
	assert.Len(t, v.State.WordOptions, 3)
}

func TestForceEndAfterGraceWhenRosterThins(t *testing.T) {
	f := newFixture(t, "ROOM", registry.Player{ID: "A"}, registry.Player{ID: "B"})
	c := f.coordinator(t, "A", Options{
		TickInterval:  10 * time.Millisecond,
		ForceEndGrace: 30 * time.Millisecond,
	})

	f.emit(t, broadcast.TopicGameStart, gameStart("A", []string{"A", "B"}, 600))
	f.emit(t, broadcast.TopicPlayerJoin, session.RosterPayload{
		Players: []registry.Player{{ID: "A"}, {ID: "B"}},
	})
	waitForView(t, c, time.Second, func(v View) bool { return len(v.State.Players) == 2 })

	f.emit(t, broadcast.TopicPlayerLeave, session.RosterPayload{
		Players: []registry.Player{{ID: "A"}},
	})

	over := waitForTopic(t, f.tap, broadcast.TopicGameOver, 2*time.Second)
	var gp session.GameOverPayload
	require.NoError(t, json.Unmarshal(over.Payload, &gp))
	assert.Contains(t, gp.Message, "Not enough players")

	v := waitForView(t, c, time.Second, func(v View) bool {
		return v.State.Phase == session.PhaseGameOver
	})
	assert.False(t, v.IsDrawer)
}
