package rotation

import "math"

// GuessWindowSec is the fixed reference window for guesser scoring. Scoring
// always uses this constant even when the room's drawing time differs.
const GuessWindowSec = 60

// Seat is the slice of player identity the rotation cares about.
type Seat struct {
	ID   string
	Team string
}

// BuildTurnOrder computes the fixed drawer rotation for a session.
//
// Individual mode: host draws first, then everyone else in join order. Team
// mode: partition by team label and interleave round-robin by position index
// (team A's 1st, team B's 1st, team A's 2nd, ...), skipping a team once its
// members run out. With fewer than 2 non-empty teams, team mode falls back
// to plain join order.
func BuildTurnOrder(players []Seat, isTeamGame bool, hostID string) []string {
	if isTeamGame {
		if order, ok := interleaveTeams(players); ok {
			return order
		}
	}

	order := make([]string, 0, len(players))
	if !isTeamGame {
		for _, p := range players {
			if p.ID == hostID {
				order = append(order, p.ID)
				break
			}
		}
	}
	for _, p := range players {
		if isTeamGame || p.ID != hostID {
			order = append(order, p.ID)
		}
	}
	return order
}

func interleaveTeams(players []Seat) ([]string, bool) {
	var names []string
	byTeam := map[string][]string{}
	for _, p := range players {
		if p.Team == "" {
			continue
		}
		if _, seen := byTeam[p.Team]; !seen {
			names = append(names, p.Team)
		}
		byTeam[p.Team] = append(byTeam[p.Team], p.ID)
	}
	if len(names) < 2 {
		return nil, false
	}

	order := make([]string, 0, len(players))
	for pos := 0; len(order) < totalMembers(byTeam); pos++ {
		for _, team := range names {
			if pos < len(byTeam[team]) {
				order = append(order, byTeam[team][pos])
			}
		}
	}
	return order, true
}

func totalMembers(byTeam map[string][]string) int {
	n := 0
	for _, ids := range byTeam {
		n += len(ids)
	}
	return n
}

// Turn is the result of advancing the rotation one step.
type Turn struct {
	NextIndex  int
	NextRound  int
	NextDrawer string
	IsNewRound bool
	IsGameOver bool
}

// NextTurn advances the cursor modulo the turn order; wrapping to index 0
// starts a new round, and a new round past totalRounds ends the game.
func NextTurn(turnOrder []string, currentIndex, currentRound, totalRounds int) Turn {
	if len(turnOrder) == 0 {
		return Turn{IsGameOver: true, NextRound: currentRound}
	}

	next := Turn{
		NextIndex: (currentIndex + 1) % len(turnOrder),
		NextRound: currentRound,
	}
	next.IsNewRound = next.NextIndex == 0
	if next.IsNewRound {
		next.NextRound++
	}
	if next.NextRound > totalRounds {
		next.IsGameOver = true
		return next
	}
	next.NextDrawer = turnOrder[next.NextIndex]
	return next
}

// GuesserPoints awards up to 100 points linearly by how fast the guess
// landed inside the fixed window.
func GuesserPoints(timeTakenSec float64) int {
	frac := (GuessWindowSec - timeTakenSec) / GuessWindowSec
	if frac < 0 {
		frac = 0
	}
	return int(math.Round(100 * frac))
}

// DrawerPoints splits a 50-point pool by the fraction of eligible guessers
// (everyone but the drawer) who got the word.
func DrawerPoints(correctGuessCount, totalPlayers int) int {
	if totalPlayers <= 1 {
		return 0
	}
	return int(math.Round(50 * float64(correctGuessCount) / float64(totalPlayers-1)))
}
