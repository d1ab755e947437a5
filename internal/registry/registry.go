package registry

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("room not found")

// MaxPlayers caps the roster of any room.
const MaxPlayers = 22

type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Player is one roster entry. The first joiner is marked creator and acts
// as host.
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Team        string    `json:"team,omitempty"`
	IsCreator   bool      `json:"isCreator"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Settings are immutable once a session starts.
type Settings struct {
	Rounds        int       `json:"rounds"`
	DrawingTime   int       `json:"drawingTime"`
	MaxWordLength int       `json:"maxWordLength"`
	Theme         string    `json:"theme"`
	IsThemedGame  bool      `json:"isThemedGame"`
	IsTeamGame    bool      `json:"isTeamGame"`
	TeamNames     [2]string `json:"teamNames"`
}

// Room is the durable record; everything mid-round lives client-side.
type Room struct {
	Code         string    `json:"roomId" gorm:"primaryKey;column:code"`
	HostID       string    `json:"hostId"`
	Players      []Player  `json:"players" gorm:"serializer:json"`
	Settings     Settings  `json:"settings" gorm:"serializer:json"`
	Status       Status    `json:"status"`
	Active       bool      `json:"active"`
	MaxPlayers   int       `json:"maxPlayers"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

func (Room) TableName() string { return "rooms" }

// FindPlayer returns the roster entry for id, or nil.
func (r *Room) FindPlayer(id string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// Store is the room registry contract. Save must bump LastActivity.
type Store interface {
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, code string) (*Room, error)
	Save(ctx context.Context, room *Room) error
	Delete(ctx context.Context, code string) error
	DeleteIdle(ctx context.Context, olderThan time.Time) (int64, error)
}
