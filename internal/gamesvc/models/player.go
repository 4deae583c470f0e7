package models

import (
	"fmt"
	"time"
)

type PlayerState string

const (
	PlayerAlive PlayerState = "alive"
	PlayerDead  PlayerState = "dead"
)

func (s PlayerState) Valid() bool {
	return s == PlayerAlive || s == PlayerDead
}

func ParsePlayerState(s string) (PlayerState, error) {
	state := PlayerState(s)
	if !state.Valid() {
		return "", fmt.Errorf("invalid player state %q", s)
	}
	return state, nil
}

// Obituary is written once, when a kill against the player is confirmed.
type Obituary struct {
	Round  int       `json:"round"`
	Killer string    `json:"killer"`
	Time   time.Time `json:"time"`
}

type Player struct {
	ID           string      `json:"id"`
	TeamID       string      `json:"team_id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone,omitempty"`
	Address      string      `json:"address,omitempty"`
	PasswordHash string      `json:"-"`
	State        PlayerState `json:"state"`
	Obituary     *Obituary   `json:"obituary,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (p *Player) IsAlive() bool { return p.State == PlayerAlive }

// AllDead reports whether every player in the roster is dead. An empty roster counts as dead.
func AllDead(players []*Player) bool {
	for _, p := range players {
		if p.IsAlive() {
			return false
		}
	}
	return true
}

// CountDead returns how many players in the roster are dead.
func CountDead(players []*Player) int {
	n := 0
	for _, p := range players {
		if !p.IsAlive() {
			n++
		}
	}
	return n
}
