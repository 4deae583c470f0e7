package models

import (
	"fmt"
	"time"

	"github.com/gobuffalo/nulls"
)

type Phase string

const (
	PhasePre    Phase = "pre"
	PhaseLive   Phase = "live"
	PhasePost   Phase = "post"
	PhaseForced Phase = "forced"
)

func (p Phase) Valid() bool {
	switch p {
	case PhasePre, PhaseLive, PhasePost, PhaseForced:
		return true
	}
	return false
}

func ParsePhase(s string) (Phase, error) {
	phase := Phase(s)
	if !phase.Valid() {
		return "", fmt.Errorf("invalid game phase %q", s)
	}
	return phase, nil
}

// CanTransitionTo allows pre -> live -> post, and forced from any phase.
// Staying in the same phase is allowed.
func (p Phase) CanTransitionTo(next Phase) bool {
	if !next.Valid() {
		return false
	}
	if p == next {
		return true
	}
	switch next {
	case PhaseForced:
		return true
	case PhaseLive:
		return p == PhasePre
	case PhasePost:
		return p == PhaseLive
	}
	return false
}

// GameState is the single game row (id 1).
type GameState struct {
	Phase           Phase        `json:"phase"`
	RoundNumber     int          `json:"round_number"`
	VotingThreshold int          `json:"voting_threshold"`
	RoundStart      nulls.Time   `json:"round_start"`
	RoundEnd        nulls.Time   `json:"round_end"`
	FreeForAll      bool         `json:"free_for_all"`
	WinnerTeamID    nulls.String `json:"winner_team_id"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (g *GameState) IsLive() bool { return g.Phase == PhaseLive }

// Reset returns the state to a fresh pre-game, keeping the voting threshold.
func (g *GameState) Reset() {
	g.Phase = PhasePre
	g.RoundNumber = 0
	g.FreeForAll = false
	g.RoundStart = nulls.Time{}
	g.RoundEnd = nulls.Time{}
	g.WinnerTeamID = nulls.String{}
}
