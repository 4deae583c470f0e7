package models

import (
	"fmt"
	"time"

	"github.com/gobuffalo/nulls"
)

type TeamState string

const (
	TeamPending TeamState = "pending"
	TeamAlive   TeamState = "alive"
	TeamDead    TeamState = "dead"
)

func (s TeamState) Valid() bool {
	switch s {
	case TeamPending, TeamAlive, TeamDead:
		return true
	}
	return false
}

// ParseTeamState rejects anything outside the closed set, so a stray string never reaches storage.
func ParseTeamState(s string) (TeamState, error) {
	state := TeamState(s)
	if !state.Valid() {
		return "", fmt.Errorf("invalid team state %q", s)
	}
	return state, nil
}

type Team struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	PhotoPath         string       `json:"photo_path,omitempty"`
	State             TeamState    `json:"state"`
	TargetID          nulls.String `json:"target_id"` // at most one outbound edge
	Eliminations      int          `json:"eliminations"`
	EliminatedInRound nulls.Int    `json:"eliminated_in_round"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (t *Team) IsAlive() bool   { return t.State == TeamAlive }
func (t *Team) IsPending() bool { return t.State == TeamPending }
func (t *Team) IsDead() bool    { return t.State == TeamDead }

// Kill marks the team dead and remembers the round it fell in.
func (t *Team) Kill(round int) {
	t.State = TeamDead
	t.EliminatedInRound = nulls.NewInt(round)
}

func (t *Team) Revive() {
	t.State = TeamAlive
	t.EliminatedInRound = nulls.Int{}
}
