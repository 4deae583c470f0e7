package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	"github.com/gobuffalo/nulls"
)

// AssignTargets reshuffles the targeting cycle outside of a round transition.
func (s *GameService) AssignTargets(ctx context.Context) (Outcome, error) {
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		if gs.FreeForAll {
			out = fail(CodeNotAllowed, "Targets are not assigned in free-for-all mode")
			return nil
		}
		ok, err := s.assignTargets(ctx, tx, fx)
		if err != nil {
			return err
		}
		if !ok {
			out = fail(CodeNoAssignment, "At least two teams must be alive to assign targets")
			return nil
		}
		out = succeed("Targets assigned")
		return nil
	})
	return out, err
}

// assignTargets shuffles the alive teams and points each one at the next, closing the cycle.
// With fewer than two alive teams nothing changes and it reports false.
func (s *GameService) assignTargets(ctx context.Context, tx store.Tx, fx *effects) (bool, error) {
	alive, err := tx.TeamsByState(ctx, models.TeamAlive)
	if err != nil {
		return false, err
	}
	if len(alive) < 2 {
		return false, nil
	}

	s.opts.Shuffle(alive)

	pairs := make([]string, 0, len(alive))
	for i, team := range alive {
		target := alive[(i+1)%len(alive)]
		team.TargetID = nulls.NewString(target.ID)
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return false, err
		}
		pairs = append(pairs, fmt.Sprintf("%s -> %s", team.Name, target.Name))
	}

	// targets may only point at alive teams, so anything else loses its edge
	all, err := tx.Teams(ctx)
	if err != nil {
		return false, err
	}
	for _, team := range all {
		if team.IsAlive() || !team.TargetID.Valid {
			continue
		}
		team.TargetID = nulls.String{}
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return false, err
		}
	}

	fx.audit(models.ActionTargetAssignment, models.ActorSystem, "Targets assigned for %d teams", len(alive))
	fx.notify(comm.Admins(), "Target assignment", strings.Join(pairs, "\n"))
	return true, nil
}
