package service

import (
	"context"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	"github.com/gobuffalo/nulls"
)

// checkGameComplete ends a live game once exactly one team is alive. gs is updated and saved.
func (s *GameService) checkGameComplete(ctx context.Context, tx store.Tx, fx *effects, gs *models.GameState) (bool, error) {
	if !gs.IsLive() {
		return false, nil
	}
	alive, err := tx.TeamsByState(ctx, models.TeamAlive)
	if err != nil {
		return false, err
	}
	if len(alive) != 1 {
		return false, nil
	}

	winner := alive[0]
	gs.Phase = models.PhasePost
	gs.WinnerTeamID = nulls.NewString(winner.ID)
	if err := tx.SaveGameState(ctx, gs); err != nil {
		return false, err
	}

	fx.audit(models.ActionGameComplete, models.ActorSystem, "Game complete. Winner: Team %s", winner.Name)
	fx.notify(comm.AllPlayers(), "Game over", "Team "+winner.Name+" is the last team standing and wins the game!")
	fx.post(comm.PostWinner, "Team %s wins the game!", winner.Name)
	fx.onCommit(s.scheduler.CancelAll)
	return true, nil
}
