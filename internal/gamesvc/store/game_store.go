package store

import (
	"context"
	"fmt"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
)

func (t *pgTx) GameState(ctx context.Context) (*models.GameState, error) {
	query := `
		SELECT phase, round_number, voting_threshold, round_start, round_end, free_for_all, winner_team_id, updated_at
		FROM game_state
		WHERE id = 1
	`

	gs := &models.GameState{}
	var phase string
	err := t.tx.QueryRow(ctx, query).Scan(
		&phase,
		&gs.RoundNumber,
		&gs.VotingThreshold,
		&gs.RoundStart,
		&gs.RoundEnd,
		&gs.FreeForAll,
		&gs.WinnerTeamID,
		&gs.UpdatedAt,
	)
	if err != nil {
		return nil, storageErr("get game state", err)
	}

	if gs.Phase, err = models.ParsePhase(phase); err != nil {
		return nil, storageErr("get game state", err)
	}
	return gs, nil
}

func (t *pgTx) SaveGameState(ctx context.Context, gs *models.GameState) error {
	if !gs.Phase.Valid() {
		return storageErr("save game state", fmt.Errorf("invalid phase %q", gs.Phase))
	}

	query := `
		UPDATE game_state
		SET phase = $1, round_number = $2, voting_threshold = $3, round_start = $4, round_end = $5,
		    free_for_all = $6, winner_team_id = $7, updated_at = now()
		WHERE id = 1
	`
	_, err := t.tx.Exec(ctx, query,
		string(gs.Phase),
		gs.RoundNumber,
		gs.VotingThreshold,
		gs.RoundStart,
		gs.RoundEnd,
		gs.FreeForAll,
		gs.WinnerTeamID,
	)
	return storageErr("save game state", err)
}
