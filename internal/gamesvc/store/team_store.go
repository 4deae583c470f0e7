package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var teamColumns = []any{
	"id", "name", "photo_path", "state", "target_id", "eliminations", "eliminated_in_round", "created_at", "updated_at",
}

func scanTeam(row scanner) (*models.Team, error) {
	team := &models.Team{}
	var state string
	err := row.Scan(
		&team.ID,
		&team.Name,
		&team.PhotoPath,
		&state,
		&team.TargetID,
		&team.Eliminations,
		&team.EliminatedInRound,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if team.State, err = models.ParseTeamState(state); err != nil {
		return nil, err
	}
	return team, nil
}

func (t *pgTx) CreateTeam(ctx context.Context, team *models.Team) error {
	if !team.State.Valid() {
		return storageErr("create team", fmt.Errorf("invalid team state %q", team.State))
	}

	query := `
		INSERT INTO teams (id, name, photo_path, state, target_id, eliminations, eliminated_in_round)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := t.tx.QueryRow(ctx, query,
		team.ID,
		team.Name,
		team.PhotoPath,
		string(team.State),
		team.TargetID,
		team.Eliminations,
		team.EliminatedInRound,
	).Scan(&team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storageErr("create team", fmt.Errorf("team name %q already taken", team.Name))
		}
		return storageErr("create team", err)
	}
	return nil
}

func (t *pgTx) Team(ctx context.Context, id string) (*models.Team, error) {
	query, args, err := t.dialect.From("teams").Select(teamColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("get team", err)
	}

	team, err := scanTeam(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // team not found
		}
		return nil, storageErr("get team", err)
	}
	return team, nil
}

func (t *pgTx) Teams(ctx context.Context) ([]*models.Team, error) {
	return t.TeamsByState(ctx, "")
}

// TeamsByState lists teams in creation order; an empty state lists all teams.
func (t *pgTx) TeamsByState(ctx context.Context, state models.TeamState) ([]*models.Team, error) {
	ds := t.dialect.From("teams").Select(teamColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if state != "" {
		ds = ds.Where(goqu.C("state").Eq(string(state)))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("list teams", err)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list teams", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, storageErr("list teams", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list teams", err)
	}
	return teams, nil
}

func (t *pgTx) UpdateTeam(ctx context.Context, team *models.Team) error {
	if !team.State.Valid() {
		return storageErr("update team", fmt.Errorf("invalid team state %q", team.State))
	}

	query := `
		UPDATE teams
		SET name = $2, photo_path = $3, state = $4, target_id = $5, eliminations = $6,
		    eliminated_in_round = $7, updated_at = now()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query,
		team.ID,
		team.Name,
		team.PhotoPath,
		string(team.State),
		team.TargetID,
		team.Eliminations,
		team.EliminatedInRound,
	)
	if err != nil {
		return storageErr("update team", err)
	}
	if tag.RowsAffected() != 1 {
		return storageErr("update team", fmt.Errorf("team %s not found", team.ID))
	}
	return nil
}
