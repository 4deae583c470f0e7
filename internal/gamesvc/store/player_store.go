package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var playerColumns = []any{
	"id", "team_id", "name", "email", "phone", "address", "password_hash", "state", "obituary", "created_at", "updated_at",
}

func scanPlayer(row scanner) (*models.Player, error) {
	p := &models.Player{}
	var state string
	var obituary []byte
	err := row.Scan(
		&p.ID,
		&p.TeamID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Address,
		&p.PasswordHash,
		&state,
		&obituary,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.State, err = models.ParsePlayerState(state); err != nil {
		return nil, err
	}
	if len(obituary) > 0 {
		p.Obituary = &models.Obituary{}
		if err := json.Unmarshal(obituary, p.Obituary); err != nil {
			return nil, fmt.Errorf("decode obituary of player %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func encodeObituary(o *models.Obituary) ([]byte, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

func (t *pgTx) CreatePlayer(ctx context.Context, player *models.Player) error {
	if !player.State.Valid() {
		return storageErr("create player", fmt.Errorf("invalid player state %q", player.State))
	}
	obituary, err := encodeObituary(player.Obituary)
	if err != nil {
		return storageErr("create player", err)
	}

	query := `
		INSERT INTO players (id, team_id, name, email, phone, address, password_hash, state, obituary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = t.tx.QueryRow(ctx, query,
		player.ID,
		player.TeamID,
		player.Name,
		player.Email,
		player.Phone,
		player.Address,
		player.PasswordHash,
		string(player.State),
		obituary,
	).Scan(&player.CreatedAt, &player.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return storageErr("create player", fmt.Errorf("email %s already registered", player.Email))
			case "23503":
				return storageErr("create player", fmt.Errorf("invalid reference: %s", pgErr.Message))
			}
		}
		return storageErr("create player", err)
	}
	return nil
}

func (t *pgTx) getPlayer(ctx context.Context, where goqu.Expression) (*models.Player, error) {
	query, args, err := t.dialect.From("players").Select(playerColumns...).
		Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("get player", err)
	}

	p, err := scanPlayer(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // player not found
		}
		return nil, storageErr("get player", err)
	}
	return p, nil
}

func (t *pgTx) Player(ctx context.Context, id string) (*models.Player, error) {
	return t.getPlayer(ctx, goqu.C("id").Eq(id))
}

func (t *pgTx) PlayerByEmail(ctx context.Context, email string) (*models.Player, error) {
	return t.getPlayer(ctx, goqu.Func("lower", goqu.C("email")).Eq(goqu.Func("lower", email)))
}

func (t *pgTx) Players(ctx context.Context) ([]*models.Player, error) {
	return t.PlayersByTeam(ctx, "")
}

// PlayersByTeam lists a team's roster in creation order; an empty team id lists every player.
func (t *pgTx) PlayersByTeam(ctx context.Context, teamID string) ([]*models.Player, error) {
	ds := t.dialect.From("players").Select(playerColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if teamID != "" {
		ds = ds.Where(goqu.C("team_id").Eq(teamID))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("list players", err)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list players", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, storageErr("list players", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list players", err)
	}
	return players, nil
}

func (t *pgTx) UpdatePlayer(ctx context.Context, player *models.Player) error {
	if !player.State.Valid() {
		return storageErr("update player", fmt.Errorf("invalid player state %q", player.State))
	}
	obituary, err := encodeObituary(player.Obituary)
	if err != nil {
		return storageErr("update player", err)
	}

	query := `
		UPDATE players
		SET name = $2, phone = $3, address = $4, state = $5, obituary = $6, updated_at = now()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query,
		player.ID,
		player.Name,
		player.Phone,
		player.Address,
		string(player.State),
		obituary,
	)
	if err != nil {
		return storageErr("update player", err)
	}
	if tag.RowsAffected() != 1 {
		return storageErr("update player", fmt.Errorf("player %s not found", player.ID))
	}
	return nil
}
