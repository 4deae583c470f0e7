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

func (t *pgTx) CreateVote(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO kill_votes (id, claim_id, voter_id, approve)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := t.tx.QueryRow(ctx, query, vote.ID, vote.ClaimID, vote.VoterID, vote.Approve).Scan(&vote.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "unique_claim_voter" {
			return storageErr("create vote", fmt.Errorf("player %s already voted on claim %s", vote.VoterID, vote.ClaimID))
		}
		return storageErr("create vote", err)
	}
	return nil
}

func scanVote(row scanner) (*models.Vote, error) {
	v := &models.Vote{}
	if err := row.Scan(&v.ID, &v.ClaimID, &v.VoterID, &v.Approve, &v.CreatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *pgTx) VotesForClaim(ctx context.Context, claimID string) ([]*models.Vote, error) {
	query, args, err := t.dialect.From("kill_votes").
		Select("id", "claim_id", "voter_id", "approve", "created_at").
		Where(goqu.C("claim_id").Eq(claimID)).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("list votes", err)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, storageErr("list votes", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list votes", err)
	}
	return votes, nil
}

func (t *pgTx) VoteByVoter(ctx context.Context, claimID, voterID string) (*models.Vote, error) {
	query := `
		SELECT id, claim_id, voter_id, approve, created_at
		FROM kill_votes
		WHERE claim_id = $1 AND voter_id = $2
	`
	v, err := scanVote(t.tx.QueryRow(ctx, query, claimID, voterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no vote yet
		}
		return nil, storageErr("get vote", err)
	}
	return v, nil
}

// VotedClaimIDs returns the set of claims the player has already voted on.
func (t *pgTx) VotedClaimIDs(ctx context.Context, voterID string) (map[string]bool, error) {
	rows, err := t.tx.Query(ctx, `SELECT claim_id FROM kill_votes WHERE voter_id = $1`, voterID)
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	defer rows.Close()

	voted := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("list votes", err)
		}
		voted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list votes", err)
	}
	return voted, nil
}
