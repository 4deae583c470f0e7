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

var claimColumns = []any{
	"id", "victim_id", "attacker_id", "kill_time", "round_number", "evidence_ref", "status", "expires_at", "created_at",
}

func scanClaim(row scanner) (*models.KillClaim, error) {
	c := &models.KillClaim{}
	var status string
	err := row.Scan(
		&c.ID,
		&c.VictimID,
		&c.AttackerID,
		&c.KillTime,
		&c.RoundNumber,
		&c.EvidenceRef,
		&status,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.Status, err = models.ParseClaimStatus(status); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *pgTx) CreateClaim(ctx context.Context, claim *models.KillClaim) error {
	if !claim.Status.Valid() {
		return storageErr("create claim", fmt.Errorf("invalid claim status %q", claim.Status))
	}

	query, args, err := insertClaimQuery(t.dialect, claim)
	if err != nil {
		return storageErr("create claim", err)
	}
	_, err = t.tx.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storageErr("create claim", fmt.Errorf("victim %s already has a pending claim", claim.VictimID))
		}
		return storageErr("create claim", err)
	}
	return nil
}

// insertClaimQuery writes every column from the claim, created_at included, so the row carries the
// same clock the expiry was computed from.
func insertClaimQuery(dialect goqu.DialectWrapper, claim *models.KillClaim) (string, []any, error) {
	return dialect.Insert("kill_claims").Rows(goqu.Record{
		"id":           claim.ID,
		"victim_id":    claim.VictimID,
		"attacker_id":  claim.AttackerID,
		"kill_time":    claim.KillTime,
		"round_number": claim.RoundNumber,
		"evidence_ref": claim.EvidenceRef,
		"status":       string(claim.Status),
		"expires_at":   claim.ExpiresAt,
		"created_at":   claim.CreatedAt,
	}).Prepared(true).ToSQL()
}

func (t *pgTx) getClaim(ctx context.Context, where ...goqu.Expression) (*models.KillClaim, error) {
	query, args, err := t.dialect.From("kill_claims").Select(claimColumns...).
		Where(where...).Limit(1).Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("get claim", err)
	}

	c, err := scanClaim(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // claim not found
		}
		return nil, storageErr("get claim", err)
	}
	return c, nil
}

func (t *pgTx) Claim(ctx context.Context, id string) (*models.KillClaim, error) {
	return t.getClaim(ctx, goqu.C("id").Eq(id))
}

func (t *pgTx) PendingClaimForVictim(ctx context.Context, victimID string) (*models.KillClaim, error) {
	return t.getClaim(ctx,
		goqu.C("victim_id").Eq(victimID),
		goqu.C("status").Eq(string(models.ClaimPending)),
	)
}

// ClaimsByStatus lists claims oldest first; an empty status lists every claim.
func (t *pgTx) ClaimsByStatus(ctx context.Context, status models.ClaimStatus) ([]*models.KillClaim, error) {
	ds := t.dialect.From("kill_claims").Select(claimColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(status)))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, storageErr("list claims", err)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list claims", err)
	}
	defer rows.Close()

	var claims []*models.KillClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, storageErr("list claims", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list claims", err)
	}
	return claims, nil
}

// UpdateClaim only persists the status; everything else about a claim is fixed at submission.
func (t *pgTx) UpdateClaim(ctx context.Context, claim *models.KillClaim) error {
	if !claim.Status.Valid() {
		return storageErr("update claim", fmt.Errorf("invalid claim status %q", claim.Status))
	}

	tag, err := t.tx.Exec(ctx, `UPDATE kill_claims SET status = $2 WHERE id = $1`, claim.ID, string(claim.Status))
	if err != nil {
		return storageErr("update claim", err)
	}
	if tag.RowsAffected() != 1 {
		return storageErr("update claim", fmt.Errorf("claim %s not found", claim.ID))
	}
	return nil
}
