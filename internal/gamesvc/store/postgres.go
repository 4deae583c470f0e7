package store

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable Store on a pgx connection pool.
type Postgres struct {
	db      *pgxpool.Pool
	dialect goqu.DialectWrapper
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db, dialect: goqu.Dialect("postgres")}
}

// Update runs fn in one transaction. The game state row is locked first, which serializes every
// mutating action (user requests and scheduled round transitions alike).
func (s *Postgres) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM game_state WHERE id = 1 FOR UPDATE`); err != nil {
		return storageErr("lock game state", err)
	}

	if err := fn(&pgTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (s *Postgres) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	return storageErr("commit", tx.Commit(ctx))
}

type pgTx struct {
	tx      pgx.Tx
	dialect goqu.DialectWrapper
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *pgTx) Wipe(ctx context.Context) error {
	stmts := []string{
		`DELETE FROM kill_votes`,
		`DELETE FROM kill_claims`,
		`DELETE FROM players`,
		`UPDATE teams SET target_id = NULL`,
		`DELETE FROM teams`,
	}
	for _, q := range stmts {
		if _, err := t.tx.Exec(ctx, q); err != nil {
			return storageErr("wipe", err)
		}
	}
	return nil
}
