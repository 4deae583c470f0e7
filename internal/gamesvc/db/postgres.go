package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

//go:embed sql/001_init.sql
var schema string

var DB *pgxpool.Pool

// Connect initializes the connection pool
func Connect(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	// Try pinging to make sure it's valid
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	DB = pool

	return pool, nil
}

// Migrate creates the schema if missing and seeds the single game state row.
// An existing game state row is left untouched.
func Migrate(ctx context.Context, pool *pgxpool.Pool, votingThreshold int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	tag, err := tx.Exec(ctx, `
        INSERT INTO game_state (id, phase, round_number, voting_threshold)
        VALUES (1, 'pre', 0, $1)
        ON CONFLICT (id) DO NOTHING
    `, votingThreshold)
	if err != nil {
		return fmt.Errorf("seed game state: %w", err)
	}
	if tag.RowsAffected() == 1 {
		log.Infof("game state initialized with voting threshold %d", votingThreshold)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ClosePool is for graceful shutdown
func ClosePool() {
	if DB != nil {
		DB.Close()
	}
}
