package store

import (
	"context"
	"fmt"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
)

// Store is the Entity Store. Every logical action runs inside one Update call: either all of its
// mutations commit or none do. Update calls are serialized on the game state row.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of record operations available inside a transaction.
// Lookups by id return nil, nil when the record does not exist.
type Tx interface {
	GameState(ctx context.Context) (*models.GameState, error)
	SaveGameState(ctx context.Context, gs *models.GameState) error

	CreateTeam(ctx context.Context, team *models.Team) error
	Team(ctx context.Context, id string) (*models.Team, error)
	Teams(ctx context.Context) ([]*models.Team, error)
	TeamsByState(ctx context.Context, state models.TeamState) ([]*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error

	CreatePlayer(ctx context.Context, player *models.Player) error
	Player(ctx context.Context, id string) (*models.Player, error)
	PlayerByEmail(ctx context.Context, email string) (*models.Player, error)
	Players(ctx context.Context) ([]*models.Player, error)
	PlayersByTeam(ctx context.Context, teamID string) ([]*models.Player, error)
	UpdatePlayer(ctx context.Context, player *models.Player) error

	CreateClaim(ctx context.Context, claim *models.KillClaim) error
	Claim(ctx context.Context, id string) (*models.KillClaim, error)
	ClaimsByStatus(ctx context.Context, status models.ClaimStatus) ([]*models.KillClaim, error)
	PendingClaimForVictim(ctx context.Context, victimID string) (*models.KillClaim, error)
	UpdateClaim(ctx context.Context, claim *models.KillClaim) error

	CreateVote(ctx context.Context, vote *models.Vote) error
	VotesForClaim(ctx context.Context, claimID string) ([]*models.Vote, error)
	VoteByVoter(ctx context.Context, claimID, voterID string) (*models.Vote, error)
	VotedClaimIDs(ctx context.Context, voterID string) (map[string]bool, error)

	// Wipe deletes votes, claims, players and teams. The game state row stays.
	Wipe(ctx context.Context) error
}

// StorageError wraps any failure of the storage layer. Callers may retry the whole logical action.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Retryable() bool { return true }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
