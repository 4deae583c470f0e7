package service

import (
	"context"
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

type ClaimInput struct {
	VictimID    string
	AttackerID  string
	KillTime    time.Time
	EvidenceRef string
}

// SubmitClaim opens a pending kill claim. It returns nil, nil when a precondition fails: a player
// is missing or dead, the victim is not on the attacker's target team (outside free-for-all),
// or the victim already has a pending claim.
func (s *GameService) SubmitClaim(ctx context.Context, in ClaimInput) (*models.KillClaim, error) {
	var claim *models.KillClaim
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}

		victim, err := tx.Player(ctx, in.VictimID)
		if err != nil {
			return err
		}
		attacker, err := tx.Player(ctx, in.AttackerID)
		if err != nil {
			return err
		}
		if victim == nil || attacker == nil || !victim.IsAlive() || !attacker.IsAlive() {
			return nil
		}

		if gs.FreeForAll {
			if victim.TeamID == attacker.TeamID {
				return nil
			}
		} else {
			attackerTeam, err := tx.Team(ctx, attacker.TeamID)
			if err != nil {
				return err
			}
			if attackerTeam == nil || !attackerTeam.TargetID.Valid || attackerTeam.TargetID.String != victim.TeamID {
				return nil
			}
		}

		pending, err := tx.PendingClaimForVictim(ctx, victim.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			return nil
		}

		c := &models.KillClaim{
			ID:          s.opts.NewID(),
			VictimID:    victim.ID,
			AttackerID:  attacker.ID,
			KillTime:    in.KillTime,
			RoundNumber: gs.RoundNumber,
			EvidenceRef: in.EvidenceRef,
			Status:      models.ClaimPending,
			ExpiresAt:   fx.now.Add(s.opts.ClaimWindow),
			CreatedAt:   fx.now,
		}
		if err := tx.CreateClaim(ctx, c); err != nil {
			return err
		}

		fx.audit(models.ActionKillSubmission, attacker.Name, "Kill submitted: %s -> %s", attacker.Name, victim.Name)
		fx.notify(comm.AlivePlayers(), "New kill to confirm",
			attacker.Name+" reported eliminating "+victim.Name+". Log in to review the evidence and vote.")
		fx.notify(comm.Admins(), "Evidence video submitted",
			attacker.Name+" -> "+victim.Name+", evidence "+c.EvidenceRef)
		fx.transcode(c.EvidenceRef)

		claim = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claim != nil {
		log.Infof("kill claim %s submitted: %s -> %s", claim.ID, claim.AttackerID, claim.VictimID)
	}
	return claim, nil
}

// PendingClaim is a claim waiting on the voter, with the names needed to show it.
type PendingClaim struct {
	*models.KillClaim
	VictimName   string `json:"victim_name"`
	AttackerName string `json:"attacker_name"`
	Approvals    int    `json:"approvals"`
	Rejections   int    `json:"rejections"`
}

// PendingForVoter lists the pending claims a player can still vote on: not expired, not their own,
// not yet voted on. Expired claims met along the way are rejected.
func (s *GameService) PendingForVoter(ctx context.Context, voterID string) ([]PendingClaim, error) {
	var out []PendingClaim
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		out = nil

		claims, err := tx.ClaimsByStatus(ctx, models.ClaimPending)
		if err != nil {
			return err
		}
		voted, err := tx.VotedClaimIDs(ctx, voterID)
		if err != nil {
			return err
		}

		for _, c := range claims {
			if c.Expired(fx.now) {
				if err := s.expireClaim(ctx, tx, fx, c); err != nil {
					return err
				}
				continue
			}
			if voted[c.ID] || c.Involves(voterID) {
				continue
			}

			pc := PendingClaim{KillClaim: c}
			if victim, err := tx.Player(ctx, c.VictimID); err != nil {
				return err
			} else if victim != nil {
				pc.VictimName = victim.Name
			}
			if attacker, err := tx.Player(ctx, c.AttackerID); err != nil {
				return err
			} else if attacker != nil {
				pc.AttackerName = attacker.Name
			}
			votes, err := tx.VotesForClaim(ctx, c.ID)
			if err != nil {
				return err
			}
			pc.Approvals, pc.Rejections = models.Tally(votes)
			out = append(out, pc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GameService) expireClaim(ctx context.Context, tx store.Tx, fx *effects, c *models.KillClaim) error {
	if err := c.Resolve(models.ClaimRejected); err != nil {
		return err
	}
	if err := tx.UpdateClaim(ctx, c); err != nil {
		return err
	}
	fx.audit(models.ActionKillExpired, models.ActorSystem, "Kill confirmation %s expired and auto-rejected", c.ID)
	return nil
}

// Claim returns nil, nil for an unknown claim id.
func (s *GameService) Claim(ctx context.Context, claimID string) (*models.KillClaim, error) {
	var claim *models.KillClaim
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		claim, err = tx.Claim(ctx, claimID)
		return err
	})
	return claim, err
}
