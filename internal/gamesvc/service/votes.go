package service

import (
	"context"
	"fmt"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
)

// Vote records a peer vote on a kill claim and settles the claim once either side reaches the
// voting threshold. Preconditions are checked in order and the first failure is returned.
func (s *GameService) Vote(ctx context.Context, claimID, voterID string, approve bool) (Outcome, error) {
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		claim, err := tx.Claim(ctx, claimID)
		if err != nil {
			return err
		}
		voter, err := tx.Player(ctx, voterID)
		if err != nil {
			return err
		}
		if claim == nil || voter == nil {
			out = fail(CodeInvalid, "Invalid kill confirmation or voter")
			return nil
		}
		if !claim.IsPending() {
			out = fail(CodeNotPending, "Kill confirmation is no longer pending")
			return nil
		}
		if claim.Expired(fx.now) {
			if err := s.expireClaim(ctx, tx, fx, claim); err != nil {
				return err
			}
			out = fail(CodeExpired, "Kill confirmation has expired")
			return nil
		}
		if claim.Involves(voterID) {
			out = fail(CodeOwnClaim, "You cannot vote on your own kill confirmation")
			return nil
		}
		existing, err := tx.VoteByVoter(ctx, claimID, voterID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = fail(CodeAlreadyVoted, "You have already voted on this kill confirmation")
			return nil
		}

		vote := &models.Vote{
			ID:        s.opts.NewID(),
			ClaimID:   claimID,
			VoterID:   voterID,
			Approve:   approve,
			CreatedAt: fx.now,
		}
		if err := tx.CreateVote(ctx, vote); err != nil {
			return err
		}
		decision := "reject"
		if approve {
			decision = "approve"
		}
		fx.audit(models.ActionKillVote, voter.Name, "Vote submitted on kill confirmation %s: %s", claimID, decision)

		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		votes, err := tx.VotesForClaim(ctx, claimID)
		if err != nil {
			return err
		}
		approvals, rejections := models.Tally(votes)

		switch {
		case approvals >= gs.VotingThreshold:
			if err := s.confirmKill(ctx, tx, fx, gs, claim); err != nil {
				return err
			}
			out = Outcome{Code: CodeConfirmed, Message: "Kill confirmed"}
		case rejections >= gs.VotingThreshold:
			if err := s.rejectClaim(ctx, tx, fx, claim, models.ActorSystem); err != nil {
				return err
			}
			out = Outcome{Code: CodeRejected, Message: "Kill rejected"}
		default:
			out = Outcome{Code: CodeRecorded, Message: "Vote recorded"}
		}
		return nil
	})
	return out, err
}

func (s *GameService) rejectClaim(ctx context.Context, tx store.Tx, fx *effects, claim *models.KillClaim, actor string) error {
	if err := claim.Resolve(models.ClaimRejected); err != nil {
		return err
	}
	if err := tx.UpdateClaim(ctx, claim); err != nil {
		return err
	}
	fx.audit(models.ActionKillRejected, actor, "Kill confirmation %s rejected", claim.ID)

	attacker, err := tx.Player(ctx, claim.AttackerID)
	if err != nil {
		return err
	}
	if attacker != nil {
		fx.notify(comm.Team(attacker.TeamID), "Kill rejected", "Your kill claim was rejected by the jury.")
	}
	return nil
}

// confirmKill approves a pending claim and applies it: the victim dies, the attacker's team is
// credited and the victim's team falls if nobody on it is left alive. The pending to approved
// transition fails on a decided claim, so a kill is never applied twice.
func (s *GameService) confirmKill(ctx context.Context, tx store.Tx, fx *effects, gs *models.GameState, claim *models.KillClaim) error {
	if err := claim.Resolve(models.ClaimApproved); err != nil {
		return err
	}
	if err := tx.UpdateClaim(ctx, claim); err != nil {
		return err
	}

	victim, err := tx.Player(ctx, claim.VictimID)
	if err != nil {
		return err
	}
	attacker, err := tx.Player(ctx, claim.AttackerID)
	if err != nil {
		return err
	}
	if victim == nil || attacker == nil {
		return fmt.Errorf("claim %s references a missing player", claim.ID)
	}

	victim.State = models.PlayerDead
	if victim.Obituary == nil {
		victim.Obituary = &models.Obituary{
			Round:  claim.RoundNumber,
			Killer: attacker.Name,
			Time:   claim.KillTime,
		}
	}
	if err := tx.UpdatePlayer(ctx, victim); err != nil {
		return err
	}

	attackerTeam, err := tx.Team(ctx, attacker.TeamID)
	if err != nil {
		return err
	}
	if attackerTeam != nil {
		attackerTeam.Eliminations++
		if err := tx.UpdateTeam(ctx, attackerTeam); err != nil {
			return err
		}
	}

	fx.audit(models.ActionKillConfirmed, models.ActorSystem, "Kill confirmed: %s eliminated %s", attacker.Name, victim.Name)
	fx.notify(comm.AllPlayers(), "Kill confirmed", fmt.Sprintf("%s has been eliminated by %s.", victim.Name, attacker.Name))

	roster, err := tx.PlayersByTeam(ctx, victim.TeamID)
	if err != nil {
		return err
	}
	if models.AllDead(roster) {
		victimTeam, err := tx.Team(ctx, victim.TeamID)
		if err != nil {
			return err
		}
		if victimTeam != nil && !victimTeam.IsDead() {
			victimTeam.Kill(gs.RoundNumber)
			if err := tx.UpdateTeam(ctx, victimTeam); err != nil {
				return err
			}
			fx.audit(models.ActionTeamElimination, models.ActorSystem, "Team %s eliminated in round %d", victimTeam.Name, gs.RoundNumber)
			fx.notify(comm.Team(victimTeam.ID), "Your team has been eliminated", "Every member of "+victimTeam.Name+" is out. Thanks for playing.")
			fx.post(comm.PostElimination, "Team %s has been eliminated by %s.", victimTeam.Name, attacker.Name)
		}
	}

	_, err = s.checkGameComplete(ctx, tx, fx, gs)
	return err
}
