package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/config"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	"github.com/gobuffalo/nulls"
	log "github.com/sirupsen/logrus"
)

// AdvanceRound settles the round that is running and starts the next one. With increment false
// the round number stays and the round is dealt again: targets are reassigned and rosters revived,
// but nobody is judged because the round has not been played yet.
func (s *GameService) AdvanceRound(ctx context.Context, increment bool) (Outcome, error) {
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		if !gs.IsLive() {
			out = fail(CodeNotAllowed, "Rounds can only change while the game is live")
			return nil
		}
		out, err = s.advanceRound(ctx, tx, fx, gs, increment)
		return err
	})
	return out, err
}

// ScheduledAdvance is what the round timers call. A job only acts on the round it was scheduled
// for, so a stale timer never settles or increments a later round.
func (s *GameService) ScheduledAdvance(ctx context.Context, round int, increment bool) (Outcome, error) {
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		if !gs.IsLive() || gs.RoundNumber != round {
			out = fail(CodeNotAllowed, "Round %d is no longer current", round)
			return nil
		}
		if increment {
			fx.audit(models.ActionRoundEnd, models.ActorSystem, "Round %d ended", round)
		}
		out, err = s.advanceRound(ctx, tx, fx, gs, increment)
		return err
	})
	return out, err
}

func (s *GameService) advanceRound(ctx context.Context, tx store.Tx, fx *effects, gs *models.GameState, increment bool) (Outcome, error) {
	if increment && gs.RoundNumber > 0 && (!gs.FreeForAll || s.opts.FFARoundRule == config.FFAApply) {
		if err := s.settleRound(ctx, tx, fx, gs); err != nil {
			return Outcome{}, err
		}
	}

	done, err := s.checkGameComplete(ctx, tx, fx, gs)
	if err != nil {
		return Outcome{}, err
	}
	if done {
		return Outcome{Code: CodeGameOver, Message: "Game complete"}, nil
	}

	if !gs.FreeForAll {
		ok, err := s.assignTargets(ctx, tx, fx)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			out := fail(CodeNoAssignment, "At least two teams must be alive to start a round")
			return out, &rollback{out: out}
		}
	}

	if increment {
		gs.RoundNumber++
		gs.RoundStart = nulls.NewTime(fx.now)
		fx.audit(models.ActionRoundStart, models.ActorSystem, "Round %d started", gs.RoundNumber)
	}
	if err := tx.SaveGameState(ctx, gs); err != nil {
		return Outcome{}, err
	}

	alive, err := tx.TeamsByState(ctx, models.TeamAlive)
	if err != nil {
		return Outcome{}, err
	}
	for _, team := range alive {
		if err := s.reviveRoster(ctx, tx, fx, gs, team); err != nil {
			return Outcome{}, err
		}
	}

	fx.notify(comm.AllPlayers(),
		fmt.Sprintf("Round %d Started", gs.RoundNumber),
		fmt.Sprintf("Round %d has started! Log in to see your new target.", gs.RoundNumber))
	if increment {
		fx.post(comm.PostRoundStart, "Round %d has started. %d teams remain.", gs.RoundNumber, len(alive))
	}
	return succeed("Round %d started", gs.RoundNumber), nil
}

type verdict int

const (
	verdictAdvance verdict = iota
	verdictAdvanceRevive
	verdictEliminate
)

// settleRound judges every alive team against its target. All verdicts come from the state as it
// was before any of them is applied, so the order of teams does not matter.
func (s *GameService) settleRound(ctx context.Context, tx store.Tx, fx *effects, gs *models.GameState) error {
	teams, err := tx.TeamsByState(ctx, models.TeamAlive)
	if err != nil {
		return err
	}

	killed, err := killedInRound(ctx, tx, gs.RoundNumber)
	if err != nil {
		return err
	}

	verdicts := make([]verdict, len(teams))
	for i, team := range teams {
		if verdicts[i], err = s.judge(ctx, tx, team, killed); err != nil {
			return err
		}
	}

	for i, team := range teams {
		switch verdicts[i] {
		case verdictEliminate:
			if err := s.eliminateTeam(ctx, tx, gs, team); err != nil {
				return err
			}
			fx.audit(models.ActionTeamElimination, models.ActorSystem, "Team %s eliminated in round %d", team.Name, gs.RoundNumber)
			fx.notify(comm.Team(team.ID), "Your team has been eliminated",
				"Your team did not eliminate anyone on its target this round. Thanks for playing.")
			fx.post(comm.PostElimination, "Team %s was eliminated at the end of round %d.", team.Name, gs.RoundNumber)
		case verdictAdvanceRevive:
			fx.audit(models.ActionTeamAdvance, models.ActorSystem, "Team %s eliminated its whole target and advances from round %d", team.Name, gs.RoundNumber)
			if err := s.reviveRoster(ctx, tx, fx, gs, team); err != nil {
				return err
			}
		default:
			fx.audit(models.ActionTeamAdvance, models.ActorSystem, "Team %s advances from round %d", team.Name, gs.RoundNumber)
		}
	}
	return nil
}

// killedInRound returns the victims of the claims approved for the given round.
func killedInRound(ctx context.Context, tx store.Tx, round int) (map[string]bool, error) {
	approved, err := tx.ClaimsByStatus(ctx, models.ClaimApproved)
	if err != nil {
		return nil, err
	}
	killed := make(map[string]bool)
	for _, c := range approved {
		if c.RoundNumber == round {
			killed[c.VictimID] = true
		}
	}
	return killed, nil
}

// judge decides a team's fate from the kills confirmed on its target this round. Players who died
// some other way (an admin toggle, a claim from an earlier round) do not count.
func (s *GameService) judge(ctx context.Context, tx store.Tx, team *models.Team, killed map[string]bool) (verdict, error) {
	if !team.TargetID.Valid {
		return verdictAdvance, nil
	}
	target, err := tx.Team(ctx, team.TargetID.String)
	if err != nil {
		return verdictAdvance, err
	}
	if target == nil {
		return verdictAdvance, nil
	}

	if s.opts.RoundRule == config.RuleLegacy {
		if target.IsAlive() {
			return verdictEliminate, nil
		}
		return verdictAdvance, nil
	}

	roster, err := tx.PlayersByTeam(ctx, target.ID)
	if err != nil {
		return verdictAdvance, err
	}
	kills := 0
	for _, p := range roster {
		if killed[p.ID] {
			kills++
		}
	}
	switch {
	case len(roster) == 0:
		return verdictAdvanceRevive, nil
	case kills == 0:
		return verdictEliminate, nil
	case models.AllDead(roster):
		return verdictAdvanceRevive, nil
	default:
		return verdictAdvance, nil
	}
}

// eliminateTeam marks a team and its whole roster dead.
func (s *GameService) eliminateTeam(ctx context.Context, tx store.Tx, gs *models.GameState, team *models.Team) error {
	roster, err := tx.PlayersByTeam(ctx, team.ID)
	if err != nil {
		return err
	}
	for _, p := range roster {
		if !p.IsAlive() {
			continue
		}
		p.State = models.PlayerDead
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
	}
	team.Kill(gs.RoundNumber)
	return tx.UpdateTeam(ctx, team)
}

// reviveRoster brings back the dead players of a team. Obituaries stay.
func (s *GameService) reviveRoster(ctx context.Context, tx store.Tx, fx *effects, gs *models.GameState, team *models.Team) error {
	roster, err := tx.PlayersByTeam(ctx, team.ID)
	if err != nil {
		return err
	}
	for _, p := range roster {
		if p.IsAlive() {
			continue
		}
		p.State = models.PlayerAlive
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
		fx.audit(models.ActionPlayerRevival, models.ActorSystem, "Player %s revived for round %d", p.Name, gs.RoundNumber)
	}
	return nil
}

// SetSchedule stores the current round's window and (re)arms its timers while the game is live.
func (s *GameService) SetSchedule(ctx context.Context, start, end time.Time) (Outcome, error) {
	if !end.After(start) {
		return fail(CodeInvalid, "Round end must be after round start"), nil
	}

	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		gs.RoundStart = nulls.NewTime(start)
		gs.RoundEnd = nulls.NewTime(end)
		if err := tx.SaveGameState(ctx, gs); err != nil {
			return err
		}

		round := gs.RoundNumber
		fx.audit(models.ActionRoundSchedule, models.ActorAdmin, "Round %d schedule set: Start=%s, End=%s",
			round, start.Format(time.RFC3339), end.Format(time.RFC3339))
		if gs.IsLive() {
			fx.onCommit(func() { s.armRound(round, start, end) })
		}
		out = succeed("Round %d schedule set", round)
		return nil
	})
	return out, err
}

// RestoreSchedule rebuilds the timers from the stored game state, e.g. after a restart.
func (s *GameService) RestoreSchedule(ctx context.Context) error {
	var gs *models.GameState
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		gs, err = tx.GameState(ctx)
		return err
	})
	if err != nil {
		return err
	}

	s.scheduler.CancelAll()
	if gs.IsLive() && gs.RoundStart.Valid && gs.RoundEnd.Valid {
		s.armRound(gs.RoundNumber, gs.RoundStart.Time, gs.RoundEnd.Time)
		log.Infof("round %d schedule restored: start=%s end=%s", gs.RoundNumber, gs.RoundStart.Time, gs.RoundEnd.Time)
	}
	return nil
}

func (s *GameService) armRound(round int, start, end time.Time) {
	s.scheduler.Replace(round, start, end,
		func() { s.runScheduled(round, false) },
		func() { s.runScheduled(round, true) },
	)
}

func (s *GameService) runScheduled(round int, increment bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := s.ScheduledAdvance(ctx, round, increment)
	if err != nil {
		log.Errorf("scheduled transition of round %d failed: %v", round, err)
		return
	}
	log.Infof("scheduled transition of round %d (increment=%t): %s", round, increment, out.Message)
}
