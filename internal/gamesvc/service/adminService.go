package service

import (
	"context"
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminService holds the administrative entry points. Each one is a single audited transaction.
type AdminService struct {
	game         *GameService
	passwordHash []byte
}

func NewAdminService(game *GameService, passwordHash string) *AdminService {
	return &AdminService{game: game, passwordHash: []byte(passwordHash)}
}

func (a *AdminService) Authenticate(password string) bool {
	if len(a.passwordHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
}

// AcceptTeam lets a pending team into the game. Only possible before the game starts.
func (a *AdminService) AcceptTeam(ctx context.Context, teamID string) (Outcome, error) {
	var out Outcome
	err := a.game.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		if gs.Phase != models.PhasePre {
			out = fail(CodeNotAllowed, "Teams can only be accepted before the game starts")
			return nil
		}
		team, err := tx.Team(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil || !team.IsPending() {
			out = fail(CodeNotFound, "No pending team %s", teamID)
			return nil
		}

		team.State = models.TeamAlive
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return err
		}
		fx.audit(models.ActionTeamAcceptance, models.ActorAdmin, "Team %s accepted into the game", team.Name)
		fx.notify(comm.Team(team.ID), "Team accepted", "Team "+team.Name+" has been accepted into the game.")
		out = succeed("Team %s accepted", team.Name)
		return nil
	})
	return out, err
}

// ChangePhase moves the game between phases. pre to live starts round one, live to post records
// a winner when exactly one team is left, and leaving live drops every round timer.
func (a *AdminService) ChangePhase(ctx context.Context, phase string) (Outcome, error) {
	next, err := models.ParsePhase(phase)
	if err != nil {
		return fail(CodeInvalid, "Invalid game state %q", phase), nil
	}

	s := a.game
	var out Outcome
	err = s.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		prev := gs.Phase
		if prev == next {
			out = succeed("Game is already %s", next)
			return nil
		}
		if !prev.CanTransitionTo(next) {
			out = fail(CodeNotAllowed, "Cannot change game state from %s to %s", prev, next)
			return nil
		}

		if next == models.PhaseLive {
			alive, err := tx.TeamsByState(ctx, models.TeamAlive)
			if err != nil {
				return err
			}
			if len(alive) < 2 {
				out = fail(CodeNotAllowed, "At least two accepted teams are needed to go live")
				return nil
			}
		}

		fx.audit(models.ActionGameStateChange, models.ActorAdmin, "Game state changed from %s to %s", prev, next)
		out = succeed("Game state changed from %s to %s", prev, next)

		switch next {
		case models.PhaseLive:
			gs.Phase = models.PhaseLive
			if err := tx.SaveGameState(ctx, gs); err != nil {
				return err
			}
			round, err := s.advanceRound(ctx, tx, fx, gs, true)
			if err != nil {
				out = round
				return err
			}
			out.Message += ". " + round.Message
			return nil
		case models.PhasePost:
			done, err := s.checkGameComplete(ctx, tx, fx, gs)
			if err != nil || done {
				return err
			}
		}

		gs.Phase = next
		if err := tx.SaveGameState(ctx, gs); err != nil {
			return err
		}
		if prev == models.PhaseLive {
			fx.onCommit(s.scheduler.CancelAll)
		}
		return nil
	})
	return out, err
}

func (a *AdminService) SetThreshold(ctx context.Context, threshold int) (Outcome, error) {
	if threshold < 1 {
		return fail(CodeInvalid, "Voting threshold must be at least 1"), nil
	}
	var out Outcome
	err := a.game.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		old := gs.VotingThreshold
		gs.VotingThreshold = threshold
		if err := tx.SaveGameState(ctx, gs); err != nil {
			return err
		}
		fx.audit(models.ActionThresholdChange, models.ActorAdmin, "Voting threshold changed from %d to %d", old, threshold)
		out = succeed("Voting threshold changed from %d to %d", old, threshold)
		return nil
	})
	return out, err
}

func (a *AdminService) SetFreeForAll(ctx context.Context, enabled bool) (Outcome, error) {
	mode := "disabled"
	if enabled {
		mode = "enabled"
	}
	var out Outcome
	err := a.game.update(ctx, func(tx store.Tx, fx *effects) error {
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		if gs.FreeForAll == enabled {
			out = succeed("Free-for-all is already %s", mode)
			return nil
		}
		gs.FreeForAll = enabled
		if err := tx.SaveGameState(ctx, gs); err != nil {
			return err
		}
		fx.audit(models.ActionFreeForAllChange, models.ActorAdmin, "Free-for-all mode %s", mode)
		fx.notify(comm.AllPlayers(), "Free-for-all "+mode, "Free-for-all mode has been "+mode+".")
		out = succeed("Free-for-all %s", mode)
		return nil
	})
	return out, err
}

func (a *AdminService) SetSchedule(ctx context.Context, req ScheduleRequest) (Outcome, error) {
	return a.game.SetSchedule(ctx, req.Start, req.End)
}

// StartRound advances the round on demand. Timers still pending for the round being left are dropped.
func (a *AdminService) StartRound(ctx context.Context, increment bool) (Outcome, error) {
	s := a.game
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
		round := gs.RoundNumber
		if increment {
			fx.audit(models.ActionRoundEnd, models.ActorAdmin, "Round %d ended by admin", round)
		}
		if out, err = s.advanceRound(ctx, tx, fx, gs, increment); err != nil {
			return err
		}
		fx.onCommit(func() { s.scheduler.Cancel(round) })
		return nil
	})
	return out, err
}

// ForceVoteDecision settles a pending claim without waiting for the jury.
func (a *AdminService) ForceVoteDecision(ctx context.Context, claimID string, approve bool) (Outcome, error) {
	s := a.game
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		claim, err := tx.Claim(ctx, claimID)
		if err != nil {
			return err
		}
		if claim == nil || !claim.IsPending() {
			out = fail(CodeNotPending, "Kill confirmation not found or no longer pending")
			return nil
		}

		decision := "rejected"
		if approve {
			decision = "approved"
			gs, err := tx.GameState(ctx)
			if err != nil {
				return err
			}
			if err := s.confirmKill(ctx, tx, fx, gs, claim); err != nil {
				return err
			}
		} else if err := s.rejectClaim(ctx, tx, fx, claim, models.ActorAdmin); err != nil {
			return err
		}

		fx.audit(models.ActionVoteOverride, models.ActorAdmin, "Kill confirmation %s %s by admin", claimID, decision)
		out = succeed("Kill confirmation %s", decision)
		return nil
	})
	return out, err
}

// ToggleTeam kills an alive team with its roster, or revives a dead one with its roster.
func (a *AdminService) ToggleTeam(ctx context.Context, teamID string) (Outcome, error) {
	s := a.game
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		team, err := tx.Team(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			out = fail(CodeNotFound, "Team %s not found", teamID)
			return nil
		}
		if team.IsPending() {
			out = fail(CodeNotAllowed, "Team %s has not been accepted yet", team.Name)
			return nil
		}
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}

		if team.IsAlive() {
			if err := s.eliminateTeam(ctx, tx, gs, team); err != nil {
				return err
			}
			fx.audit(models.ActionTeamKilled, models.ActorAdmin, "Team %s killed by admin", team.Name)
			fx.notify(comm.Team(team.ID), "Your team has been eliminated", "An admin marked "+team.Name+" as eliminated.")
			out = succeed("Team %s killed", team.Name)
			_, err := s.checkGameComplete(ctx, tx, fx, gs)
			return err
		}

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
		}
		team.Revive()
		if err := tx.UpdateTeam(ctx, team); err != nil {
			return err
		}
		fx.audit(models.ActionTeamRevived, models.ActorAdmin, "Team %s revived by admin", team.Name)
		fx.notify(comm.Team(team.ID), "Your team is back", "An admin revived "+team.Name+".")
		out = succeed("Team %s revived", team.Name)
		return nil
	})
	return out, err
}

// TogglePlayer flips a player between alive and dead and keeps the team state in line with it.
func (a *AdminService) TogglePlayer(ctx context.Context, playerID string) (Outcome, error) {
	s := a.game
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		player, err := tx.Player(ctx, playerID)
		if err != nil {
			return err
		}
		if player == nil {
			out = fail(CodeNotFound, "Player %s not found", playerID)
			return nil
		}
		team, err := tx.Team(ctx, player.TeamID)
		if err != nil {
			return err
		}
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}

		if player.IsAlive() {
			player.State = models.PlayerDead
			if err := tx.UpdatePlayer(ctx, player); err != nil {
				return err
			}
			fx.audit(models.ActionPlayerKilled, models.ActorAdmin, "Player %s killed by admin", player.Name)
			out = succeed("Player %s killed", player.Name)

			roster, err := tx.PlayersByTeam(ctx, player.TeamID)
			if err != nil {
				return err
			}
			if team != nil && team.IsAlive() && models.AllDead(roster) {
				team.Kill(gs.RoundNumber)
				if err := tx.UpdateTeam(ctx, team); err != nil {
					return err
				}
				fx.audit(models.ActionTeamElimination, models.ActorSystem, "Team %s eliminated in round %d", team.Name, gs.RoundNumber)
			}
			_, err = s.checkGameComplete(ctx, tx, fx, gs)
			return err
		}

		player.State = models.PlayerAlive
		if err := tx.UpdatePlayer(ctx, player); err != nil {
			return err
		}
		if team != nil && team.IsDead() {
			team.Revive()
			if err := tx.UpdateTeam(ctx, team); err != nil {
				return err
			}
		}
		fx.audit(models.ActionPlayerRevived, models.ActorAdmin, "Player %s revived by admin", player.Name)
		out = succeed("Player %s revived", player.Name)
		return nil
	})
	return out, err
}

// Wipe deletes every team, player, claim and vote, purges the evidence and resets the game to
// pre-game. The voting threshold survives.
func (a *AdminService) Wipe(ctx context.Context) (Outcome, error) {
	s := a.game
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		if err := tx.Wipe(ctx); err != nil {
			return err
		}
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		gs.Reset()
		if err := tx.SaveGameState(ctx, gs); err != nil {
			return err
		}
		fx.audit(models.ActionGameWipe, models.ActorAdmin, "Game data has been completely wiped and reset")
		fx.onCommit(s.scheduler.CancelAll)
		fx.onCommit(func() {
			if s.evidence == nil {
				return
			}
			if err := s.evidence.Purge(); err != nil {
				log.Warnf("evidence purge failed: %v", err)
			}
		})
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return succeed("Game data wiped"), nil
}

type TeamStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Alive   int `json:"alive"`
	Dead    int `json:"dead"`
}

type PlayerStats struct {
	Total int `json:"total"`
	Alive int `json:"alive"`
	Dead  int `json:"dead"`
}

type KillStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
}

type Dashboard struct {
	Game         *models.GameState   `json:"game_state"`
	Teams        TeamStats           `json:"team_stats"`
	Players      PlayerStats         `json:"player_stats"`
	Kills        KillStats           `json:"kill_stats"`
	PendingKills []*models.KillClaim `json:"pending_kills"`
	RecentLogs   []models.ActionLog  `json:"recent_logs"`
}

const dashboardLogs = 10

func (a *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	err := a.game.view(ctx, func(tx store.Tx) error {
		var err error
		if d.Game, err = tx.GameState(ctx); err != nil {
			return err
		}

		teams, err := tx.Teams(ctx)
		if err != nil {
			return err
		}
		d.Teams.Total = len(teams)
		for _, t := range teams {
			switch t.State {
			case models.TeamPending:
				d.Teams.Pending++
			case models.TeamAlive:
				d.Teams.Alive++
			case models.TeamDead:
				d.Teams.Dead++
			}
		}

		players, err := tx.Players(ctx)
		if err != nil {
			return err
		}
		d.Players.Total = len(players)
		d.Players.Dead = models.CountDead(players)
		d.Players.Alive = d.Players.Total - d.Players.Dead

		approved, err := tx.ClaimsByStatus(ctx, models.ClaimApproved)
		if err != nil {
			return err
		}
		if d.PendingKills, err = tx.ClaimsByStatus(ctx, models.ClaimPending); err != nil {
			return err
		}
		d.Kills.Total = len(approved)
		d.Kills.Pending = len(d.PendingKills)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logs, err := a.game.audit.Recent(ctx, dashboardLogs)
	if err != nil {
		log.Warnf("dashboard: recent audit entries unavailable: %v", err)
	}
	d.RecentLogs = logs
	if d.RecentLogs == nil {
		d.RecentLogs = []models.ActionLog{}
	}
	return d, nil
}

// ScheduleRequest is the window of the current round.
type ScheduleRequest struct {
	Start time.Time `json:"round_start"`
	End   time.Time `json:"round_end"`
}
