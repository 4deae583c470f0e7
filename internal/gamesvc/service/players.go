package service

import (
	"context"
	"net/mail"
	"sort"
	"strings"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	"golang.org/x/crypto/bcrypt"
)

type PlayerSignup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

type TeamSignup struct {
	Name    string         `json:"name"`
	Players []PlayerSignup `json:"players"`
}

const maxTeamSize = 2

// RegisterTeam signs up a team of one or two players. The team waits in pending until an admin
// accepts it.
func (s *GameService) RegisterTeam(ctx context.Context, in TeamSignup) (*models.Team, Outcome, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fail(CodeInvalid, "Team name is required"), nil
	}
	if len(in.Players) == 0 || len(in.Players) > maxTeamSize {
		return nil, fail(CodeInvalid, "A team has one or two players"), nil
	}

	seen := make(map[string]bool)
	players := make([]*models.Player, 0, len(in.Players))
	for _, p := range in.Players {
		email := strings.ToLower(strings.TrimSpace(p.Email))
		if strings.TrimSpace(p.Name) == "" || p.Password == "" {
			return nil, fail(CodeInvalid, "Every player needs a name and a password"), nil
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fail(CodeInvalid, "Invalid email address %q", p.Email), nil
		}
		if seen[email] {
			return nil, fail(CodeInvalid, "Players on a team need different email addresses"), nil
		}
		seen[email] = true

		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.opts.BcryptCost)
		if err != nil {
			return nil, Outcome{}, err
		}
		players = append(players, &models.Player{
			ID:           s.opts.NewID(),
			Name:         strings.TrimSpace(p.Name),
			Email:        email,
			Phone:        strings.TrimSpace(p.Phone),
			Address:      strings.TrimSpace(p.Address),
			PasswordHash: string(hash),
			State:        models.PlayerAlive,
		})
	}

	var team *models.Team
	var out Outcome
	err := s.update(ctx, func(tx store.Tx, fx *effects) error {
		team = nil
		teams, err := tx.Teams(ctx)
		if err != nil {
			return err
		}
		for _, t := range teams {
			if strings.EqualFold(t.Name, name) {
				out = fail(CodeInvalid, "Team name %q is already taken", name)
				return nil
			}
		}
		for _, p := range players {
			existing, err := tx.PlayerByEmail(ctx, p.Email)
			if err != nil {
				return err
			}
			if existing != nil {
				out = fail(CodeInvalid, "Email %s is already registered", p.Email)
				return nil
			}
		}

		t := &models.Team{
			ID:        s.opts.NewID(),
			Name:      name,
			State:     models.TeamPending,
			CreatedAt: fx.now,
			UpdatedAt: fx.now,
		}
		if err := tx.CreateTeam(ctx, t); err != nil {
			return err
		}
		for _, p := range players {
			p.TeamID = t.ID
			p.CreatedAt, p.UpdatedAt = fx.now, fx.now
			if err := tx.CreatePlayer(ctx, p); err != nil {
				return err
			}
		}

		fx.audit(models.ActionTeamRegistration, name, "Team %s registered with %d players", name, len(players))
		fx.notify(comm.Admins(), "New team registration", "Team "+name+" is waiting for acceptance.")
		team = t
		out = succeed("Team %s registered, waiting for acceptance", name)
		return nil
	})
	if err != nil {
		return nil, Outcome{}, err
	}
	return team, out, nil
}

// Authenticate checks a player's credentials. It returns nil, nil when they do not match.
func (s *GameService) Authenticate(ctx context.Context, email, password string) (*models.Player, error) {
	var player *models.Player
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		player, err = tx.PlayerByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		return err
	})
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return player, nil
}

func (s *GameService) GameState(ctx context.Context) (*models.GameState, error) {
	var gs *models.GameState
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		gs, err = tx.GameState(ctx)
		return err
	})
	return gs, err
}

// PlayerView is what a player sees of the game: their team, who they hunt and the game state.
type PlayerView struct {
	Player    *models.Player    `json:"player"`
	Team      *models.Team      `json:"team"`
	Teammates []*models.Player  `json:"teammates"`
	Target    *models.Team      `json:"target,omitempty"`
	Victims   []*models.Player  `json:"victims"`
	Game      *models.GameState `json:"game"`
}

// View returns nil, nil for an unknown player. Victims are the alive players the player may claim:
// the target team's, or in free-for-all everyone alive outside the player's team.
func (s *GameService) View(ctx context.Context, playerID string) (*PlayerView, error) {
	var v *PlayerView
	err := s.view(ctx, func(tx store.Tx) error {
		player, err := tx.Player(ctx, playerID)
		if err != nil || player == nil {
			return err
		}
		gs, err := tx.GameState(ctx)
		if err != nil {
			return err
		}
		team, err := tx.Team(ctx, player.TeamID)
		if err != nil {
			return err
		}
		roster, err := tx.PlayersByTeam(ctx, player.TeamID)
		if err != nil {
			return err
		}

		v = &PlayerView{Player: player, Team: team, Game: gs, Victims: []*models.Player{}}
		for _, p := range roster {
			if p.ID != player.ID {
				v.Teammates = append(v.Teammates, p)
			}
		}

		if gs.FreeForAll {
			all, err := tx.Players(ctx)
			if err != nil {
				return err
			}
			for _, p := range all {
				if p.IsAlive() && p.TeamID != player.TeamID {
					v.Victims = append(v.Victims, p)
				}
			}
			return nil
		}

		if team == nil || !team.TargetID.Valid {
			return nil
		}
		if v.Target, err = tx.Team(ctx, team.TargetID.String); err != nil || v.Target == nil {
			return err
		}
		targets, err := tx.PlayersByTeam(ctx, v.Target.ID)
		if err != nil {
			return err
		}
		for _, p := range targets {
			if p.IsAlive() {
				v.Victims = append(v.Victims, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

type LeaderboardPlayer struct {
	ID    string             `json:"player_id"`
	Name  string             `json:"player_name"`
	State models.PlayerState `json:"state"`
}

type LeaderboardEntry struct {
	TeamID       string              `json:"team_id"`
	TeamName     string              `json:"team_name"`
	State        models.TeamState    `json:"state"`
	Eliminations int                 `json:"eliminations"`
	Players      []LeaderboardPlayer `json:"players"`
}

// Leaderboard lists alive teams first, then by eliminations, most first.
func (s *GameService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var board []LeaderboardEntry
	err := s.view(ctx, func(tx store.Tx) error {
		teams, err := tx.Teams(ctx)
		if err != nil {
			return err
		}
		board = make([]LeaderboardEntry, 0, len(teams))
		for _, t := range teams {
			roster, err := tx.PlayersByTeam(ctx, t.ID)
			if err != nil {
				return err
			}
			entry := LeaderboardEntry{
				TeamID:       t.ID,
				TeamName:     t.Name,
				State:        t.State,
				Eliminations: t.Eliminations,
				Players:      make([]LeaderboardPlayer, 0, len(roster)),
			}
			for _, p := range roster {
				entry.Players = append(entry.Players, LeaderboardPlayer{ID: p.ID, Name: p.Name, State: p.State})
			}
			board = append(board, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(board, func(i, j int) bool {
		ai, aj := board[i].State == models.TeamAlive, board[j].State == models.TeamAlive
		if ai != aj {
			return ai
		}
		return board[i].Eliminations > board[j].Eliminations
	})
	return board, nil
}

// Recipients resolves an audience to player ids. Admin audiences resolve to none.
func (s *GameService) Recipients(ctx context.Context, audience comm.Audience) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(tx store.Tx) error {
		var players []*models.Player
		var err error
		switch audience.Kind {
		case comm.AudienceAll, comm.AudienceAlive:
			players, err = tx.Players(ctx)
		case comm.AudienceTeam:
			players, err = tx.PlayersByTeam(ctx, audience.ID)
		}
		if err != nil {
			return err
		}
		for _, p := range players {
			if audience.Kind == comm.AudienceAlive && !p.IsAlive() {
				continue
			}
			ids = append(ids, p.ID)
		}
		return nil
	})
	return ids, err
}
