package service

import (
	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
)

func (s *ServiceSuite) TestChangePhase() {
	s.fourTeams()

	steps := []struct {
		phase string
		code  string
		want  models.Phase
	}{
		{"paused", CodeInvalid, models.PhasePre},
		{"pre", CodeOK, models.PhasePre},
		{"post", CodeNotAllowed, models.PhasePre},
		{"live", CodeOK, models.PhaseLive},
		{"pre", CodeNotAllowed, models.PhaseLive},
		{"live", CodeOK, models.PhaseLive},
		{"forced", CodeOK, models.PhaseForced},
		{"live", CodeNotAllowed, models.PhaseForced},
	}
	for _, step := range steps {
		out, err := s.admin.ChangePhase(s.ctx, step.phase)
		s.Require().NoError(err)
		s.Equal(step.code, out.Code, "change to %s: %s", step.phase, out.Message)
		s.Equal(step.want, s.state().Phase, "after change to %s", step.phase)
	}

	s.Equal(1, s.state().RoundNumber, "a no-op change to live does not start another round")
	s.Equal(1, s.sched.cancelAll, "leaving live drops the timers")
	s.Equal(2, s.auditCount(models.ActionGameStateChange))
}

func (s *ServiceSuite) TestGoingLiveNeedsTwoTeams() {
	s.addTeam("A", "a1")

	out, err := s.admin.ChangePhase(s.ctx, "live")
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)
	s.Equal(models.PhasePre, s.state().Phase)
	s.Zero(s.auditCount(models.ActionGameStateChange))
}

func (s *ServiceSuite) TestEndingGameWithoutWinner() {
	s.fourTeams()
	s.goLive()

	out, err := s.admin.ChangePhase(s.ctx, "post")
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)

	gs := s.state()
	s.Equal(models.PhasePost, gs.Phase)
	s.False(gs.WinnerTeamID.Valid)
	s.Equal(1, s.sched.cancelAll)
}

func (s *ServiceSuite) TestRegisterAndAcceptTeam() {
	team, out, err := s.game.RegisterTeam(s.ctx, TeamSignup{
		Name: " Night Owls ",
		Players: []PlayerSignup{
			{Name: "Ada", Email: "Ada@Example.com", Password: "hunter2"},
			{Name: "Bo", Email: "bo@example.com", Password: "swordfish"},
		},
	})
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)
	s.Require().NotNil(team)
	s.Equal("Night Owls", team.Name)
	s.Equal(models.TeamPending, s.team(team.ID).State)
	s.Equal(1, s.auditCount(models.ActionTeamRegistration))
	s.Len(s.notes.to(comm.AudienceAdmin), 1)

	p, err := s.game.Authenticate(s.ctx, "ADA@example.com ", "hunter2")
	s.Require().NoError(err)
	s.Require().NotNil(p)
	s.Equal(team.ID, p.TeamID)
	s.Equal("ada@example.com", p.Email)
	s.NotEqual("hunter2", p.PasswordHash)

	p, err = s.game.Authenticate(s.ctx, "ada@example.com", "wrong")
	s.Require().NoError(err)
	s.Nil(p)
	p, err = s.game.Authenticate(s.ctx, "nobody@example.com", "hunter2")
	s.Require().NoError(err)
	s.Nil(p)

	out, err = s.admin.AcceptTeam(s.ctx, team.ID)
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)
	s.Equal(models.TeamAlive, s.team(team.ID).State)

	out, err = s.admin.AcceptTeam(s.ctx, team.ID)
	s.Require().NoError(err)
	s.Equal(CodeNotFound, out.Code, "already accepted")
}

func (s *ServiceSuite) TestRegisterTeamValidation() {
	s.addTeam("Taken", "t1")

	cases := []struct {
		name string
		in   TeamSignup
	}{
		{"no name", TeamSignup{Players: []PlayerSignup{{Name: "x", Email: "x@example.com", Password: "p"}}}},
		{"no players", TeamSignup{Name: "Empty"}},
		{"three players", TeamSignup{Name: "Crowd", Players: []PlayerSignup{
			{Name: "x", Email: "x@example.com", Password: "p"},
			{Name: "y", Email: "y@example.com", Password: "p"},
			{Name: "z", Email: "z@example.com", Password: "p"},
		}}},
		{"bad email", TeamSignup{Name: "Typo", Players: []PlayerSignup{{Name: "x", Email: "not-an-email", Password: "p"}}}},
		{"no password", TeamSignup{Name: "Open", Players: []PlayerSignup{{Name: "x", Email: "x@example.com"}}}},
		{"shared email", TeamSignup{Name: "Twins", Players: []PlayerSignup{
			{Name: "x", Email: "x@example.com", Password: "p"},
			{Name: "y", Email: "X@example.com", Password: "p"},
		}}},
		{"name taken", TeamSignup{Name: "TAKEN", Players: []PlayerSignup{{Name: "x", Email: "x@example.com", Password: "p"}}}},
		{"email registered", TeamSignup{Name: "Fresh", Players: []PlayerSignup{{Name: "x", Email: "t1@example.com", Password: "p"}}}},
	}
	for _, tc := range cases {
		team, out, err := s.game.RegisterTeam(s.ctx, tc.in)
		s.Require().NoError(err, tc.name)
		s.Nil(team, tc.name)
		s.Equal(CodeInvalid, out.Code, tc.name)
	}
	s.Zero(s.auditCount(models.ActionTeamRegistration))
}

func (s *ServiceSuite) TestAcceptTeamOnlyBeforeGame() {
	s.fourTeams()
	team, _, err := s.game.RegisterTeam(s.ctx, TeamSignup{
		Name:    "Late",
		Players: []PlayerSignup{{Name: "L", Email: "late@example.com", Password: "p"}},
	})
	s.Require().NoError(err)
	s.goLive()

	out, err := s.admin.AcceptTeam(s.ctx, team.ID)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)
	s.Equal(models.TeamPending, s.team(team.ID).State)
	s.False(s.team(team.ID).TargetID.Valid, "pending teams are not part of the cycle")
}

func (s *ServiceSuite) TestSetThreshold() {
	out, err := s.admin.SetThreshold(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(CodeInvalid, out.Code)

	out, err = s.admin.SetThreshold(s.ctx, 5)
	s.Require().NoError(err)
	s.True(out.OK())
	s.Equal(5, s.state().VotingThreshold)
	s.Equal([]string{"Voting threshold changed from 3 to 5"}, s.auditDescriptions(models.ActionThresholdChange))
}

func (s *ServiceSuite) TestToggleTeam() {
	s.addTeam("A", "a1", "a2")
	s.addTeam("B", "b1")
	s.addTeam("C", "c1")
	s.goLive()

	out, err := s.admin.ToggleTeam(s.ctx, "team-A")
	s.Require().NoError(err)
	s.Require().True(out.OK())
	a := s.team("team-A")
	s.Equal(models.TeamDead, a.State)
	s.Equal(1, a.EliminatedInRound.Int)
	s.Equal(models.PlayerDead, s.player("a1").State)
	s.Equal(models.PlayerDead, s.player("a2").State)

	out, err = s.admin.ToggleTeam(s.ctx, "team-A")
	s.Require().NoError(err)
	s.Require().True(out.OK())
	a = s.team("team-A")
	s.Equal(models.TeamAlive, a.State)
	s.False(a.EliminatedInRound.Valid)
	s.Equal(models.PlayerAlive, s.player("a1").State)

	out, err = s.admin.ToggleTeam(s.ctx, "team-missing")
	s.Require().NoError(err)
	s.Equal(CodeNotFound, out.Code)

	_, err = s.admin.ToggleTeam(s.ctx, "team-B")
	s.Require().NoError(err)
	s.Equal(models.PhaseLive, s.state().Phase)
	_, err = s.admin.ToggleTeam(s.ctx, "team-C")
	s.Require().NoError(err)

	gs := s.state()
	s.Equal(models.PhasePost, gs.Phase)
	s.Equal("team-A", gs.WinnerTeamID.String)
}

func (s *ServiceSuite) TestTogglePendingTeamIsRefused() {
	team, _, err := s.game.RegisterTeam(s.ctx, TeamSignup{
		Name:    "Waiting",
		Players: []PlayerSignup{{Name: "W", Email: "w@example.com", Password: "p"}},
	})
	s.Require().NoError(err)

	out, err := s.admin.ToggleTeam(s.ctx, team.ID)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)
}

func (s *ServiceSuite) TestTogglePlayerKeepsTeamInLine() {
	s.fourTeams()
	s.goLive()

	for _, id := range []string{"a1", "a2"} {
		out, err := s.admin.TogglePlayer(s.ctx, id)
		s.Require().NoError(err)
		s.Require().True(out.OK(), out.Message)
	}
	s.Equal(models.TeamDead, s.team("team-A").State)
	s.Equal(1, s.auditCount(models.ActionTeamElimination))

	out, err := s.admin.TogglePlayer(s.ctx, "a1")
	s.Require().NoError(err)
	s.Require().True(out.OK())
	s.Equal(models.PlayerAlive, s.player("a1").State)
	s.Equal(models.PlayerDead, s.player("a2").State)
	s.Equal(models.TeamAlive, s.team("team-A").State)

	out, err = s.admin.TogglePlayer(s.ctx, "ghost")
	s.Require().NoError(err)
	s.Equal(CodeNotFound, out.Code)
}

func (s *ServiceSuite) TestForceVoteDecisionReject() {
	s.fourTeams()
	s.goLive()
	claim := s.submit("a1", "b1")
	s.Require().NotNil(claim)

	out, err := s.admin.ForceVoteDecision(s.ctx, claim.ID, false)
	s.Require().NoError(err)
	s.Require().True(out.OK())
	s.Equal(models.PlayerAlive, s.player("b1").State)
	s.Equal([]string{"Kill confirmation " + claim.ID + " rejected by admin"}, s.auditDescriptions(models.ActionVoteOverride))

	out, err = s.admin.ForceVoteDecision(s.ctx, claim.ID, true)
	s.Require().NoError(err)
	s.Equal(CodeNotPending, out.Code)
}

func (s *ServiceSuite) TestWipe() {
	s.fourTeams()
	_, err := s.admin.SetThreshold(s.ctx, 4)
	s.Require().NoError(err)
	s.goLive()
	_, err = s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)
	s.Require().NotNil(s.submit("a1", "c1"))

	out, err := s.admin.Wipe(s.ctx)
	s.Require().NoError(err)
	s.Require().True(out.OK())

	gs := s.state()
	s.Equal(models.PhasePre, gs.Phase)
	s.Equal(0, gs.RoundNumber)
	s.Equal(4, gs.VotingThreshold)
	s.False(gs.FreeForAll)
	s.False(gs.RoundStart.Valid)

	s.Require().NoError(s.store.View(s.ctx, func(tx store.Tx) error {
		teams, err := tx.Teams(s.ctx)
		s.Empty(teams)
		players, _ := tx.Players(s.ctx)
		s.Empty(players)
		claims, _ := tx.ClaimsByStatus(s.ctx, models.ClaimPending)
		s.Empty(claims)
		return err
	}))
	s.Equal(1, s.sched.cancelAll)
	s.Equal(1, s.evidence.calls)
	s.Equal(1, s.auditCount(models.ActionGameWipe))
}

func (s *ServiceSuite) TestDashboard() {
	s.fourTeams()
	_, _, err := s.game.RegisterTeam(s.ctx, TeamSignup{
		Name:    "Late",
		Players: []PlayerSignup{{Name: "L", Email: "late@example.com", Password: "p"}},
	})
	s.Require().NoError(err)
	s.goLive()
	s.kill("a1", "b1")
	pending := s.submit("c1", "d1")
	s.Require().NotNil(pending)

	d, err := s.admin.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseLive, d.Game.Phase)
	s.Equal(TeamStats{Total: 5, Pending: 1, Alive: 4}, d.Teams)
	s.Equal(PlayerStats{Total: 9, Alive: 8, Dead: 1}, d.Players)
	s.Equal(KillStats{Total: 1, Pending: 1}, d.Kills)
	s.Require().Len(d.PendingKills, 1)
	s.Equal(pending.ID, d.PendingKills[0].ID)

	s.NotEmpty(d.RecentLogs)
	s.LessOrEqual(len(d.RecentLogs), 10)
	s.Equal(models.ActionKillSubmission, d.RecentLogs[0].Type, "newest first")
}

func (s *ServiceSuite) TestLeaderboard() {
	s.fourTeams()
	s.goLive()
	s.kill("a1", "b1")
	s.kill("a1", "b2")
	s.kill("c1", "d1")

	board, err := s.game.Leaderboard(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(board, 4)

	var order []string
	for _, e := range board {
		order = append(order, e.TeamName)
	}
	s.Equal([]string{"A", "C", "D", "B"}, order)
	s.Equal(2, board[0].Eliminations)
	s.Equal(models.TeamDead, board[3].State)
	s.Equal([]LeaderboardPlayer{
		{ID: "d1", Name: "d1", State: models.PlayerDead},
		{ID: "d2", Name: "d2", State: models.PlayerAlive},
	}, board[2].Players)
}

func (s *ServiceSuite) TestPlayerView() {
	s.fourTeams()
	s.goLive()
	s.kill("a1", "b1")

	v, err := s.game.View(s.ctx, "a2")
	s.Require().NoError(err)
	s.Require().NotNil(v)
	s.Equal("team-A", v.Team.ID)
	s.Require().Len(v.Teammates, 1)
	s.Equal("a1", v.Teammates[0].ID)
	s.Require().NotNil(v.Target)
	s.Equal("team-B", v.Target.ID)
	s.Require().Len(v.Victims, 1)
	s.Equal("b2", v.Victims[0].ID)

	_, err = s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)
	v, err = s.game.View(s.ctx, "a2")
	s.Require().NoError(err)
	var victims []string
	for _, p := range v.Victims {
		victims = append(victims, p.ID)
	}
	s.Equal([]string{"b2", "c1", "c2", "d1", "d2"}, victims)

	v, err = s.game.View(s.ctx, "ghost")
	s.Require().NoError(err)
	s.Nil(v)
}

func (s *ServiceSuite) TestRecipients() {
	s.addTeam("A", "a1", "a2")
	s.addTeam("B", "b1")
	_, err := s.admin.TogglePlayer(s.ctx, "a2")
	s.Require().NoError(err)

	cases := []struct {
		audience comm.Audience
		want     []string
	}{
		{comm.AllPlayers(), []string{"a1", "a2", "b1"}},
		{comm.AlivePlayers(), []string{"a1", "b1"}},
		{comm.Team("team-A"), []string{"a1", "a2"}},
		{comm.Admins(), nil},
	}
	for _, tc := range cases {
		ids, err := s.game.Recipients(s.ctx, tc.audience)
		s.Require().NoError(err)
		s.Equal(tc.want, ids, tc.audience.String())
	}
}

func (s *ServiceSuite) TestAdminAuthenticate() {
	s.True(s.admin.Authenticate(adminPassword))
	s.False(s.admin.Authenticate("guess"))
	s.False(NewAdminService(s.game, "").Authenticate(""))
}
