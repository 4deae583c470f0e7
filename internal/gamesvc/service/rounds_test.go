package service

import (
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/config"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
)

func (s *ServiceSuite) TestGoingLiveStartsRoundOne() {
	s.fourTeams()
	s.goLive()

	gs := s.state()
	s.Equal(models.PhaseLive, gs.Phase)
	s.Equal(1, gs.RoundNumber)
	s.True(gs.RoundStart.Valid)
	s.Equal(s.clock.Now(), gs.RoundStart.Time)
	s.Equal("team-B", s.targetOf("team-A"))

	all := s.notes.to(comm.AudienceAll)
	s.Require().NotEmpty(all)
	s.Equal("Round 1 Started", all[len(all)-1].subject)
	s.Equal("Round 1 has started! Log in to see your new target.", all[len(all)-1].body)
	s.Equal([]string{comm.PostRoundStart}, s.social.kinds)
	s.Equal(1, s.auditCount(models.ActionRoundStart))
	s.Equal(1, s.auditCount(models.ActionGameStateChange))
}

func (s *ServiceSuite) TestRoundTransitionGranular() {
	s.fourTeams()
	s.goLive()

	s.kill("a1", "b1")
	s.kill("a1", "b2")
	s.Equal(models.TeamDead, s.team("team-B").State, "a fully eliminated roster takes the team out at once")
	s.kill("c1", "d1")

	out, err := s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)

	gs := s.state()
	s.Equal(models.PhaseLive, gs.Phase)
	s.Equal(2, gs.RoundNumber)

	d := s.team("team-D")
	s.Equal(models.TeamDead, d.State, "D never touched its target")
	s.Equal(1, d.EliminatedInRound.Int)
	s.Equal(models.PlayerDead, s.player("d2").State)

	s.Equal(models.TeamAlive, s.team("team-A").State)
	s.Equal(models.TeamAlive, s.team("team-C").State)
	s.Equal("team-C", s.targetOf("team-A"))
	s.Equal("team-A", s.targetOf("team-C"))
	s.False(s.team("team-D").TargetID.Valid)

	s.ElementsMatch([]string{
		"Team A eliminated its whole target and advances from round 1",
		"Team C advances from round 1",
	}, s.auditDescriptions(models.ActionTeamAdvance))
	s.Equal([]string{"Round 1 ended by admin"}, s.auditDescriptions(models.ActionRoundEnd))
	s.Equal([]int{1}, s.sched.cancelled)
}

func (s *ServiceSuite) TestPartialKillsAdvanceAndRevive() {
	s.fourTeams()
	s.goLive()

	s.kill("b1", "c1")
	s.kill("c2", "d1")
	s.kill("d2", "a1")
	s.kill("a2", "b1")

	out, err := s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)
	s.Equal(2, s.state().RoundNumber)

	for _, id := range []string{"a1", "b1", "c1", "d1"} {
		p := s.player(id)
		s.Equal(models.PlayerAlive, p.State, id)
		s.NotNil(p.Obituary, "%s keeps its obituary after revival", id)
	}
	for _, id := range []string{"team-A", "team-B", "team-C", "team-D"} {
		s.Equal(models.TeamAlive, s.team(id).State, id)
	}
	s.Equal(4, s.auditCount(models.ActionPlayerRevival))
	s.Equal(4, s.auditCount(models.ActionTeamAdvance))
	s.Zero(s.auditCount(models.ActionTeamElimination))
}

func (s *ServiceSuite) TestRoundTransitionLegacy() {
	s.opts.RoundRule = config.RuleLegacy
	s.build()
	s.fourTeams()
	s.goLive()

	s.kill("a1", "b1")
	s.kill("a1", "b2")

	out, err := s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(CodeGameOver, out.Code)
	s.True(out.OK())

	gs := s.state()
	s.Equal(models.PhasePost, gs.Phase)
	s.Equal("team-A", gs.WinnerTeamID.String)
	s.Equal(1, gs.RoundNumber)
	s.Equal(models.TeamDead, s.team("team-C").State)
	s.Equal(models.TeamDead, s.team("team-D").State)
	s.Equal(1, s.sched.cancelAll)
	s.Contains(s.social.kinds, comm.PostWinner)
}

func (s *ServiceSuite) TestRoundVerdictsComeFromOneSnapshot() {
	s.opts.RoundRule = config.RuleLegacy
	s.build()
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		lower := string(rune(name[0] + 'a' - 'A'))
		s.addTeam(name, lower+"1", lower+"2")
	}
	s.goLive()

	s.kill("b1", "c1")
	s.kill("b1", "c2")

	out, err := s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(CodeGameOver, out.Code)

	s.Equal(models.TeamDead, s.team("team-A").State, "A left B standing")
	s.Equal(models.TeamDead, s.team("team-E").State, "E judged against A as it was before A fell")
	s.Equal("team-B", s.state().WinnerTeamID.String)
}

func (s *ServiceSuite) TestFailedAssignmentLeavesStoreUnchanged() {
	s.addTeam("A", "a1")
	s.addTeam("B", "b1")
	s.addTeam("C", "c1")
	s.goLive()
	notices := len(s.notes.sent)
	logs := s.auditCount(models.ActionTeamElimination)

	out, err := s.game.AdvanceRound(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(CodeNoAssignment, out.Code)

	for _, id := range []string{"team-A", "team-B", "team-C"} {
		s.Equal(models.TeamAlive, s.team(id).State, id)
	}
	for _, id := range []string{"a1", "b1", "c1"} {
		s.Equal(models.PlayerAlive, s.player(id).State, id)
	}
	s.Equal("team-B", s.targetOf("team-A"))
	s.Equal("team-C", s.targetOf("team-B"))
	s.Equal("team-A", s.targetOf("team-C"))

	gs := s.state()
	s.Equal(models.PhaseLive, gs.Phase)
	s.Equal(1, gs.RoundNumber)
	s.False(gs.WinnerTeamID.Valid)
	s.Equal(logs, s.auditCount(models.ActionTeamElimination))
	s.Len(s.notes.sent, notices, "nothing is announced for a rolled back round")
}

func (s *ServiceSuite) TestSettlementCountsOnlyKillsOfThisRound() {
	s.fourTeams()
	s.goLive()

	out, err := s.admin.TogglePlayer(s.ctx, "b1")
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)
	s.kill("b2", "c1")
	s.kill("c2", "d1")
	s.kill("d2", "a1")

	out, err = s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)

	s.Equal(models.TeamDead, s.team("team-A").State, "an admin toggle is not a kill")
	for _, id := range []string{"team-B", "team-C", "team-D"} {
		s.Equal(models.TeamAlive, s.team(id).State, id)
	}
	s.Equal(2, s.state().RoundNumber)
}

func (s *ServiceSuite) TestScheduledStartKeepsTeamsAlive() {
	s.fourTeams()
	s.goLive()
	start := s.clock.Now().Add(time.Hour)
	end := start.Add(24 * time.Hour)
	out, err := s.admin.SetSchedule(s.ctx, ScheduleRequest{Start: start, End: end})
	s.Require().NoError(err)
	s.Require().True(out.OK())
	s.Require().Len(s.sched.armed, 1)
	job := s.sched.armed[0]

	job.onStart()
	gs := s.state()
	s.Equal(models.PhaseLive, gs.Phase)
	s.Equal(1, gs.RoundNumber)
	for _, id := range []string{"team-A", "team-B", "team-C", "team-D"} {
		s.Equal(models.TeamAlive, s.team(id).State, id)
		s.True(s.team(id).TargetID.Valid, id)
	}
	s.Zero(s.auditCount(models.ActionTeamElimination))

	s.clock.Advance(time.Hour)
	s.kill("a1", "b1")
	s.kill("b2", "c1")
	s.kill("c2", "d1")

	job.onEnd()
	gs = s.state()
	s.Equal(2, gs.RoundNumber)
	s.Equal(models.TeamDead, s.team("team-D").State, "D never touched A")
	for _, id := range []string{"team-A", "team-B", "team-C"} {
		s.Equal(models.TeamAlive, s.team(id).State, id)
	}
	for _, id := range []string{"b1", "c1", "d1"} {
		want := models.PlayerAlive
		if id == "d1" {
			want = models.PlayerDead
		}
		s.Equal(want, s.player(id).State, id)
	}
	s.Equal([]string{"Round 1 ended"}, s.auditDescriptions(models.ActionRoundEnd))
}

func (s *ServiceSuite) TestFreeForAllBypassesSettlement() {
	s.fourTeams()
	s.goLive()
	out, err := s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK())

	out, err = s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)

	s.Equal(2, s.state().RoundNumber)
	for _, id := range []string{"team-A", "team-B", "team-C", "team-D"} {
		s.Equal(models.TeamAlive, s.team(id).State, id)
	}
	s.Equal("team-B", s.targetOf("team-A"), "targets are left alone")
	s.Zero(s.auditCount(models.ActionTeamAdvance))
	s.Equal(1, s.auditCount(models.ActionTargetAssignment))
}

func (s *ServiceSuite) TestFreeForAllCanApplySettlement() {
	s.opts.FFARoundRule = config.FFAApply
	s.build()
	s.fourTeams()
	s.goLive()
	s.kill("a1", "b1")
	s.kill("b2", "c1")
	s.kill("c2", "d1")
	_, err := s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)

	out, err := s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK(), out.Message)

	s.Equal(2, s.state().RoundNumber)
	s.Equal(models.TeamDead, s.team("team-D").State)
	s.Equal(3, s.auditCount(models.ActionTeamAdvance))
	s.Equal(1, s.auditCount(models.ActionTargetAssignment), "no new cycle in free-for-all")
}

func (s *ServiceSuite) TestAdvanceRoundRequiresLiveGame() {
	s.fourTeams()

	out, err := s.game.AdvanceRound(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)

	out, err = s.admin.StartRound(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)
	s.Equal(0, s.state().RoundNumber)
}

func (s *ServiceSuite) TestScheduledAdvanceIgnoresStaleRound() {
	s.fourTeams()
	s.goLive()
	_, err := s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)

	out, err := s.game.ScheduledAdvance(s.ctx, 2, true)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)
	s.Equal(1, s.state().RoundNumber)

	out, err = s.game.ScheduledAdvance(s.ctx, 1, true)
	s.Require().NoError(err)
	s.True(out.OK(), out.Message)
	s.Equal(2, s.state().RoundNumber)
	s.Equal([]string{"Round 1 ended"}, s.auditDescriptions(models.ActionRoundEnd))

	out, err = s.game.ScheduledAdvance(s.ctx, 1, true)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code, "a round ends once")
	s.Equal(2, s.state().RoundNumber)
}

func (s *ServiceSuite) TestSetScheduleArmsTimersWhileLive() {
	s.fourTeams()
	start := s.clock.Now().Add(time.Hour)
	end := start.Add(24 * time.Hour)

	out, err := s.game.SetSchedule(s.ctx, end, start)
	s.Require().NoError(err)
	s.Equal(CodeInvalid, out.Code)

	out, err = s.admin.SetSchedule(s.ctx, ScheduleRequest{Start: start, End: end})
	s.Require().NoError(err)
	s.Require().True(out.OK())
	s.Empty(s.sched.armed, "nothing runs before the game is live")
	s.Equal(end, s.state().RoundEnd.Time)

	s.goLive()
	_, err = s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)
	out, err = s.admin.SetSchedule(s.ctx, ScheduleRequest{Start: start, End: end})
	s.Require().NoError(err)
	s.Require().True(out.OK())

	s.Require().Len(s.sched.armed, 1)
	job := s.sched.armed[0]
	s.Equal(1, job.round)
	s.Equal(start, job.start)
	s.Equal(end, job.end)
	s.Equal(2, s.auditCount(models.ActionRoundSchedule))

	job.onStart()
	s.Equal(1, s.state().RoundNumber, "the start hook deals the round without moving on")
	job.onEnd()
	s.Equal(2, s.state().RoundNumber)
	job.onEnd()
	s.Equal(2, s.state().RoundNumber, "a fired end hook is stale afterwards")
}

func (s *ServiceSuite) TestRestoreScheduleRearmsStoredWindow() {
	s.fourTeams()
	start := s.clock.Now().Add(time.Hour)
	end := start.Add(time.Hour)

	s.Require().NoError(s.game.RestoreSchedule(s.ctx))
	s.Equal(1, s.sched.cancelAll)
	s.Empty(s.sched.armed)

	s.goLive()
	_, err := s.game.SetSchedule(s.ctx, start, end)
	s.Require().NoError(err)
	s.sched.armed = nil

	s.Require().NoError(s.game.RestoreSchedule(s.ctx))
	s.Equal(2, s.sched.cancelAll)
	s.Require().Len(s.sched.armed, 1)
	s.Equal(1, s.sched.armed[0].round)
	s.Equal(start, s.sched.armed[0].start)
	s.Equal(end, s.sched.armed[0].end)
}
