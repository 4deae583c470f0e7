package service

import (
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
)

func (s *ServiceSuite) TestVoteReachesApproveQuorum() {
	s.fourTeams()
	s.goLive()
	claim := s.submit("a1", "b1")

	s.Equal(Outcome{Code: CodeRecorded, Message: "Vote recorded"}, s.vote(claim.ID, "c1", true))
	s.Equal(CodeRecorded, s.vote(claim.ID, "d1", false).Code)
	s.Equal(CodeRecorded, s.vote(claim.ID, "c2", true).Code)
	s.Equal(models.PlayerAlive, s.player("b1").State)

	out := s.vote(claim.ID, "d2", true)
	s.Equal(Outcome{Code: CodeConfirmed, Message: "Kill confirmed"}, out)
	s.True(out.OK())

	victim := s.player("b1")
	s.Equal(models.PlayerDead, victim.State)
	s.Require().NotNil(victim.Obituary)
	s.Equal(1, victim.Obituary.Round)
	s.Equal("a1", victim.Obituary.Killer)
	s.Equal(claim.KillTime, victim.Obituary.Time)

	s.Equal(1, s.team("team-A").Eliminations)
	s.Equal(models.TeamAlive, s.team("team-B").State, "b2 still lives")
	s.Equal(1, s.auditCount(models.ActionKillConfirmed))

	s.Equal(CodeNotPending, s.vote(claim.ID, "b2", true).Code, "no votes after resolution")
}

func (s *ServiceSuite) TestVoteReachesRejectQuorum() {
	s.fourTeams()
	s.goLive()
	claim := s.submit("a1", "b1")

	s.Equal(CodeRecorded, s.vote(claim.ID, "c1", false).Code)
	s.Equal(CodeRecorded, s.vote(claim.ID, "c2", false).Code)
	out := s.vote(claim.ID, "d1", false)
	s.Equal(Outcome{Code: CodeRejected, Message: "Kill rejected"}, out)
	s.True(out.OK())

	s.Equal(models.PlayerAlive, s.player("b1").State)
	s.Equal(1, s.auditCount(models.ActionKillRejected))
	s.NotEmpty(s.notes.to(comm.AudienceTeam), "the attacker's team hears about it")
	s.NotNil(s.submit("a1", "b1"), "a rejected claim frees the victim")
}

func (s *ServiceSuite) TestVotePreconditionsInOrder() {
	s.fourTeams()
	s.goLive()
	claim := s.submit("a1", "b1")

	out := s.vote("missing", "c1", true)
	s.Equal(Outcome{Code: CodeInvalid, Message: "Invalid kill confirmation or voter"}, out)
	s.False(out.OK())
	s.Equal(CodeInvalid, s.vote(claim.ID, "ghost", true).Code)

	s.Equal(Outcome{Code: CodeOwnClaim, Message: "You cannot vote on your own kill confirmation"}, s.vote(claim.ID, "a1", true))
	s.Equal(CodeOwnClaim, s.vote(claim.ID, "b1", false).Code)

	s.Equal(CodeRecorded, s.vote(claim.ID, "c1", true).Code)
	s.Equal(Outcome{Code: CodeAlreadyVoted, Message: "You have already voted on this kill confirmation"}, s.vote(claim.ID, "c1", false))

	pending, err := s.game.PendingForVoter(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(1, pending[0].Approvals, "the repeated vote did not change the tally")
	s.Equal(0, pending[0].Rejections)
}

func (s *ServiceSuite) TestVoteOnExpiredClaim() {
	s.fourTeams()
	s.goLive()
	claim := s.submit("a1", "b1")
	s.Equal(CodeRecorded, s.vote(claim.ID, "c1", true).Code)

	s.clock.Advance(24 * time.Hour)
	out := s.vote(claim.ID, "c2", true)
	s.Equal(Outcome{Code: CodeExpired, Message: "Kill confirmation has expired"}, out)
	s.False(out.OK())

	// an own-claim vote on the same expired claim now sees it decided
	s.Equal(Outcome{Code: CodeNotPending, Message: "Kill confirmation is no longer pending"}, s.vote(claim.ID, "a1", true))

	pending, err := s.game.PendingForVoter(s.ctx, "d1")
	s.Require().NoError(err)
	s.Empty(pending)
	s.Equal(1, s.auditCount(models.ActionKillVote), "no vote recorded after expiry")
	s.Equal(models.PlayerAlive, s.player("b1").State)
}

func (s *ServiceSuite) TestExpiredCheckRunsBeforeOwnClaimCheck() {
	s.fourTeams()
	s.goLive()
	claim := s.submit("a1", "b1")
	s.clock.Advance(25 * time.Hour)

	s.Equal(CodeExpired, s.vote(claim.ID, "a1", true).Code)
}

func (s *ServiceSuite) TestThresholdOneConfirmsImmediatelyAndEndsGame() {
	s.addTeam("A", "a1")
	s.addTeam("B", "b1")
	s.addTeam("C", "c1")
	out, err := s.admin.SetThreshold(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().True(out.OK())
	s.goLive()

	// A -> B -> C -> A
	s.kill("b1", "c1")
	s.Equal(models.TeamDead, s.team("team-C").State)
	s.Equal(1, s.team("team-C").EliminatedInRound.Int)
	s.Equal(models.PhaseLive, s.state().Phase, "two teams still alive")

	claim := s.submit("a1", "b1")
	s.Require().NotNil(claim)
	s.Equal(CodeConfirmed, s.vote(claim.ID, "c1", true).Code, "dead players may still sit on the jury")

	gs := s.state()
	s.Equal(models.PhasePost, gs.Phase)
	s.Equal("team-A", gs.WinnerTeamID.String)
	s.Equal(1, s.auditCount(models.ActionGameComplete))
	s.Contains(s.social.kinds, comm.PostWinner)
	s.Equal(1, s.sched.cancelAll, "timers of a finished game are dropped")
}

func (s *ServiceSuite) TestObituaryIsWrittenOnce() {
	s.fourTeams()
	s.goLive()
	s.kill("a1", "b1")
	first := s.player("b1").Obituary
	s.Require().NotNil(first)

	out, err := s.admin.TogglePlayer(s.ctx, "b1")
	s.Require().NoError(err)
	s.Require().True(out.OK())
	s.Equal(models.PlayerAlive, s.player("b1").State)

	s.clock.Advance(time.Hour)
	s.kill("a2", "b1")
	again := s.player("b1")
	s.Equal(models.PlayerDead, again.State)
	s.Equal(first, again.Obituary)
	s.Equal(2, s.team("team-A").Eliminations)
}
