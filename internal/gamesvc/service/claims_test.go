package service

import (
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
)

func (s *ServiceSuite) TestSubmitClaimCreatesPendingClaim() {
	s.fourTeams()
	s.goLive()

	claim := s.submit("a1", "b1")
	s.Require().NotNil(claim)
	s.Equal(models.ClaimPending, claim.Status)
	s.Equal(1, claim.RoundNumber)
	s.Equal(s.clock.Now().Add(24*time.Hour), claim.ExpiresAt)
	s.Equal("a1", claim.AttackerID)
	s.Equal("b1", claim.VictimID)

	s.Equal([]string{claim.EvidenceRef}, s.media.refs)
	s.Equal(1, s.auditCount(models.ActionKillSubmission))
	s.Len(s.notes.to(comm.AudienceAlive), 1, "players are asked to vote")
	s.NotEmpty(s.notes.to(comm.AudienceAdmin))
}

func (s *ServiceSuite) TestSubmitClaimPreconditions() {
	s.fourTeams()
	s.goLive()
	s.Require().NotNil(s.submit("a1", "b1"))

	// c2 is dead
	out, err := s.admin.TogglePlayer(s.ctx, "c2")
	s.Require().NoError(err)
	s.Require().True(out.OK())

	cases := []struct {
		name             string
		attacker, victim string
	}{
		{"victim not on the target team", "a1", "c1"},
		{"attacker targets someone else", "b1", "a1"},
		{"victim already has a pending claim", "a2", "b1"},
		{"unknown victim", "a1", "nobody"},
		{"unknown attacker", "nobody", "b2"},
		{"dead attacker", "c2", "d1"},
		{"own team", "a1", "a2"},
	}
	for _, tc := range cases {
		s.Nil(s.submit(tc.attacker, tc.victim), tc.name)
	}
	s.Equal(1, s.auditCount(models.ActionKillSubmission))
}

func (s *ServiceSuite) TestSubmitClaimAgainstDeadVictim() {
	s.fourTeams()
	s.goLive()
	s.kill("a1", "b1")

	s.Nil(s.submit("a2", "b1"))
	s.NotNil(s.submit("a2", "b2"))
}

func (s *ServiceSuite) TestSubmitClaimFreeForAll() {
	s.fourTeams()
	s.goLive()
	out, err := s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK())

	s.NotNil(s.submit("a1", "c1"), "any opposing player is fair game")
	s.NotNil(s.submit("d1", "b2"))
	s.Nil(s.submit("a1", "a2"), "never a teammate")
}

func (s *ServiceSuite) TestPendingForVoter() {
	s.fourTeams()
	s.goLive()

	first := s.submit("a1", "b1")
	s.clock.Advance(time.Hour)
	second := s.submit("c1", "d1")
	s.Require().NotNil(first)
	s.Require().NotNil(second)

	pending, err := s.game.PendingForVoter(s.ctx, "c2")
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal("b1", pending[0].VictimName)
	s.Equal("a1", pending[0].AttackerName)

	s.Equal(CodeRecorded, s.vote(first.ID, "c2", true).Code)

	pending, err = s.game.PendingForVoter(s.ctx, "c2")
	s.Require().NoError(err)
	s.Require().Len(pending, 1, "claims already voted on are hidden")
	s.Equal(second.ID, pending[0].ID)

	pending, err = s.game.PendingForVoter(s.ctx, "a1")
	s.Require().NoError(err)
	s.Require().Len(pending, 1, "own claims are hidden")
	s.Equal(second.ID, pending[0].ID)

	pending, err = s.game.PendingForVoter(s.ctx, "b2")
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(1, pending[0].Approvals)
}

func (s *ServiceSuite) TestPendingForVoterExpiresStaleClaims() {
	s.fourTeams()
	s.goLive()

	stale := s.submit("a1", "b1")
	s.clock.Advance(23 * time.Hour)
	fresh := s.submit("c1", "d1")
	s.clock.Advance(time.Hour) // stale is now exactly at its deadline

	pending, err := s.game.PendingForVoter(s.ctx, "b2")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(fresh.ID, pending[0].ID)

	s.Equal(1, s.auditCount(models.ActionKillExpired))
	s.Equal(CodeNotPending, s.vote(stale.ID, "c2", true).Code, "the expiry was committed")

	// the victim is free for a new claim
	s.NotNil(s.submit("a2", "b1"))
}
