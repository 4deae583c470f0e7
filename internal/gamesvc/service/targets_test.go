package service

import (
	"fmt"
	"math/rand/v2"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
)

func (s *ServiceSuite) TestAssignTargetsFormsOneCycle() {
	rng := rand.New(rand.NewPCG(7, 11))
	s.opts.Shuffle = func(teams []*models.Team) {
		rng.Shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })
	}
	s.build()

	for n := 2; n <= 9; n++ {
		s.Run(fmt.Sprintf("%d teams", n), func() {
			s.Require().NoError(s.store.Update(s.ctx, func(tx store.Tx) error { return tx.Wipe(s.ctx) }))
			for i := 0; i < n; i++ {
				s.addTeam(fmt.Sprintf("T%d", i), fmt.Sprintf("p%d", i))
			}

			for attempt := 0; attempt < 5; attempt++ {
				out, err := s.game.AssignTargets(s.ctx)
				s.Require().NoError(err)
				s.Require().True(out.OK(), out.Message)
				s.assertSingleCycle(n)
			}
		})
	}
}

func (s *ServiceSuite) assertSingleCycle(n int) {
	var teams []*models.Team
	s.Require().NoError(s.store.View(s.ctx, func(tx store.Tx) error {
		var err error
		teams, err = tx.TeamsByState(s.ctx, models.TeamAlive)
		return err
	}))
	s.Require().Len(teams, n)

	next := make(map[string]string, n)
	inbound := make(map[string]int, n)
	for _, t := range teams {
		s.Require().True(t.TargetID.Valid, "team %s has no target", t.Name)
		s.NotEqual(t.ID, t.TargetID.String, "team %s targets itself", t.Name)
		next[t.ID] = t.TargetID.String
		inbound[t.TargetID.String]++
	}
	for _, t := range teams {
		s.Equal(1, inbound[t.ID], "team %s is hunted by exactly one team", t.Name)
	}

	seen := map[string]bool{}
	at := teams[0].ID
	for i := 0; i < n; i++ {
		s.False(seen[at], "cycle closes early at %s", at)
		seen[at] = true
		at = next[at]
	}
	s.Equal(teams[0].ID, at, "following targets returns to the start after visiting every team")
}

func (s *ServiceSuite) TestAssignTargetsNeedsTwoAliveTeams() {
	s.addTeam("A", "a1")
	pending := s.addTeam("B", "b1")
	s.Require().NoError(s.store.Update(s.ctx, func(tx store.Tx) error {
		pending.State = models.TeamPending
		return tx.UpdateTeam(s.ctx, pending)
	}))

	out, err := s.game.AssignTargets(s.ctx)
	s.Require().NoError(err)
	s.Equal(CodeNoAssignment, out.Code)
	s.False(out.OK())

	s.False(s.team("team-A").TargetID.Valid)
	s.False(s.team("team-B").TargetID.Valid)
	s.Zero(s.auditCount(models.ActionTargetAssignment))
	s.Empty(s.notes.sent)
}

func (s *ServiceSuite) TestAssignTargetsReportsToAdmins() {
	s.fourTeams()

	out, err := s.game.AssignTargets(s.ctx)
	s.Require().NoError(err)
	s.Require().True(out.OK())

	s.Equal("team-B", s.targetOf("team-A"))
	s.Equal("team-C", s.targetOf("team-B"))
	s.Equal("team-D", s.targetOf("team-C"))
	s.Equal("team-A", s.targetOf("team-D"))

	s.Equal(1, s.auditCount(models.ActionTargetAssignment))
	admin := s.notes.to(comm.AudienceAdmin)
	s.Require().Len(admin, 1)
	s.Equal("A -> B\nB -> C\nC -> D\nD -> A", admin[0].body)
}

func (s *ServiceSuite) TestAssignTargetsDropsEdgesOfDeadTeams() {
	s.fourTeams()
	s.goLive()
	out, err := s.admin.ToggleTeam(s.ctx, "team-D")
	s.Require().NoError(err)
	s.Require().True(out.OK())

	out, err = s.game.AssignTargets(s.ctx)
	s.Require().NoError(err)
	s.Require().True(out.OK())

	s.False(s.team("team-D").TargetID.Valid)
	s.Equal("team-A", s.targetOf("team-C"))
}

func (s *ServiceSuite) TestAssignTargetsIsOffInFreeForAll() {
	s.fourTeams()
	out, err := s.admin.SetFreeForAll(s.ctx, true)
	s.Require().NoError(err)
	s.Require().True(out.OK())

	out, err = s.game.AssignTargets(s.ctx)
	s.Require().NoError(err)
	s.Equal(CodeNotAllowed, out.Code)
}
