package handlers

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Get("/game", h.GameStateHandler)
		r.Get("/leaderboard", h.LeaderboardHandler)
		r.Post("/signup", h.SignupHandler)
		r.Post("/login", h.LoginHandler)

		// player routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(requireRole(RolePlayer))

			r.Get("/me", h.MeHandler)
			r.Get("/claims/pending", h.PendingClaimsHandler)
			r.Get("/claims/{claimID}/evidence", h.EvidenceHandler)

			r.With(h.requireLive).Post("/claims", h.SubmitClaimHandler)
			r.With(h.requireLive).Post("/claims/{claimID}/votes", h.VoteHandler)
		})

		// admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLoginHandler)

			r.Group(func(r chi.Router) {
				r.Use(jwtauth.Verifier(h.tokenAuth))
				r.Use(jwtauth.Authenticator)
				r.Use(requireRole(RoleAdmin))

				r.Get("/dashboard", h.DashboardHandler)
				r.Put("/phase", h.ChangePhaseHandler)
				r.Put("/threshold", h.ThresholdHandler)
				r.Put("/free-for-all", h.FreeForAllHandler)
				r.Put("/schedule", h.ScheduleHandler)
				r.Post("/rounds", h.StartRoundHandler)
				r.Post("/targets", h.AssignTargetsHandler)
				r.Post("/teams/{teamID}/accept", h.AcceptTeamHandler)
				r.Post("/teams/{teamID}/toggle", h.ToggleTeamHandler)
				r.Post("/players/{playerID}/toggle", h.TogglePlayerHandler)
				r.Post("/claims/{claimID}/decision", h.ForceVoteHandler)
				r.Post("/wipe", h.WipeHandler)
			})
		})
	})
}
