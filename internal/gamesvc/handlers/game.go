package handlers

import (
	"errors"
	"net/http"

	"github.com/avvvet/assassin-services/internal/gamesvc/evidence"
	"github.com/avvvet/assassin-services/internal/gamesvc/service"
	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req service.TeamSignup
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid signup request: "+err.Error())
		return
	}

	team, out, err := h.game.RegisterTeam(r.Context(), req)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !out.OK() {
		h.outcome(w, out, nil)
		return
	}
	h.CreateResponse(w, Response{Message: out.Message, Code: http.StatusCreated, Data: team})
}

func (h *Handler) GameStateHandler(w http.ResponseWriter, r *http.Request) {
	gs, err := h.game.GameState(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: gs})
}

func (h *Handler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	board, err := h.game.Leaderboard(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: board})
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	view, err := h.game.View(r.Context(), id.Subject)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if view == nil {
		h.fail(w, http.StatusNotFound, "Player not found.")
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: view})
}

func (h *Handler) PendingClaimsHandler(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	claims, err := h.game.PendingForVoter(r.Context(), id.Subject)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if claims == nil {
		claims = []service.PendingClaim{}
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: claims})
}

// SubmitClaimHandler takes a multipart form: victim_id, kill_time, rules_confirmed and the
// kill_video file.
func (h *Handler) SubmitClaimHandler(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, http.StatusRequestEntityTooLarge, "Video is too large.")
			return
		}
		h.fail(w, http.StatusBadRequest, "Invalid kill submission form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	victimID := r.FormValue("victim_id")
	killTimeStr := r.FormValue("kill_time")
	if victimID == "" || killTimeStr == "" || r.FormValue("rules_confirmed") == "" {
		h.fail(w, http.StatusBadRequest, "All fields are required.")
		return
	}
	killTime, err := parseTime(killTimeStr)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid time format.")
		return
	}

	file, header, err := r.FormFile("kill_video")
	if err != nil {
		h.fail(w, http.StatusBadRequest, "No video uploaded.")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		h.fail(w, http.StatusBadRequest, "No video selected.")
		return
	}

	ref, err := h.evidence.Save(header.Filename, file, h.maxUpload)
	switch {
	case errors.Is(err, evidence.ErrUnsupported):
		h.fail(w, http.StatusBadRequest, "Invalid file type. Allowed types: mp4, mov.")
		return
	case errors.Is(err, evidence.ErrTooLarge):
		h.fail(w, http.StatusRequestEntityTooLarge, "Video is too large.")
		return
	case err != nil:
		h.internalError(w, r, err)
		return
	}

	claim, err := h.game.SubmitClaim(r.Context(), service.ClaimInput{
		VictimID:    victimID,
		AttackerID:  id.Subject,
		KillTime:    killTime,
		EvidenceRef: ref,
	})
	if err != nil || claim == nil {
		if rerr := h.evidence.Remove(ref); rerr != nil {
			log.Warnf("unable to remove evidence %s: %v", ref, rerr)
		}
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if claim == nil {
		h.fail(w, http.StatusConflict, "Failed to submit kill. Please check your inputs and try again.")
		return
	}
	h.CreateResponse(w, Response{
		Message: "Kill submitted successfully and pending confirmation.",
		Code:    http.StatusCreated,
		Data:    claim,
	})
}

func (h *Handler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req struct {
		Approve *bool `json:"approve"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Approve == nil {
		h.fail(w, http.StatusBadRequest, "A vote needs approve: true or false.")
		return
	}

	out, err := h.game.Vote(r.Context(), chi.URLParam(r, "claimID"), id.Subject, *req.Approve)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.outcome(w, out, nil)
}

// EvidenceHandler streams the video of a claim to any logged in player.
func (h *Handler) EvidenceHandler(w http.ResponseWriter, r *http.Request) {
	claim, err := h.game.Claim(r.Context(), chi.URLParam(r, "claimID"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if claim == nil {
		h.fail(w, http.StatusNotFound, "Kill confirmation not found.")
		return
	}
	path, err := h.evidence.Path(claim.EvidenceRef)
	if err != nil {
		h.fail(w, http.StatusNotFound, "Video not found.")
		return
	}
	http.ServeFile(w, r, path)
}
