package handlers

import (
	"net/http"

	"github.com/avvvet/assassin-services/internal/gamesvc/service"
	"github.com/go-chi/chi"
)

func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.admin.Dashboard(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: d})
}

func (h *Handler) AcceptTeamHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.admin.AcceptTeam(r.Context(), chi.URLParam(r, "teamID"))
	h.reply(w, r, out, err)
}

func (h *Handler) ToggleTeamHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.admin.ToggleTeam(r.Context(), chi.URLParam(r, "teamID"))
	h.reply(w, r, out, err)
}

func (h *Handler) TogglePlayerHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.admin.TogglePlayer(r.Context(), chi.URLParam(r, "playerID"))
	h.reply(w, r, out, err)
}

func (h *Handler) ChangePhaseHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	out, err := h.admin.ChangePhase(r.Context(), req.State)
	h.reply(w, r, out, err)
}

func (h *Handler) ThresholdHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold int `json:"threshold"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	out, err := h.admin.SetThreshold(r.Context(), req.Threshold)
	h.reply(w, r, out, err)
}

func (h *Handler) FreeForAllHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	out, err := h.admin.SetFreeForAll(r.Context(), req.Enabled)
	h.reply(w, r, out, err)
}

func (h *Handler) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start   string `json:"round_start"`
		End     string `json:"round_end"`
		Confirm bool   `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !req.Confirm {
		h.fail(w, http.StatusBadRequest, "Please confirm the action.")
		return
	}
	start, err := parseTime(req.Start)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid date/time format.")
		return
	}
	end, err := parseTime(req.End)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid date/time format.")
		return
	}
	out, err := h.admin.SetSchedule(r.Context(), service.ScheduleRequest{Start: start, End: end})
	h.reply(w, r, out, err)
}

func (h *Handler) StartRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Increment bool `json:"increment"`
		Confirm   bool `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !req.Confirm {
		h.fail(w, http.StatusBadRequest, "Please confirm the action.")
		return
	}
	out, err := h.admin.StartRound(r.Context(), req.Increment)
	h.reply(w, r, out, err)
}

func (h *Handler) AssignTargetsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.game.AssignTargets(r.Context())
	h.reply(w, r, out, err)
}

func (h *Handler) ForceVoteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve *bool `json:"approve"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Approve == nil {
		h.fail(w, http.StatusBadRequest, "A decision needs approve: true or false.")
		return
	}
	out, err := h.admin.ForceVoteDecision(r.Context(), chi.URLParam(r, "claimID"), *req.Approve)
	h.reply(w, r, out, err)
}

func (h *Handler) WipeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm       bool `json:"confirm"`
		DoubleConfirm bool `json:"double_confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !req.Confirm || !req.DoubleConfirm {
		h.fail(w, http.StatusBadRequest, "Please confirm this destructive action twice.")
		return
	}
	out, err := h.admin.Wipe(r.Context())
	h.reply(w, r, out, err)
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, out service.Outcome, err error) {
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.outcome(w, out, nil)
}
