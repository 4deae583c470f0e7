package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

func (h *Handler) InitAuth(secret string) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
}

func (h *Handler) TokenAuth() *jwtauth.JWTAuth { return h.tokenAuth }

// IssueToken signs a token for subject (a player id, or "admin").
func (h *Handler) IssueToken(subject, role, teamID string) (string, error) {
	claims := map[string]interface{}{
		"sub":  subject,
		"role": role,
	}
	if teamID != "" {
		claims["team_id"] = teamID
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, time.Now().Add(h.tokenTTL))

	_, token, err := h.tokenAuth.Encode(claims)
	return token, err
}

type identity struct {
	Subject string
	Role    string
	TeamID  string
}

func identityFrom(ctx context.Context) identity {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return identity{}
	}
	id := identity{}
	id.Subject, _ = claims["sub"].(string)
	id.Role, _ = claims["role"].(string)
	id.TeamID, _ = claims["team_id"].(string)
	return id
}

// requireRole runs after jwtauth.Authenticator and rejects tokens of another role.
func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFrom(r.Context())
			if id.Role != role || id.Subject == "" {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireLive keeps claim submission and voting to the live phase.
func (h *Handler) requireLive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gs, err := h.game.GameState(r.Context())
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		if !gs.IsLive() {
			h.fail(w, http.StatusForbidden, "The game is not currently active.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	Role   string `json:"role"`
	UserID string `json:"user_id"`
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid login request: "+err.Error())
		return
	}

	player, err := h.game.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if player == nil {
		h.fail(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	token, err := h.IssueToken(player.ID, RolePlayer, player.TeamID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.CreateResponse(w, Response{
		Message: "Login successful",
		Code:    http.StatusOK,
		Data:    tokenResponse{Token: token, Role: RolePlayer, UserID: player.ID},
	})
}

func (h *Handler) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid login request: "+err.Error())
		return
	}
	if !h.admin.Authenticate(req.Password) {
		log.Warnf("failed admin login from %s", r.RemoteAddr)
		h.fail(w, http.StatusUnauthorized, "Invalid admin password.")
		return
	}

	token, err := h.IssueToken(RoleAdmin, RoleAdmin, "")
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	log.Infof("admin logged in from %s", r.RemoteAddr)
	h.CreateResponse(w, Response{
		Message: "Admin login successful",
		Code:    http.StatusOK,
		Data:    tokenResponse{Token: token, Role: RoleAdmin, UserID: RoleAdmin},
	})
}
