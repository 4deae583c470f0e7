package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/avvvet/assassin-services/internal/gamesvc/service"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

// EvidenceStore keeps uploaded kill videos.
type EvidenceStore interface {
	Save(filename string, r io.Reader, limit int64) (string, error)
	Path(ref string) (string, error)
	Remove(ref string) error
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	tokenTTL  time.Duration
	game      *service.GameService
	admin     *service.AdminService
	evidence  EvidenceStore
	maxUpload int64
	port      string
}

func NewHandler(game *service.GameService, admin *service.AdminService, evidence EvidenceStore, maxUploadMB int64, port string) *Handler {
	return &Handler{
		tokenTTL:  7 * 24 * time.Hour,
		game:      game,
		admin:     admin,
		evidence:  evidence,
		maxUpload: maxUploadMB << 20,
		port:      port,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, code int, msg string) {
	h.CreateResponse(w, Response{Message: msg, Code: code, Error: msg})
}

// internalError logs err and answers 500 without leaking details.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	h.fail(w, http.StatusInternalServerError, "Something went wrong, please try again.")
}

// outcome answers with the result of a game action.
func (h *Handler) outcome(w http.ResponseWriter, out service.Outcome, data interface{}) {
	rsp := Response{Message: out.Message, Code: statusFor(out), Data: data}
	if !out.OK() {
		rsp.Error = out.Code
	}
	h.CreateResponse(w, rsp)
}

func statusFor(out service.Outcome) int {
	switch out.Code {
	case service.CodeOK, service.CodeRecorded, service.CodeConfirmed, service.CodeRejected, service.CodeGameOver:
		return http.StatusOK
	case service.CodeInvalid:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// parseTime accepts RFC 3339 or the datetime-local form input format (taken as UTC).
func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "game service is running at port " + h.port,
		Code:    http.StatusOK,
		Data:    nil,
	})
}
