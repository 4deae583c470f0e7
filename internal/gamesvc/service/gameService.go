package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/avvvet/assassin-services/internal/audit"
	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/config"
	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Notifier delivers a message to an audience. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, audience comm.Audience, subject, body string) error
}

// Transcoder normalizes an uploaded evidence file in place.
type Transcoder interface {
	Transcode(ctx context.Context, evidenceRef string) error
}

type SocialPoster interface {
	Post(ctx context.Context, kind, text string) error
}

type AuditSink interface {
	Append(ctx context.Context, entry models.ActionLog) error
	Recent(ctx context.Context, n int) ([]models.ActionLog, error)
}

// Scheduler runs the start and end hooks of a round at their times. Replace drops any jobs
// already pending for the same round.
type Scheduler interface {
	Replace(round int, start, end time.Time, onStart, onEnd func())
	Cancel(round int)
	CancelAll()
}

type EvidencePurger interface {
	Purge() error
}

// Deps are the collaborators of the core. Any of them may be nil.
type Deps struct {
	Notifier   Notifier
	Transcoder Transcoder
	Social     SocialPoster
	Audit      AuditSink
	Scheduler  Scheduler
	Evidence   EvidencePurger
}

type Options struct {
	ClaimWindow  time.Duration
	RoundRule    string // config.RuleGranular or config.RuleLegacy
	FFARoundRule string // config.FFABypass or config.FFAApply
	BcryptCost   int

	Now     func() time.Time
	Shuffle func(teams []*models.Team)
	NewID   func() string
}

type GameService struct {
	store      store.Store
	notifier   Notifier
	transcoder Transcoder
	social     SocialPoster
	audit      AuditSink
	scheduler  Scheduler
	evidence   EvidencePurger
	opts       Options
}

func NewGameService(st store.Store, deps Deps, opts Options) *GameService {
	if opts.ClaimWindow <= 0 {
		opts.ClaimWindow = 24 * time.Hour
	}
	if opts.RoundRule == "" {
		opts.RoundRule = config.RuleGranular
	}
	if opts.FFARoundRule == "" {
		opts.FFARoundRule = config.FFABypass
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(teams []*models.Team) {
			rand.Shuffle(len(teams), func(i, j int) { teams[i], teams[j] = teams[j], teams[i] })
		}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	s := &GameService{
		store:      st,
		notifier:   deps.Notifier,
		transcoder: deps.Transcoder,
		social:     deps.Social,
		audit:      deps.Audit,
		scheduler:  deps.Scheduler,
		evidence:   deps.Evidence,
		opts:       opts,
	}
	if s.audit == nil {
		s.audit = audit.NewLog()
	}
	if s.scheduler == nil {
		s.scheduler = nopScheduler{}
	}
	return s
}

// Outcome codes.
const (
	CodeOK           = "ok"
	CodeRecorded     = "recorded"
	CodeConfirmed    = "confirmed"
	CodeRejected     = "rejected"
	CodeGameOver     = "game_over"
	CodeExpired      = "expired"
	CodeAlreadyVoted = "already_voted"
	CodeOwnClaim     = "own_claim"
	CodeNotPending   = "not_pending"
	CodeInvalid      = "invalid"
	CodeNotFound     = "not_found"
	CodeNotAllowed   = "not_allowed"
	CodeNoAssignment = "no_assignment"
)

// Outcome is the result of a game action: success plus a short message for the player or admin.
type Outcome struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (o Outcome) OK() bool {
	switch o.Code {
	case CodeOK, CodeRecorded, CodeConfirmed, CodeRejected, CodeGameOver:
		return true
	}
	return false
}

func succeed(format string, args ...any) Outcome {
	return Outcome{Code: CodeOK, Message: fmt.Sprintf(format, args...)}
}

func fail(code, format string, args ...any) Outcome {
	return Outcome{Code: code, Message: fmt.Sprintf(format, args...)}
}

type notice struct {
	audience comm.Audience
	subject  string
	body     string
}

type post struct {
	kind string
	text string
}

// effects collects what an action wants the outside world to see. Nothing in it leaves the
// process until the transaction has committed.
type effects struct {
	now        time.Time
	logs       []models.ActionLog
	notices    []notice
	transcodes []string
	posts      []post
	after      []func()
}

func (fx *effects) audit(typ, actor, format string, args ...any) {
	fx.logs = append(fx.logs, models.ActionLog{
		Type:        typ,
		Description: fmt.Sprintf(format, args...),
		Actor:       actor,
		Timestamp:   fx.now,
	})
}

func (fx *effects) notify(audience comm.Audience, subject, body string) {
	fx.notices = append(fx.notices, notice{audience: audience, subject: subject, body: body})
}

func (fx *effects) transcode(evidenceRef string) {
	fx.transcodes = append(fx.transcodes, evidenceRef)
}

func (fx *effects) post(kind, format string, args ...any) {
	fx.posts = append(fx.posts, post{kind: kind, text: fmt.Sprintf(format, args...)})
}

func (fx *effects) onCommit(fn func()) {
	fx.after = append(fx.after, fn)
}

// update runs fn as one logical action and, once it committed, releases its effects.
// rollback aborts the transaction of an action whose precondition failed halfway. The caller still
// reports out; nothing the action wrote is kept and none of its effects are flushed.
type rollback struct {
	out Outcome
}

func (r *rollback) Error() string { return r.out.Message }

func (s *GameService) update(ctx context.Context, fn func(tx store.Tx, fx *effects) error) error {
	var fx *effects
	err := s.store.Update(ctx, func(tx store.Tx) error {
		fx = &effects{now: s.now()}
		return fn(tx, fx)
	})
	var rb *rollback
	if errors.As(err, &rb) {
		log.Infof("action rolled back: %s", rb.out.Message)
		return nil
	}
	if err != nil {
		return err
	}
	s.flush(ctx, fx)
	return nil
}

func (s *GameService) view(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.store.View(ctx, fn)
}

// flush hands committed effects to the collaborators. Their failures are logged and dropped.
func (s *GameService) flush(ctx context.Context, fx *effects) {
	for _, entry := range fx.logs {
		if err := s.audit.Append(ctx, entry); err != nil {
			log.Warnf("audit append %s failed: %v", entry.Type, err)
		}
	}
	for _, fn := range fx.after {
		fn()
	}
	if s.notifier != nil {
		for _, n := range fx.notices {
			if err := s.notifier.Notify(ctx, n.audience, n.subject, n.body); err != nil {
				log.Warnf("notify %s %q failed: %v", n.audience, n.subject, err)
			}
		}
	}
	if s.transcoder != nil {
		for _, ref := range fx.transcodes {
			if err := s.transcoder.Transcode(ctx, ref); err != nil {
				log.Warnf("transcode %s failed: %v", ref, err)
			}
		}
	}
	if s.social != nil {
		for _, p := range fx.posts {
			if err := s.social.Post(ctx, p.kind, p.text); err != nil {
				log.Warnf("social post %s failed: %v", p.kind, err)
			}
		}
	}
}

func (s *GameService) now() time.Time {
	return s.opts.Now()
}

type nopScheduler struct{}

func (nopScheduler) Replace(int, time.Time, time.Time, func(), func()) {}
func (nopScheduler) Cancel(int)                                        {}
func (nopScheduler) CancelAll()                                        {}
