package comm

import (
	"encoding/json"
	"slices"
	"time"
)

// NATS subjects shared by the services.
const (
	SubjectNotify    = "game.notify"
	SubjectControl   = "game.control"
	SubjectTranscode = "media.transcode"
	SubjectSocial    = "social.post"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "notification", "social"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// Audience kinds.
const (
	AudienceAll   = "all"
	AudienceAlive = "alive"
	AudienceTeam  = "team"
	AudienceAdmin = "admin"
)

type Audience struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"` // team id for AudienceTeam
}

func AllPlayers() Audience { return Audience{Kind: AudienceAll} }

func AlivePlayers() Audience { return Audience{Kind: AudienceAlive} }

func Team(teamID string) Audience { return Audience{Kind: AudienceTeam, ID: teamID} }

func Admins() Audience { return Audience{Kind: AudienceAdmin} }

func (a Audience) String() string {
	if a.ID == "" {
		return a.Kind
	}
	return a.Kind + ":" + a.ID
}

// Notification is published on SubjectNotify. Recipients holds the player ids the
// audience resolved to when it was sent; admin notifications carry none.
type Notification struct {
	Audience   Audience  `json:"audience"`
	Recipients []string  `json:"recipients,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Time       time.Time `json:"time"`
}

// DeliverTo reports whether a connected client with the given role and player id should receive n.
func (n Notification) DeliverTo(role, playerID string) bool {
	if n.Audience.Kind == AudienceAdmin {
		return role == AudienceAdmin
	}
	return playerID != "" && slices.Contains(n.Recipients, playerID)
}

type TranscodeRequest struct {
	EvidenceRef string    `json:"evidence_ref"`
	Quality     string    `json:"quality,omitempty"`
	Time        time.Time `json:"time"`
}

// Social post kinds.
const (
	PostRoundStart  = "round_start"
	PostElimination = "elimination"
	PostWinner      = "winner"
)

type SocialPost struct {
	Kind string    `json:"kind"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Control commands accepted on SubjectControl.
const (
	ControlRestoreSchedule = "restore_schedule"
)

type Control struct {
	Command     string    `json:"command"`
	RequestedBy string    `json:"requested_by"`
	Time        time.Time `json:"time"`
}

type ControlReply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
