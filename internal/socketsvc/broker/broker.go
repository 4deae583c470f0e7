package broker

import (
	"encoding/json"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Hub fans a message out to the connected web clients.
type Hub interface {
	Broadcast(msgType string, data json.RawMessage, deliver func(role, playerID string) bool) int
}

type Broker struct {
	Conn *nats.Conn
	Hub  Hub
}

func NewBroker(conn *nats.Conn, hub Hub) *Broker {
	return &Broker{Conn: conn, Hub: hub}
}

// Subscribe receives every message of subject on this instance. Each socket service instance
// serves its own clients, so no queue group is used.
func (b *Broker) Subscribe(subject string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(subject, func(msg *nats.Msg) {
		b.handleMessage(msg.Subject, msg.Data)
	})
}

// handleMessage receives a message from the game service and returns how many clients got it.
func (b *Broker) handleMessage(subject string, data []byte) int {
	switch subject {
	case comm.SubjectNotify:
		var n comm.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			log.Errorf("invalid notification: %v", err)
			return 0
		}
		sent := b.Hub.Broadcast("notification", data, n.DeliverTo)
		log.Debugf("notification %q to %s delivered to %d sockets", n.Subject, n.Audience, sent)
		return sent
	case comm.SubjectSocial:
		var p comm.SocialPost
		if err := json.Unmarshal(data, &p); err != nil {
			log.Errorf("invalid social post: %v", err)
			return 0
		}
		return b.Hub.Broadcast("social", data, nil)
	default:
		log.Errorf("unknown subject %s", subject)
		return 0
	}
}
