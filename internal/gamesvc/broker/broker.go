package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of *nats.Conn the broker publishes through.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// RecipientResolver turns an audience into player ids at send time.
type RecipientResolver interface {
	Recipients(ctx context.Context, audience comm.Audience) ([]string, error)
}

// Scheduling is what the control subject can ask of the game service.
type Scheduling interface {
	RestoreSchedule(ctx context.Context) error
}

// Broker carries the game service's outbound traffic over NATS: notifications for the socket
// service, transcode requests for the media service and social posts. It also answers control
// requests from assassinctl.
type Broker struct {
	Conn     Publisher
	Resolver RecipientResolver
	Quality  string
	now      func() time.Time
}

func NewBroker(conn Publisher, quality string) *Broker {
	return &Broker{
		Conn:    conn,
		Quality: quality,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (b *Broker) Notify(ctx context.Context, audience comm.Audience, subject, body string) error {
	n := comm.Notification{
		Audience: audience,
		Subject:  subject,
		Body:     body,
		Time:     b.now(),
	}
	if audience.Kind != comm.AudienceAdmin && b.Resolver != nil {
		ids, err := b.Resolver.Recipients(ctx, audience)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", audience, err)
		}
		n.Recipients = ids
	}
	return b.publishJSON(comm.SubjectNotify, n)
}

func (b *Broker) Transcode(ctx context.Context, evidenceRef string) error {
	return b.publishJSON(comm.SubjectTranscode, comm.TranscodeRequest{
		EvidenceRef: evidenceRef,
		Quality:     b.Quality,
		Time:        b.now(),
	})
}

func (b *Broker) Post(ctx context.Context, kind, text string) error {
	return b.publishJSON(comm.SubjectSocial, comm.SocialPost{
		Kind: kind,
		Text: text,
		Time: b.now(),
	})
}

func (b *Broker) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return b.Publish(topic, payload)
}

// relay service publish message for signal service to consume
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// SubscribeControl answers control requests. Every instance restores its own timers, so this
// is a plain subscription rather than a queue group.
func (b *Broker) SubscribeControl(conn *nats.Conn, svc Scheduling) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(comm.SubjectControl, func(msg *nats.Msg) {
		reply := b.handleControl(svc, msg.Data)
		if msg.Reply == "" {
			return
		}
		data, err := json.Marshal(reply)
		if err != nil {
			log.Errorf("Error marshalling control reply %s", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			log.Errorf("Error responding to control request %s", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) handleControl(svc Scheduling, data []byte) comm.ControlReply {
	ctrl := comm.Control{}
	if err := json.Unmarshal(data, &ctrl); err != nil {
		log.Errorf("Error control message %s", err)
		return comm.ControlReply{Message: "malformed control message"}
	}

	switch ctrl.Command {
	case comm.ControlRestoreSchedule:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := svc.RestoreSchedule(ctx); err != nil {
			log.Errorf("Error [RestoreSchedule] requested by %s: %s", ctrl.RequestedBy, err)
			return comm.ControlReply{Message: err.Error()}
		}
		log.Infof("round schedule restored on request of %s", ctrl.RequestedBy)
		return comm.ControlReply{OK: true, Message: "schedule restored"}
	default:
		log.Warnf("unknown control command: %s", ctrl.Command)
		return comm.ControlReply{Message: "unknown command " + ctrl.Command}
	}
}
