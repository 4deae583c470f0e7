package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassin-services/internal/audit"
	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/gamesvc/broker"
	"github.com/avvvet/assassin-services/internal/gamesvc/db"
	"github.com/avvvet/assassin-services/internal/gamesvc/service"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	natscli "github.com/avvvet/assassin-services/internal/nats"
)

// backend is what the commands run against: the core on the game database, and the NATS
// connection used to reach the running game service.
type backend struct {
	game  *service.GameService
	admin *service.AdminService
	conn  *nats.Conn
	close func()
}

var openBackend = func(ctx context.Context, cfg *ctlConfig) (*backend, error) {
	if cfg.dbURL == "" {
		return nil, errors.New("--postgres-url (POSTGRES_URL) is required")
	}
	pool, err := db.Connect(cfg.dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if err := db.Migrate(ctx, pool, cfg.votingThreshold); err != nil {
		closeAll()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	var sink service.AuditSink = audit.NewLog()
	if cfg.mongoURI != "" {
		mdb, err := audit.ConnectMongo(ctx, cfg.mongoURI)
		if err != nil {
			closeAll()
			return nil, err
		}
		m, err := audit.NewMongo(ctx, mdb)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = m.Close(context.Background()) })
		sink = m
	}

	deps := service.Deps{Audit: sink}
	b := &backend{close: closeAll}
	var pub *broker.Broker
	// Without NATS the commands still run; players are just not notified.
	if n, err := natscli.Connect(cfg.natsURL, cfg.natsToken, "assassinctl"); err != nil {
		log.Warnf("NATS unavailable, notifications are skipped: %v", err)
	} else {
		closers = append(closers, n.Conn.Close)
		b.conn = n.Conn
		pub = broker.NewBroker(n.Conn, "")
		deps.Notifier, deps.Social = pub, pub
	}

	b.game = service.NewGameService(store.NewPostgres(pool), deps, service.Options{})
	if pub != nil {
		pub.Resolver = b.game
	}
	b.admin = service.NewAdminService(b.game, "")
	return b, nil
}

// restoreSchedule asks the running game service to rebuild its round timers from the database.
func (b *backend) restoreSchedule(timeout time.Duration) (comm.ControlReply, error) {
	if b.conn == nil {
		return comm.ControlReply{}, errors.New("not connected to NATS")
	}
	data, err := json.Marshal(comm.Control{
		Command:     comm.ControlRestoreSchedule,
		RequestedBy: "assassinctl",
		Time:        time.Now().UTC(),
	})
	if err != nil {
		return comm.ControlReply{}, err
	}
	msg, err := b.conn.Request(comm.SubjectControl, data, timeout)
	if err != nil {
		return comm.ControlReply{}, fmt.Errorf("no answer from the game service: %w", err)
	}
	var reply comm.ControlReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return comm.ControlReply{}, fmt.Errorf("invalid reply: %w", err)
	}
	return reply, nil
}
