package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/assassin-services/configs"
	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/avvvet/assassin-services/internal/nats"

	"github.com/avvvet/assassin-services/internal/socketsvc/broker"
	socketcfg "github.com/avvvet/assassin-services/internal/socketsvc/config"
	"github.com/avvvet/assassin-services/internal/socketsvc/handlers"
	"github.com/avvvet/assassin-services/internal/socketsvc/routes"
	"github.com/avvvet/assassin-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := socketcfg.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_service_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	s := ws.NewWs()
	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
	h := handlers.NewHandler(s, tokenAuth, cfg.CORSOrigins, cfg.Port)
	routes.SetRoutes(r, h)

	// every instance gets every message and serves its own sockets
	b := broker.NewBroker(n.Conn, s)
	var subs []interface{ Unsubscribe() error }
	for _, subject := range []string{comm.SubjectNotify, comm.SubjectSocial} {
		sub, err := b.Subscribe(subject)
		if err != nil {
			log.Errorf("Error: unable to subscribe to %s %v", subject, err)
			os.Exit(1)
		}
		subs = append(subs, sub)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
