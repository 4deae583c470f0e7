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
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/assassin-services/configs"
	"github.com/avvvet/assassin-services/internal/audit"
	"github.com/avvvet/assassin-services/internal/gamesvc/broker"
	gamecfg "github.com/avvvet/assassin-services/internal/gamesvc/config"
	"github.com/avvvet/assassin-services/internal/gamesvc/db"
	"github.com/avvvet/assassin-services/internal/gamesvc/evidence"
	handlers "github.com/avvvet/assassin-services/internal/gamesvc/handlers"
	"github.com/avvvet/assassin-services/internal/gamesvc/scheduler"
	"github.com/avvvet/assassin-services/internal/gamesvc/service"
	"github.com/avvvet/assassin-services/internal/gamesvc/store"
	nats "github.com/avvvet/assassin-services/internal/nats"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := gamecfg.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	ctx := context.Background()

	// entity store: postgres when configured, memory otherwise
	var st store.Store
	if cfg.DBUrl != "" {
		dbpool, err := db.Connect(cfg.DBUrl)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer db.ClosePool()
		if err := db.Migrate(ctx, dbpool, cfg.VotingThreshold); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
		log.Printf("pg connection established successfully")
		st = store.NewPostgres(dbpool)
	} else {
		log.Warn("POSTGRES_URL not set, game data is kept in memory only")
		st = store.NewMemory(cfg.VotingThreshold)
	}

	// audit sink
	var sink service.AuditSink = audit.NewLog()
	if cfg.MongoURI != "" {
		mdb, err := audit.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		m, err := audit.NewMongo(ctx, mdb)
		if err != nil {
			log.Fatalf("Failed to prepare audit collection: %v", err)
		}
		defer m.Close(context.Background())
		sink = m
	}

	// Connect to NATS
	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_service_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	files, err := evidence.NewDiskStore(cfg.UploadFolder)
	if err != nil {
		log.Fatalf("Failed to prepare upload folder: %v", err)
	}

	b := broker.NewBroker(n.Conn, cfg.TranscodeQuality)
	sched := scheduler.New()
	gameService := service.NewGameService(st, service.Deps{
		Notifier:   b,
		Transcoder: b,
		Social:     b,
		Audit:      sink,
		Scheduler:  sched,
		Evidence:   files,
	}, service.Options{
		ClaimWindow:  cfg.ClaimWindow,
		RoundRule:    cfg.RoundRule,
		FFARoundRule: cfg.FFARoundRule,
	})
	b.Resolver = gameService
	adminService := service.NewAdminService(gameService, cfg.AdminPasswordHash)

	if err := gameService.RestoreSchedule(ctx); err != nil {
		log.Errorf("unable to restore round schedule: %v", err)
	}

	sub, err := b.SubscribeControl(n.Conn, gameService)
	if err != nil {
		log.Errorf("Error: unable to subscribe to control subject %v", err)
		os.Exit(1)
	}

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

	h := handlers.NewHandler(gameService, adminService, files, cfg.MaxUploadMB, cfg.Port)
	h.InitAuth(cfg.JWTSecret)
	h.SetRoutes(r)

	// uploads can take a while, so no write timeout beyond the read window
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
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

	sub.Unsubscribe()
	sched.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
