package main

import (
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/assassin-services/configs"
	"github.com/avvvet/assassin-services/internal/gamesvc/evidence"
	"github.com/avvvet/assassin-services/internal/media"
	natscli "github.com/avvvet/assassin-services/internal/nats"
)

const SERVICE_NAME = "media"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := media.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// the upload folder is shared with the game service
	files, err := evidence.NewDiskStore(cfg.UploadFolder)
	if err != nil {
		log.Fatalf("unable to open upload folder: %v", err)
	}

	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_service_"+instanceId)
	if err != nil {
		log.Fatalf("unable to connect to NATS: %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connected at %s", n.Url)

	w := &media.Worker{
		Files:     files,
		Processor: media.NewTranscoder(cfg.FFmpegPath),
		Quality:   cfg.Quality,
		Timeout:   cfg.Timeout,
	}
	sub, err := w.QueueSubscribe(n.Conn, cfg.QueueGroup)
	if err != nil {
		log.Fatalf("subscribe error: %v", err)
	}
	log.Infof("%s service waiting for transcode requests, quality %s", SERVICE_NAME, cfg.Quality)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	// stop taking new requests; unprocessed ones go to the other workers of the group
	if err := sub.Drain(); err != nil {
		log.Warnf("drain failed: %v", err)
	}
	log.Infof("%s service stopped", SERVICE_NAME)
}
