package media

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/assassin-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Locator maps an evidence reference to a local file.
type Locator interface {
	Path(ref string) (string, error)
}

type Processor interface {
	Process(ctx context.Context, path, quality string) error
}

// Worker consumes transcode requests published by the game service.
type Worker struct {
	Files     Locator
	Processor Processor
	Quality   string
	Timeout   time.Duration
}

func (w *Worker) Handle(data []byte) error {
	var req comm.TranscodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid transcode request: %w", err)
	}
	path, err := w.Files.Path(req.EvidenceRef)
	if err != nil {
		return fmt.Errorf("evidence %q: %w", req.EvidenceRef, err)
	}

	quality := req.Quality
	if quality == "" {
		quality = w.Quality
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return w.Processor.Process(ctx, path, quality)
}

// QueueSubscribe shares the transcode work among every media service instance in the group.
func (w *Worker) QueueSubscribe(conn *nats.Conn, queueGroup string) (*nats.Subscription, error) {
	return conn.QueueSubscribe(comm.SubjectTranscode, queueGroup, func(msg *nats.Msg) {
		if err := w.Handle(msg.Data); err != nil {
			log.Errorf("transcode failed: %v", err)
		}
	})
}
