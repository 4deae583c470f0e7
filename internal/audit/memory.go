package audit

import (
	"context"
	"sync"

	"github.com/avvvet/assassin-services/internal/gamesvc/models"
	log "github.com/sirupsen/logrus"
)

// Memory keeps the latest entries in process, up to limit.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []models.ActionLog
}

func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

func (m *Memory) Append(ctx context.Context, entry models.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (m *Memory) Recent(ctx context.Context, n int) ([]models.ActionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]models.ActionLog, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Entries returns every kept entry, oldest first.
func (m *Memory) Entries() []models.ActionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActionLog(nil), m.entries...)
}

// Log writes entries to the service log and remembers the latest ones for Recent.
type Log struct {
	*Memory
}

func NewLog() *Log {
	return &Log{Memory: NewMemory(100)}
}

func (l *Log) Append(ctx context.Context, entry models.ActionLog) error {
	log.WithFields(log.Fields{
		"action_type": entry.Type,
		"actor":       entry.Actor,
	}).Info(entry.Description)
	return l.Memory.Append(ctx, entry)
}
