package scheduler

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Scheduler owns the round timers: for each round id at most one start job and one end job.
type Scheduler struct {
	mu    sync.Mutex
	jobs  map[int]*handle
	now   func() time.Time
	after AfterFunc
}

type handle struct {
	start     Timer
	end       Timer
	pending   int
	cancelled bool
}

func New() *Scheduler {
	return NewWithClock(time.Now, func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) })
}

func NewWithClock(now func() time.Time, after AfterFunc) *Scheduler {
	return &Scheduler{
		jobs:  make(map[int]*handle),
		now:   now,
		after: after,
	}
}

// Replace cancels whatever is pending for round and arms onStart at start and onEnd at end.
// Times that are not in the future are skipped.
func (s *Scheduler) Replace(round int, start, end time.Time, onStart, onEnd func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(round)

	h := &handle{}
	now := s.now()
	if start.After(now) && onStart != nil {
		h.pending++
		h.start = s.after(start.Sub(now), s.wrap(round, h, onStart))
	}
	if end.After(now) && onEnd != nil {
		h.pending++
		h.end = s.after(end.Sub(now), s.wrap(round, h, onEnd))
	}
	if h.pending == 0 {
		log.Infof("round %d: schedule %s..%s is in the past, nothing armed", round, start, end)
		return
	}
	s.jobs[round] = h
	log.Infof("round %d: %d job(s) armed", round, h.pending)
}

func (s *Scheduler) wrap(round int, h *handle, f func()) func() {
	return func() {
		s.mu.Lock()
		if h.cancelled {
			s.mu.Unlock()
			return
		}
		h.pending--
		if h.pending == 0 && s.jobs[round] == h {
			delete(s.jobs, round)
		}
		s.mu.Unlock()

		f()
	}
}

func (s *Scheduler) Cancel(round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(round)
}

func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for round := range s.jobs {
		s.cancelLocked(round)
	}
}

func (s *Scheduler) cancelLocked(round int) {
	h, ok := s.jobs[round]
	if !ok {
		return
	}
	h.cancelled = true
	if h.start != nil {
		h.start.Stop()
	}
	if h.end != nil {
		h.end.Stop()
	}
	delete(s.jobs, round)
	log.Infof("round %d: pending jobs cancelled", round)
}

// Pending lists the rounds that still have armed jobs.
func (s *Scheduler) Pending() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds := make([]int, 0, len(s.jobs))
	for round := range s.jobs {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)
	return rounds
}
