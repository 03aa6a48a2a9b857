package reconcile

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrPassRunning is returned by RunNow when a pass is already in flight.
var ErrPassRunning = errors.New("reconciliation pass already running")

// startDelay postpones the first pass so collaborators finish wiring and the
// first pings have a chance to land.
const startDelay = 5 * time.Second

// Scheduler drives reconciliation passes on a fixed interval and on demand.
// Overlap policy is skip-if-running: each subscriber's critical section is
// independent, so a skipped tick loses nothing the next tick won't cover.
type Scheduler struct {
	rec      *Reconciler
	interval time.Duration
	running  sync.Mutex
}

func NewScheduler(rec *Reconciler, intervalSec int) *Scheduler {
	return &Scheduler{
		rec:      rec,
		interval: time.Duration(intervalSec) * time.Second,
	}
}

// Start blocks until ctx is cancelled, running one pass after a short delay
// and then on every tick. Call as a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(startDelay):
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[scheduler] started (interval=%s)", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[scheduler] stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	n, err := s.RunNow(ctx)
	if errors.Is(err, ErrPassRunning) {
		log.Println("[scheduler] previous pass still running, skipping tick")
		return
	}
	if err != nil {
		log.Printf("[scheduler] pass failed: %v", err)
		return
	}
	log.Printf("[scheduler] pass complete, %d subscribers evaluated", n)
}

// RunNow runs one full pass synchronously and reports how many subscribers
// were evaluated. Returns ErrPassRunning if a pass is already in flight.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	if !s.running.TryLock() {
		return 0, ErrPassRunning
	}
	defer s.running.Unlock()
	return s.rec.EvaluateAll(ctx)
}
