package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/events"
)

const (
	pruneSpec   = "0 */1 * * * *" // every minute
	cleanupSpec = "0 0 3 * * *"   // daily at 03:00
)

type Enqueuer interface {
	Enqueue(ctx context.Context, values map[string]any) error
}

type Pruner interface {
	Prune(maxAge time.Duration) int
}

// Scheduler runs the API's periodic housekeeping: dropping stale in-memory
// rate limit windows and asking the worker to purge old audit rows.
type Scheduler struct {
	cron     *cron.Cron
	queue    Enqueuer
	pruner   Pruner
	pruneAge time.Duration
	log      zerolog.Logger
}

// NewScheduler accepts nil for either dependency; the matching job is
// then not registered.
func NewScheduler(queue Enqueuer, pruner Pruner, pruneAge time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		queue:    queue,
		pruner:   pruner,
		pruneAge: pruneAge,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.pruner != nil {
		if _, err := s.cron.AddFunc(pruneSpec, s.pruneLimiter); err != nil {
			return err
		}
	}
	if s.queue != nil {
		if _, err := s.cron.AddFunc(cleanupSpec, s.enqueueCleanup); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) pruneLimiter() {
	if removed := s.pruner.Prune(s.pruneAge); removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("pruned rate limit windows")
	}
}

func (s *Scheduler) enqueueCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(ctx, map[string]any{
		"type": events.TaskCleanup,
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue cleanup failed")
	}
}
