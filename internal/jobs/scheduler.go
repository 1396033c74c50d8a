package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"geodrop/internal/config"
	"geodrop/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, fields map[string]any) (string, error)
}

// Scheduler only enqueues; the worker runs the actual sweep so several api
// replicas never reap concurrently inside the request path.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	cfg   config.ReaperConfig
	log   zerolog.Logger
}

func NewScheduler(q Enqueuer, cfg config.ReaperConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: q,
		cfg:   cfg,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || !s.cfg.Enabled {
		s.log.Info().Msg("reaper schedule disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.enqueueReap); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Msg("reaper scheduled")
	return nil
}

// Stop halts the cron and returns a context that is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueReap() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.queue.Enqueue(ctx, queue.TaskReap, nil); err != nil {
		s.log.Error().Err(err).Msg("enqueue reap failed")
	}
}
