// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"ChainPull/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler manages background jobs. Overlapping runs of the same job are
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler evaluating five-field specs in loc.
func New(log *logger.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:    log.With(logger.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job under spec, e.g. "*/15 9-16 * * MON-FRI".
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.log.Info("job registered", logger.String("job", job.Name()), logger.String("schedule", spec))
	return nil
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	s.log.Debug("running job", logger.String("job", job.Name()))
	if err := job.Run(s.ctx); err != nil {
		s.log.Error("job failed", logger.String("job", job.Name()), logger.Error(err))
		return
	}
	s.log.Debug("job completed", logger.String("job", job.Name()), logger.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
