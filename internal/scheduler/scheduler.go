package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 2 * time.Minute

// Job is a unit of periodic work.
type Job func(ctx context.Context) error

type Scheduler struct {
	ctx    context.Context
	logger *logrus.Logger
	cron   *cron.Cron
}

func NewScheduler(ctx context.Context, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		ctx:    ctx,
		logger: logger,
		cron:   cron.New(),
	}
}

// Add registers job under name on the cron spec, e.g. "*/5 * * * *" or
// "@every 1m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	return err
}

// Start the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// run executes job with a timeout derived from the scheduler context
func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	entry := s.logger.WithFields(logrus.Fields{"component": "scheduler", "job": name})
	if err := job(ctx); err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.WithField("duration", time.Since(start).String()).Debug("job finished")
}

// Stop the scheduler and wait for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
