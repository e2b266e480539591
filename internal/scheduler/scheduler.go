package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/skywatch/internal/logger"
)

// Scheduler runs one named job at a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	name      string
	interval  time.Duration
	job       func()
	log       *logger.Logger
}

// New creates a new Scheduler. Runs never overlap; a run that is still in
// progress when the next tick fires causes that tick to be skipped.
func New(name string, interval time.Duration, job func(), log *logger.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		name:      name,
		interval:  interval,
		job:       job,
		log:       log.Named("scheduler"),
	}
}

// Start schedules the job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler %s: interval must be positive, got %s", s.name, s.interval)
	}

	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		s.log.Debug("running job", logger.String("job", s.name))
		s.job()
	})
	if err != nil {
		return fmt.Errorf("scheduler %s: %w", s.name, err)
	}

	s.scheduler.StartAsync()
	s.log.Info("job scheduled",
		logger.String("job", s.name),
		logger.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
