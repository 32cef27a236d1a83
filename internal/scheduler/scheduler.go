// Package scheduler runs recurring maintenance jobs on cron expressions.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one recurring maintenance task.
type Job struct {
	Name string
	Spec string // cron expression
	Run  func() error
}

// Scheduler runs registered jobs on their cron schedules. Job failures are
// logged and never stop the schedule.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates an empty scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a job to the schedule.
func (s *Scheduler) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Spec, func() {
		s.log.Debug().Str("job", job.Name).Msg("Running scheduled job")
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
			return
		}
		s.log.Debug().Str("job", job.Name).Msg("Scheduled job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("Scheduled job registered")
	return nil
}

// Start begins running the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the schedule. Running jobs finish; no new ones start.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
