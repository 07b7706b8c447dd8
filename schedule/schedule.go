// Package schedule runs the periodic digest and reminder jobs.
package schedule

import (
	"context"
	"time"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

var log = common.Log.WithField("package", "schedule")

// Job is a unit of scheduled work. It receives the time at which it was triggered in the scheduler's time zone.
type Job func(ctx context.Context, now time.Time)

// Scheduler triggers jobs on cron schedules. A job never runs concurrently with itself; a trigger that fires
// while the previous run is still in progress is skipped.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	clock    common.Clock
	ctx      context.Context
	cancel   context.CancelFunc
	jobs     map[string]Job
}

// New creates a scheduler that interprets schedules in the named time zone. An empty name means UTC.
func New(timezone string, clock common.Clock) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown time zone `%s`", timezone)
	}
	if clock == nil {
		clock = common.SystemClock
	}

	logger := cron.PrintfLogger(log)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		location: location,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]Job),
	}, nil
}

// Location returns the scheduler's time zone.
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// AddJob registers a job under a standard five-field cron specification.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	if _, exists := s.jobs[name]; exists {
		return errors.Errorf("a job named `%s` is already scheduled", name)
	}

	_, err := s.cron.AddFunc(spec, func() { s.Run(name) })
	if err != nil {
		return errors.Wrapf(err, "invalid schedule `%s` for job `%s`", spec, name)
	}
	s.jobs[name] = job

	log.WithField("job", name).Infof("scheduled with `%s`", spec)
	return nil
}

// Run runs a registered job immediately, in the calling goroutine.
func (s *Scheduler) Run(name string) bool {
	job, ok := s.jobs[name]
	if !ok {
		return false
	}

	now := s.clock().In(s.location)
	logger := log.WithField("job", name)
	logger.Info("job started")
	start := time.Now()
	job(s.ctx, now)
	logger.Infof("job finished in %s", time.Since(start))
	return true
}

// Start begins triggering jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops triggering jobs and waits for running jobs to finish, or for ctx to expire. Jobs that are still
// running when ctx expires see their own context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return errors.Wrap(ctx.Err(), "scheduled jobs did not finish in time")
	}
}
