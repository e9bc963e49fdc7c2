// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by RunByName for names that were never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the outcome of a job's most recent run.
type JobStatus struct {
	Name      string        `json:"name"`
	Schedule  string        `json:"schedule"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Runs      int           `json:"runs"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu       sync.Mutex
	jobs     map[string]Job
	statuses map[string]*JobStatus
}

// New creates a new scheduler. Schedules use six fields, seconds first.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		log:      log.With().Str("component", "scheduler").Logger(),
		jobs:     make(map[string]Job),
		statuses: make(map[string]*JobStatus),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 0 * * * *"        - Every hour
//   - "0 0 3 * * *"        - 3 AM daily
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.execute(job) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[job.Name()] = job
	s.statuses[job.Name()] = &JobStatus{Name: job.Name(), Schedule: schedule}
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// RunByName runs a registered job immediately.
func (s *Scheduler) RunByName(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	return s.RunNow(job)
}

// Statuses returns the state of every registered or manually run job, by name.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	start := time.Now()
	err := job.Run()
	elapsed := time.Since(start)

	s.record(job.Name(), start, elapsed, err)

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", elapsed).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Dur("duration", elapsed).Msg("Job completed")
	}
	return err
}

func (s *Scheduler) record(name string, start time.Time, elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[name]
	if !ok {
		st = &JobStatus{Name: name}
		s.statuses[name] = st
	}
	started := start.UTC()
	st.LastRun = &started
	st.Duration = elapsed
	st.Runs++
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
}
