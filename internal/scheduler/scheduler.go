// Package scheduler re-runs scenario simulations on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/scenario-risk/internal/config"
	applogger "github.com/yourusername/scenario-risk/internal/logger"
	"github.com/yourusername/scenario-risk/internal/metrics"
	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/service"
)

const defaultJobTimeout = time.Hour

// Simulator is the part of the simulation service a job needs
type Simulator interface {
	LoadScenario(ctx context.Context, source string) (*models.ScenarioConfig, error)
	Simulate(ctx context.Context, req service.Request) (*service.Response, error)
}

// Scheduler manages scheduled simulation jobs
type Scheduler struct {
	cron       *cron.Cron
	simulator  Simulator
	logger     *logrus.Logger
	audit      *applogger.AuditLogger
	mu         sync.RWMutex
	isRunning  bool
	jobIDs     map[string]cron.EntryID
	jobTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(simulator Simulator, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		simulator:  simulator,
		logger:     logger,
		audit:      applogger.NewAuditLogger(logger),
		jobIDs:     make(map[string]cron.EntryID),
		jobTimeout: defaultJobTimeout,
	}
}

// SetJobTimeout bounds a single job execution
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.jobTimeout = d
	}
}

// ScheduleJob registers a simulation job
func (s *Scheduler) ScheduleJob(job config.ScheduledJobConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, exists := s.jobIDs[job.Name]; exists {
		return fmt.Errorf("job %q is already scheduled", job.Name)
	}

	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		s.mu.RLock()
		timeout := s.jobTimeout
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.RunJob(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs[job.Name] = entryID
	s.logger.WithFields(logrus.Fields{
		"job":      job.Name,
		"schedule": job.Schedule,
		"source":   job.Source,
	}).Info("Scheduled simulation job")

	return nil
}

// ScheduleJobs registers every configured job
func (s *Scheduler) ScheduleJobs(jobs []config.ScheduledJobConfig) error {
	for _, job := range jobs {
		if err := s.ScheduleJob(job); err != nil {
			return err
		}
	}
	return nil
}

// RunJob loads the job's scenario and simulates it once
func (s *Scheduler) RunJob(ctx context.Context, job config.ScheduledJobConfig) error {
	entry := s.logger.WithFields(logrus.Fields{"job": job.Name, "source": job.Source})
	entry.Info("Starting scheduled simulation")

	err := s.runJob(ctx, job)
	status := "success"
	if err != nil {
		status = "failure"
		entry.WithError(err).Error("Scheduled simulation failed")
	}
	metrics.RecordScheduledRun(job.Name, status)
	s.audit.LogScheduledRun(job.Name, job.Source, job.Seed, err == nil)
	return err
}

func (s *Scheduler) runJob(ctx context.Context, job config.ScheduledJobConfig) error {
	scenario, err := s.simulator.LoadScenario(ctx, job.Source)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	seed := job.Seed
	resp, err := s.simulator.Simulate(ctx, service.Request{Scenario: scenario, Seed: &seed, Persist: job.Persist})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"job":      job.Name,
		"runs":     resp.Result.RunCount,
		"mean":     resp.Result.Mean,
		"p5":       resp.Result.Percentiles.P5,
		"p95":      resp.Result.Percentiles.P95,
		"cached":   resp.Cached,
		"resultId": resp.ResultID,
	}).Info("Scheduled simulation completed")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	// Running jobs take the read lock, so wait outside the lock
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled job run
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	var next time.Time
	for _, id := range s.jobIDs {
		entry := s.cron.Entry(id)
		if entry.Valid() && (next.IsZero() || entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}

// Jobs returns the names of scheduled jobs
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobIDs))
	for name := range s.jobIDs {
		names = append(names, name)
	}
	return names
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}
	id, ok := s.jobIDs[name]
	if !ok {
		return fmt.Errorf("job %q is not scheduled", name)
	}

	s.cron.Remove(id)
	delete(s.jobIDs, name)
	return nil
}
