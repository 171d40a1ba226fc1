package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// RunFunc executes one batch run on behalf of the scheduler.
type RunFunc func(ctx context.Context) error

// Service runs the batch on a cron schedule in daemon mode. Cycles never
// overlap: a tick that fires while a run is in flight is skipped.
type Service struct {
	cron   *cron.Cron
	runner RunFunc
	logger arbor.ILogger

	mu           sync.Mutex
	isProcessing bool
	running      bool
	lastRun      *time.Time
	lastError    string
}

func NewService(runner RunFunc, logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		runner: runner,
		logger: logger,
	}
}

// Start begins scheduled execution with the given cron expression.
func (s *Service) Start(cronExpr string) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if cronExpr == "" {
		cronExpr = "0 9 * * *" // Default: daily at 09:00
	}

	if _, err := s.cron.AddFunc(cronExpr, s.runScheduledCycle); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler. An in-flight cycle is allowed to finish.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active.
func (s *Service) IsRunning() bool {
	return s.running
}

// LastRun returns the completion time of the most recent cycle, if any, and
// the error it ended with.
func (s *Service) LastRun() (*time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}

// runScheduledCycle executes one batch with overlap protection and panic
// recovery so a bad cycle cannot crash the daemon.
func (s *Service) runScheduledCycle() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled cycle")
			s.mu.Lock()
			s.isProcessing = false
			s.lastError = fmt.Sprintf("panic: %v", r)
			s.mu.Unlock()
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.logger.Warn().Msg("Previous cycle still running, skipping this tick")
		s.mu.Unlock()
		return
	}
	s.isProcessing = true
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Msg("Starting scheduled batch cycle")

	err := s.runner(context.Background())

	completed := time.Now()
	s.mu.Lock()
	s.isProcessing = false
	s.lastRun = &completed
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("Scheduled batch cycle failed")
		return
	}
	s.logger.Info().
		Dur("duration", time.Since(started)).
		Msg("Scheduled batch cycle completed")
}
