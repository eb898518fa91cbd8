// Package scheduler runs the edit/upload pipeline on a cron schedule, for
// setups where the console power-off is not detectable.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/splat-replay/splat-replay/internal/models"
	"github.com/splat-replay/splat-replay/internal/storage"
)

// Starter launches one edit/upload run; models.KindConflict means a run is
// already in flight.
type Starter interface {
	StartEditUpload(ctx context.Context, trigger string) error
}

// Scheduler triggers scheduled pipeline runs.
type Scheduler struct {
	schedule string
	repo     *storage.Repository
	starter  Starter
	logger   *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// New creates a scheduler for the given cron expression. An empty expression
// disables scheduling.
func New(schedule string, repo *storage.Repository, starter Starter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		repo:     repo,
		starter:  starter,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// ValidateCron checks a standard five-field cron expression.
func ValidateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(expr)
	return err
}

// Start begins the cron loop. It is a no-op when no schedule is configured.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule == "" {
		s.logger.Debug("no schedule configured")
		return nil
	}
	if err := ValidateCron(s.schedule); err != nil {
		return models.WrapError(models.KindConfiguration,
			fmt.Sprintf("invalid process schedule %q", s.schedule), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.fire(runCtx) }); err != nil {
		cancel()
		return models.WrapError(models.KindConfiguration,
			fmt.Sprintf("invalid process schedule %q", s.schedule), err)
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.logger.Info("scheduler started", slog.String("schedule", s.schedule))
	return nil
}

// Stop halts the cron loop and waits for a scheduled run in flight to notice
// cancellation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// fire runs one scheduled pass. Nothing pending and an already-running
// pipeline are both quiet skips.
func (s *Scheduler) fire(ctx context.Context) {
	pending, err := s.hasPendingWork()
	if err != nil {
		s.logger.Error("checking pending work", slog.Any("error", err))
		return
	}
	if !pending {
		s.logger.Debug("scheduled run skipped, nothing to process")
		return
	}

	if err := s.starter.StartEditUpload(ctx, string(models.TriggerSchedule)); err != nil {
		if models.KindOf(err) == models.KindConflict {
			s.logger.Debug("scheduled run skipped, pipeline already running")
			return
		}
		s.logger.Error("scheduled edit/upload failed", slog.Any("error", err))
	}
}

func (s *Scheduler) hasPendingWork() (bool, error) {
	recordings, err := s.repo.ListRecordings()
	if err != nil {
		return false, err
	}
	if len(recordings) > 0 {
		return true, nil
	}
	edited, err := s.repo.ListEdited()
	if err != nil {
		return false, err
	}
	return len(edited) > 0, nil
}
