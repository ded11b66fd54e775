package runs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/podforge/digest-api/internal/models"
)

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Begin(ctx context.Context, mode models.Mode, total int) (*models.Run, error) {
	if active, err := s.repo.GetActiveRun(ctx); err == nil && active != nil {
		return nil, fmt.Errorf("run %d is still running: %w", active.ID, ErrRunActive)
	} else if err != nil && !errors.Is(err, ErrRunNotFound) {
		return nil, err
	}

	run := &models.Run{
		Status:    models.RunStatusRunning,
		Mode:      mode,
		Total:     total,
		StartedAt: time.Now(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	log.Printf("[INFO] Run %d started: %d episode(s), mode %s", run.ID, total, mode)
	return run, nil
}

func (s *service) Get(ctx context.Context, runID uint) (*models.Run, error) {
	return s.repo.GetRun(ctx, runID)
}

func (s *service) Active(ctx context.Context) (*models.Run, error) {
	return s.repo.GetActiveRun(ctx)
}

func (s *service) List(ctx context.Context, limit int) ([]models.Run, error) {
	return s.repo.ListRuns(ctx, limit)
}

func (s *service) RecordEpisode(ctx context.Context, runID uint, failed bool) error {
	completed, failedDelta := 1, 0
	if failed {
		completed, failedDelta = 0, 1
	}
	if err := s.repo.IncrementCounters(ctx, runID, completed, failedDelta); err != nil {
		return fmt.Errorf("recording episode result: %w", err)
	}
	return nil
}

func (s *service) Finish(ctx context.Context, runID uint, status models.RunStatus, stats models.RunStats, errMsg string) error {
	if err := s.repo.FinishRun(ctx, runID, status, stats, errMsg); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	log.Printf("[INFO] Run %d finished: %s", runID, status)
	return nil
}

func (s *service) CleanupOldRuns(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteOldRuns(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old runs: %w", err)
	}
	if deleted > 0 {
		log.Printf("[DEBUG] Deleted %d old run(s) (older than %d days)", deleted, retentionDays)
	}
	return deleted, nil
}
