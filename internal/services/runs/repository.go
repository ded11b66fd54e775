package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/podforge/digest-api/internal/models"
)

// Repository errors
var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunActive   = errors.New("another run is already active")
)

// Repository defines the interface for run persistence
type Repository interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uint) (*models.Run, error)
	GetActiveRun(ctx context.Context) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	IncrementCounters(ctx context.Context, runID uint, completed, failed int) error
	FinishRun(ctx context.Context, runID uint, status models.RunStatus, stats models.RunStats, errMsg string) error
	DeleteOldRuns(ctx context.Context, olderThan time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new run repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRun(ctx context.Context, run *models.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) GetRun(ctx context.Context, id uint) (*models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).First(&run, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return &run, nil
}

// GetActiveRun returns the newest run still in the running state.
func (r *repository) GetActiveRun(ctx context.Context) (*models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).
		Where("status = ?", models.RunStatusRunning).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("getting active run: %w", err)
	}
	return &run, nil
}

func (r *repository) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	var list []models.Run
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return list, nil
}

// IncrementCounters bumps the completed/failed counters atomically. Only
// running runs are mutated, so late episode results after a cancel do not
// rewrite history.
func (r *repository) IncrementCounters(ctx context.Context, runID uint, completed, failed int) error {
	updates := map[string]interface{}{}
	if completed != 0 {
		updates["completed"] = gorm.Expr("completed + ?", completed)
	}
	if failed != 0 {
		updates["failed"] = gorm.Expr("failed + ?", failed)
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("id = ? AND status = ?", runID, models.RunStatusRunning).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("updating run counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing run from one that already finished.
		if _, err := r.GetRun(ctx, runID); err != nil {
			return err
		}
	}
	return nil
}

// FinishRun moves a running run to a terminal status. Already-terminal
// runs are left untouched.
func (r *repository) FinishRun(ctx context.Context, runID uint, status models.RunStatus, stats models.RunStats, errMsg string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": &now,
		"error":       errMsg,
	}
	if stats != nil {
		updates["stats"] = stats
	}

	result := r.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("id = ? AND status = ?", runID, models.RunStatusRunning).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("finishing run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetRun(ctx, runID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) DeleteOldRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Where("status IN ?", []models.RunStatus{
			models.RunStatusCompleted,
			models.RunStatusCancelled,
			models.RunStatusFailed,
		}).
		Delete(&models.Run{})

	if result.Error != nil {
		return 0, fmt.Errorf("deleting old runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
