package audiocache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/podforge/digest-api/internal/models"
)

// ErrEntryNotFound is returned when no index entry exists for a path.
var ErrEntryNotFound = errors.New("audio cache entry not found")

// RepositoryImpl implements the Repository interface using GORM
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new audio cache repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// Upsert creates or refreshes an entry keyed by path. The transcribed
// flag survives re-recording: transcripts are keyed by episode, not file,
// so a re-download does not invalidate one.
func (r *RepositoryImpl) Upsert(ctx context.Context, entry *models.AudioCacheEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"podcast", "title", "published", "mode",
			"size_bytes", "strategy", "last_used_at", "updated_at",
		}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}

	// SQLite reports a stale rowid on conflict; re-read the surviving row.
	existing, err := r.GetByPath(ctx, entry.Path)
	if err != nil {
		return fmt.Errorf("loading upserted cache entry: %w", err)
	}
	entry.ID = existing.ID
	entry.CreatedAt = existing.CreatedAt
	entry.Transcribed = existing.Transcribed
	return nil
}

func (r *RepositoryImpl) GetByPath(ctx context.Context, path string) (*models.AudioCacheEntry, error) {
	var entry models.AudioCacheEntry
	err := r.db.WithContext(ctx).Where("path = ?", path).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("getting cache entry: %w", err)
	}
	return &entry, nil
}

func (r *RepositoryImpl) SetTranscribed(ctx context.Context, path string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AudioCacheEntry{}).
		Where("path = ?", path).
		Updates(map[string]interface{}{
			"transcribed": true,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("marking entry transcribed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *RepositoryImpl) SetLastUsed(ctx context.Context, path string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AudioCacheEntry{}).
		Where("path = ?", path).
		Updates(map[string]interface{}{
			"last_used_at": time.Now(),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("updating last used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *RepositoryImpl) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.AudioCacheEntry{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing cache size: %w", err)
	}
	return total, nil
}

// OldestTranscribed returns eviction candidates in eviction order.
func (r *RepositoryImpl) OldestTranscribed(ctx context.Context, limit int) ([]models.AudioCacheEntry, error) {
	var entries []models.AudioCacheEntry
	err := r.db.WithContext(ctx).
		Where("transcribed = ?", true).
		Order("last_used_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("listing eviction candidates: %w", err)
	}
	return entries, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.AudioCacheEntry{}, id).Error
}

func (r *RepositoryImpl) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := r.db.WithContext(ctx).
		Model(&models.AudioCacheEntry{}).
		Count(&stats.TotalEntries).Error; err != nil {
		return nil, fmt.Errorf("counting cache entries: %w", err)
	}

	total, err := r.TotalSize(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalSizeBytes = total

	if err := r.db.WithContext(ctx).
		Model(&models.AudioCacheEntry{}).
		Where("transcribed = ?", true).
		Count(&stats.TranscribedCount).Error; err != nil {
		return nil, fmt.Errorf("counting transcribed entries: %w", err)
	}

	return stats, nil
}
