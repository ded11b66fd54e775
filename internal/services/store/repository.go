package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/podforge/digest-api/internal/models"
)

// episodeMergeColumns are the feed-metadata columns an upsert refreshes on
// conflict. Transcript and summary columns are deliberately absent.
var episodeMergeColumns = []string{
	"audio_url", "transcript_url", "description", "link", "guid",
	"duration", "apple_podcast_id", "episode_number", "guest_name",
	"file_extension", "updated_at",
}

type GormRepository struct {
	db *gorm.DB
}

// Ensure GormRepository implements Repository interface
var _ Repository = (*GormRepository)(nil)

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) UpsertEpisode(ctx context.Context, ep *models.Episode) (uint, error) {
	ep.Published = ep.Published.UTC()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "podcast"}, {Name: "title"}, {Name: "published"},
		},
		DoUpdates: clause.AssignmentColumns(episodeMergeColumns),
	}).Create(ep).Error
	if err != nil {
		return 0, fmt.Errorf("upserting episode: %w", err)
	}

	// On conflict SQLite reports a stale last_insert_rowid, so the id gorm
	// assigned cannot be trusted. Re-read the surviving row.
	existing, err := r.GetEpisode(ctx, ep.Key())
	if err != nil {
		return 0, fmt.Errorf("loading upserted episode: %w", err)
	}
	ep.ID = existing.ID
	ep.CreatedAt = existing.CreatedAt
	return ep.ID, nil
}

func (r *GormRepository) GetEpisode(ctx context.Context, key models.EpisodeKey) (*models.Episode, error) {
	var episode models.Episode
	err := r.db.WithContext(ctx).
		Where("podcast = ? AND title = ? AND published = ?", key.Podcast, key.Title, key.Published.UTC()).
		First(&episode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("episode %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting episode: %w", err)
	}
	return &episode, nil
}

func (r *GormRepository) RecentEpisodes(ctx context.Context, since time.Time, podcasts []string) ([]models.Episode, error) {
	query := r.db.WithContext(ctx).Where("published >= ?", since.UTC())
	if len(podcasts) > 0 {
		query = query.Where("podcast IN ?", podcasts)
	}

	var episodes []models.Episode
	if err := query.Order("published DESC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("listing recent episodes: %w", err)
	}
	return episodes, nil
}

func (r *GormRepository) EpisodesWithSummary(ctx context.Context, mode models.Mode) ([]models.Episode, error) {
	cond := "summary <> '' OR paragraph_summary <> ''"
	if mode == models.ModeTest {
		cond = "summary_test <> '' OR paragraph_summary_test <> ''"
	}

	var episodes []models.Episode
	if err := r.db.WithContext(ctx).Where(cond).Order("published DESC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("listing summarized episodes: %w", err)
	}
	return episodes, nil
}

func (r *GormRepository) GetTranscript(ctx context.Context, key models.EpisodeKey, mode models.Mode) (string, string, error) {
	episode, err := r.GetEpisode(ctx, key)
	if err != nil {
		return "", "", err
	}
	text, source := episode.TranscriptFor(mode)
	return text, source, nil
}

func (r *GormRepository) SaveTranscript(ctx context.Context, key models.EpisodeKey, mode models.Mode, text, source string) error {
	updates := map[string]interface{}{
		"transcript":        text,
		"transcript_source": source,
	}
	if mode == models.ModeTest {
		updates = map[string]interface{}{
			"transcript_test":        text,
			"transcript_source_test": source,
		}
	}
	return r.updateEpisode(ctx, key, "transcript", updates)
}

func (r *GormRepository) GetSummary(ctx context.Context, key models.EpisodeKey, mode models.Mode) (string, string, error) {
	episode, err := r.GetEpisode(ctx, key)
	if err != nil {
		return "", "", err
	}
	paragraph, long := episode.SummaryFor(mode)
	return paragraph, long, nil
}

func (r *GormRepository) SaveSummary(ctx context.Context, key models.EpisodeKey, mode models.Mode, paragraph, long string) error {
	updates := map[string]interface{}{
		"paragraph_summary": paragraph,
		"summary":           long,
	}
	if mode == models.ModeTest {
		updates = map[string]interface{}{
			"paragraph_summary_test": paragraph,
			"summary_test":           long,
		}
	}
	return r.updateEpisode(ctx, key, "summary", updates)
}

// updateEpisode applies column updates to one episode row by identity.
func (r *GormRepository) updateEpisode(ctx context.Context, key models.EpisodeKey, what string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Episode{}).
		Where("podcast = ? AND title = ? AND published = ?", key.Podcast, key.Title, key.Published.UTC()).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("saving %s: %w", what, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("saving %s for %s: %w", what, key, ErrNotFound)
	}
	return nil
}

func (r *GormRepository) RecordDownloadStrategy(ctx context.Context, podcast, strategy string) error {
	var history models.DownloadHistory
	err := r.db.WithContext(ctx).Where("podcast = ?", podcast).First(&history).Error

	switch {
	case err == nil:
		if !history.RecordSuccess(strategy) {
			return nil
		}
		if err := r.db.WithContext(ctx).Save(&history).Error; err != nil {
			return fmt.Errorf("updating download history: %w", err)
		}
		return nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		history = models.DownloadHistory{
			Podcast:    podcast,
			Strategies: models.StrategyList{strategy},
		}
		createErr := r.db.WithContext(ctx).Create(&history).Error
		if isUniqueViolation(createErr) {
			// Lost a create race; merge into the surviving row.
			return r.RecordDownloadStrategy(ctx, podcast, strategy)
		}
		if createErr != nil {
			return fmt.Errorf("creating download history: %w", createErr)
		}
		return nil

	default:
		return fmt.Errorf("loading download history: %w", err)
	}
}

func (r *GormRepository) LoadStrategyHistory(ctx context.Context, podcast string) ([]string, error) {
	var history models.DownloadHistory
	err := r.db.WithContext(ctx).Where("podcast = ?", podcast).First(&history).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("loading download history: %w", err)
	}
	return history.Strategies, nil
}

func (r *GormRepository) AppendFailure(ctx context.Context, f *models.Failure) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("recording failure: %w", err)
	}

	err := r.db.WithContext(ctx).Exec(
		"DELETE FROM failures WHERE id NOT IN (SELECT id FROM failures ORDER BY id DESC LIMIT ?)",
		models.MaxFailureRecords,
	).Error
	if err != nil {
		return fmt.Errorf("trimming failure retention: %w", err)
	}
	return nil
}

func (r *GormRepository) RecentFailures(ctx context.Context, limit int) ([]models.Failure, error) {
	if limit <= 0 {
		limit = 100
	}
	var failures []models.Failure
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&failures).Error; err != nil {
		return nil, fmt.Errorf("listing failures: %w", err)
	}
	return failures, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
