package audiocache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/podforge/digest-api/internal/models"
)

// evictBatchSize bounds each candidate query during eviction.
const evictBatchSize = 20

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	repository Repository
}

// NewService creates a new audio cache service
func NewService(repository Repository) Service {
	return &ServiceImpl{repository: repository}
}

func (s *ServiceImpl) Record(ctx context.Context, episode *models.Episode, mode models.Mode, path, strategy string) (*models.AudioCacheEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat audio artifact: %w", err)
	}

	entry := &models.AudioCacheEntry{
		Podcast:    episode.Podcast,
		Title:      episode.Title,
		Published:  episode.Published,
		Mode:       mode,
		Path:       path,
		SizeBytes:  info.Size(),
		Strategy:   strategy,
		LastUsedAt: time.Now(),
	}
	if err := s.repository.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	log.Printf("[DEBUG] audiocache: recorded %s (%d bytes, %s)", filepath.Base(path), entry.SizeBytes, strategy)
	return entry, nil
}

func (s *ServiceImpl) Lookup(ctx context.Context, path string) (*models.AudioCacheEntry, error) {
	return s.repository.GetByPath(ctx, path)
}

func (s *ServiceImpl) Touch(ctx context.Context, path string) error {
	return s.repository.SetLastUsed(ctx, path)
}

func (s *ServiceImpl) MarkTranscribed(ctx context.Context, path string) error {
	if err := s.repository.SetTranscribed(ctx, path); err != nil {
		return err
	}
	log.Printf("[DEBUG] audiocache: %s marked transcribed", filepath.Base(path))
	return nil
}

// EnforceCap deletes oldest transcribed artifacts until the indexed total
// fits under maxBytes. Untranscribed audio is never deleted; if only such
// files remain the cap stays exceeded and a warning is logged.
func (s *ServiceImpl) EnforceCap(ctx context.Context, maxBytes int64) (int, int64, error) {
	if maxBytes <= 0 {
		return 0, 0, nil
	}

	total, err := s.repository.TotalSize(ctx)
	if err != nil {
		return 0, 0, err
	}
	if total <= maxBytes {
		return 0, 0, nil
	}

	var (
		evicted int
		freed   int64
	)
	for total > maxBytes {
		batch, err := s.repository.OldestTranscribed(ctx, evictBatchSize)
		if err != nil {
			return evicted, freed, err
		}
		if len(batch) == 0 {
			log.Printf("[WARN] audiocache: %d bytes over cap but nothing transcribed left to evict", total-maxBytes)
			break
		}

		progressed := false
		for _, entry := range batch {
			if total <= maxBytes {
				break
			}
			if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
				log.Printf("[WARN] audiocache: removing %s: %v", entry.Path, err)
				continue
			}
			if err := s.repository.Delete(ctx, entry.ID); err != nil {
				return evicted, freed, err
			}
			total -= entry.SizeBytes
			freed += entry.SizeBytes
			evicted++
			progressed = true
			log.Printf("[DEBUG] audiocache: evicted %s (%d bytes)", filepath.Base(entry.Path), entry.SizeBytes)
		}
		if !progressed {
			log.Printf("[WARN] audiocache: eviction stalled with %d bytes over cap", total-maxBytes)
			break
		}
	}

	if evicted > 0 {
		log.Printf("[INFO] audiocache: evicted %d file(s), freed %d bytes", evicted, freed)
	}
	return evicted, freed, nil
}

func (s *ServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	return s.repository.Stats(ctx)
}
