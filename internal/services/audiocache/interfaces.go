package audiocache

import (
	"context"

	"github.com/podforge/digest-api/internal/models"
)

// Service indexes downloaded audio artifacts. The orchestrator records an
// entry after each successful download, flips it to transcribed once ASR
// has consumed the file, and asks EnforceCap to bring the audio directory
// back under the configured size. Eviction only ever touches transcribed
// files, oldest first, so audio that still owes a transcript survives.
type Service interface {
	// Record indexes a freshly downloaded artifact. Recording the same
	// path again refreshes size and last-used time.
	Record(ctx context.Context, episode *models.Episode, mode models.Mode, path, strategy string) (*models.AudioCacheEntry, error)

	// Lookup returns the entry for an on-disk path, or ErrEntryNotFound.
	Lookup(ctx context.Context, path string) (*models.AudioCacheEntry, error)

	// Touch refreshes the last-used timestamp when a cached file is reused.
	Touch(ctx context.Context, path string) error

	// MarkTranscribed flags the artifact as safe to evict.
	MarkTranscribed(ctx context.Context, path string) error

	// EnforceCap evicts oldest transcribed artifacts until the indexed
	// total is at or under maxBytes. maxBytes <= 0 disables eviction.
	EnforceCap(ctx context.Context, maxBytes int64) (evicted int, freed int64, err error)

	// Stats reports index totals for run reports.
	Stats(ctx context.Context) (*Stats, error)
}

// Repository defines the interface for audio cache index persistence
type Repository interface {
	Upsert(ctx context.Context, entry *models.AudioCacheEntry) error
	GetByPath(ctx context.Context, path string) (*models.AudioCacheEntry, error)
	SetTranscribed(ctx context.Context, path string) error
	SetLastUsed(ctx context.Context, path string) error
	TotalSize(ctx context.Context) (int64, error)
	OldestTranscribed(ctx context.Context, limit int) ([]models.AudioCacheEntry, error)
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context) (*Stats, error)
}

// Stats summarizes the audio cache index
type Stats struct {
	TotalEntries     int64 `json:"total_entries"`
	TotalSizeBytes   int64 `json:"total_size_bytes"`
	TranscribedCount int64 `json:"transcribed_count"`
}
