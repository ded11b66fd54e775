package episodes

import (
	"context"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/podcastindex"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Source tags order merge preference: explicit RSS feeds beat the Apple
// lookup, which beats directory search results.
const (
	SourceRSS       = "rss"
	SourceApple     = "apple"
	SourceDirectory = "directory"
)

// sourceRank maps a tag to its merge precedence (lower wins).
func sourceRank(tag string) int {
	switch tag {
	case SourceRSS:
		return 0
	case SourceApple:
		return 1
	default:
		return 2
	}
}

// SourcedEpisode pairs an extracted episode with the source it came from,
// so deduplication can honor the preference order.
type SourcedEpisode struct {
	Episode models.Episode
	Source  string
}

// ProgressFunc reports per-podcast fetch progress to the UI boundary.
type ProgressFunc func(podcast string, index, total int)

// Fetcher produces de-duplicated recent episodes for catalog podcasts.
type Fetcher interface {
	// FetchRecent returns episodes published within the window for every
	// selected podcast. Single-source failures are recorded, never fatal.
	FetchRecent(ctx context.Context, podcasts []catalog.Podcast, daysBack int, progress ProgressFunc) ([]models.Episode, error)

	// FetchPodcast returns the de-duplicated window for one podcast.
	FetchPodcast(ctx context.Context, podcast *catalog.Podcast, since time.Time) ([]models.Episode, error)
}

// AppleDirectory is the slice of the iTunes client the fetcher uses.
type AppleDirectory interface {
	LookupEpisodes(ctx context.Context, appleID int64, limit int) (*itunes.PodcastWithEpisodes, error)
}

// PodcastDirectory is the slice of the Podcast Index client the fetcher
// uses. Enabled is false when credentials are absent.
type PodcastDirectory interface {
	Enabled() bool
	EpisodesByPodcastTitle(ctx context.Context, title string, limit int) ([]podcastindex.Episode, error)
}

// FailureRecorder receives the non-fatal errors the fetcher swallows.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, component string, key models.EpisodeKey, kind errs.Kind, message string, retries int, mode models.Mode)
}
