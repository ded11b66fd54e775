package transcripts

import (
	"context"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/podcastindex"
	"github.com/podforge/digest-api/internal/services/youtube"
)

// Cache is the read side of the transcript store. Misses are reported as
// empty text with a nil error.
type Cache interface {
	Transcript(ctx context.Context, key models.EpisodeKey, mode models.Mode) (text, source string, err error)
}

// Directory exposes publisher transcripts collected by an external index.
type Directory interface {
	Enabled() bool
	EpisodesByPodcastTitle(ctx context.Context, title string, limit int) ([]podcastindex.Episode, error)
}

// VideoLocator resolves the episode to a matching video for the caption
// path.
type VideoLocator interface {
	FindEpisodeVideo(ctx context.Context, podcast *catalog.Podcast, ep *models.Episode) (*youtube.Video, error)
}

// CaptionFetcher retrieves a video's caption track as plain text.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID string) (string, error)
}
