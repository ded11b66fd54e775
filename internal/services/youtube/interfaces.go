package youtube

import (
	"context"
	"errors"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
)

var (
	// ErrNoMatch means no video scored above the match threshold.
	ErrNoMatch = errors.New("no matching video found")
	// ErrUnavailable means the downloader binary is not installed.
	ErrUnavailable = errors.New("yt-dlp not available")
)

// Video is one candidate on the video host. Published is zero when the
// candidate came from the scrape path, which exposes no dates.
type Video struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	ChannelID    string    `json:"channelId,omitempty"`
	ChannelTitle string    `json:"channelTitle,omitempty"`
	Published    time.Time `json:"published,omitempty"`
	Score        int       `json:"score"`
}

// Searcher resolves an episode to a matching video.
type Searcher interface {
	// FindEpisodeVideo returns the best-scoring video for the episode,
	// consulting the podcast's curated episode map before any search.
	FindEpisodeVideo(ctx context.Context, podcast *catalog.Podcast, ep *models.Episode) (*Video, error)
}

// Downloader fetches a video's audio track to a local file.
type Downloader interface {
	// Available reports whether the external extractor binary exists.
	Available() bool

	// DownloadAudio writes the video's audio as MP3 at outputPath.
	DownloadAudio(ctx context.Context, videoURL, outputPath string) error
}

// CaptionFetcher retrieves the caption track of a video as plain text.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID string) (string, error)
}
