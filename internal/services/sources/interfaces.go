package sources

import (
	"context"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/youtube"
)

// Candidate origins, in the order the finder can emit them.
const (
	OriginApple   = "apple"
	OriginRewrite = "rewrite"
	OriginYouTube = "youtube"
	OriginScrape  = "scrape"
	OriginCDN     = "cdn"
	OriginRSS     = "rss"
)

// Candidate is one fetchable audio URL with the step that produced it.
// Origin carries a suffix for host rewrites ("rewrite:megaphone").
type Candidate struct {
	URL    string `json:"url"`
	Origin string `json:"origin"`
}

// Finder yields ordered, de-duplicated audio candidates for an episode.
// It never downloads audio; probing is HEAD or 1-byte ranged GET only.
type Finder interface {
	Find(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode) []Candidate
}

// AppleResolver is the slice of the iTunes client the finder needs.
type AppleResolver interface {
	LookupEpisodes(ctx context.Context, appleID int64, limit int) (*itunes.PodcastWithEpisodes, error)
}

// VideoLocator resolves an episode to a video-host URL.
type VideoLocator interface {
	FindEpisodeVideo(ctx context.Context, podcast *catalog.Podcast, ep *models.Episode) (*youtube.Video, error)
}
