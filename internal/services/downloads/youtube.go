package downloads

import (
	"context"
	"errors"
	"log"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/services/sources"
	"github.com/podforge/digest-api/internal/services/youtube"
)

// YouTubeStrategy resolves a matching video and extracts its audio track.
// Resolution prefers URLs already in hand (a video enclosure, a finder
// candidate) before paying for a search.
type YouTubeStrategy struct {
	searcher youtube.Searcher
	ytdlp    youtube.Downloader
}

func NewYouTubeStrategy(searcher youtube.Searcher, ytdlp youtube.Downloader) *YouTubeStrategy {
	return &YouTubeStrategy{searcher: searcher, ytdlp: ytdlp}
}

func (y *YouTubeStrategy) Name() string { return catalog.StrategyYouTube }

// CanHandle requires a working extractor binary; without it the chain
// skips straight past this strategy.
func (y *YouTubeStrategy) CanHandle(url string, podcast *catalog.Podcast) bool {
	return y.ytdlp != nil && y.ytdlp.Available()
}

func (y *YouTubeStrategy) Download(ctx context.Context, req Request) error {
	videoURL, err := y.resolveVideo(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("[INFO] downloads: youtube matched %q to %s", req.Episode.Title, videoURL)
	return y.ytdlp.DownloadAudio(ctx, videoURL, req.OutputPath)
}

func (y *YouTubeStrategy) resolveVideo(ctx context.Context, req Request) (string, error) {
	if youtube.IsVideoURL(req.Episode.AudioURL) {
		return req.Episode.AudioURL, nil
	}
	for _, c := range req.Candidates {
		if c.Origin == sources.OriginYouTube || youtube.IsVideoURL(c.URL) {
			return c.URL, nil
		}
	}
	if y.searcher == nil {
		return "", errors.New("no video URL in hand and no searcher configured")
	}
	video, err := y.searcher.FindEpisodeVideo(ctx, req.Podcast, req.Episode)
	if err != nil {
		return "", err
	}
	return video.URL, nil
}
