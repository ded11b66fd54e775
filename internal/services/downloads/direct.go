package downloads

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/services/youtube"
	"github.com/podforge/digest-api/pkg/download"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Agent strings rotated across direct fetches. CDNs that refuse one
// client identity often serve another.
var directUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) FxiOS/127.2 Mobile/15E148 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"AppleCoreMedia/1.0.0.21F90 (iPhone; U; CPU OS 17_5 like Mac OS X; en_us)",
	"Podcasts/1600.1 CFNetwork/1496.0.7 Darwin/23.5.0",
}

// DirectStrategy streams candidate URLs over plain HTTP. It walks the
// source finder's candidates in order and keeps the first URL that
// survives the progress-based timeout.
type DirectStrategy struct {
	downloaders []*download.Downloader
	next        atomic.Uint32
}

// NewDirectStrategy builds one downloader per rotated user agent on top
// of the shared options.
func NewDirectStrategy(opts download.Options) *DirectStrategy {
	downloaders := make([]*download.Downloader, len(directUserAgents))
	for i, ua := range directUserAgents {
		o := opts
		o.UserAgent = ua
		downloaders[i] = download.NewDownloader(o)
	}
	return &DirectStrategy{downloaders: downloaders}
}

func (d *DirectStrategy) Name() string { return catalog.StrategyDirect }

// CanHandle declines video pages and hosts that block plain clients.
func (d *DirectStrategy) CanHandle(url string, podcast *catalog.Podcast) bool {
	return !youtube.IsVideoURL(url) && !directBlocked(podcast, url)
}

func (d *DirectStrategy) Download(ctx context.Context, req Request) error {
	urls := d.fetchableURLs(req)
	if len(urls) == 0 {
		return errs.DownloadError(errs.KindNoMedia, "no direct-fetchable URL for episode", nil).
			WithEpisode(req.Podcast.Name, req.Episode.Title)
	}

	var lastErr error
	for _, u := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := d.pick().DownloadWithRetry(ctx, u, req.OutputPath); err != nil {
			log.Printf("[DEBUG] downloads: direct fetch of %s failed: %v", u, err)
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d direct URLs failed: %w", len(urls), lastErr)
}

// fetchableURLs filters candidates down to plain-HTTP targets, keeping
// the finder's ordering. The advertised enclosure backstops an empty
// candidate list.
func (d *DirectStrategy) fetchableURLs(req Request) []string {
	seen := make(map[string]bool, len(req.Candidates)+1)
	urls := make([]string, 0, len(req.Candidates)+1)
	add := func(u string) {
		if u == "" || seen[u] || youtube.IsVideoURL(u) || isCloudflareHost(u) {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}
	for _, c := range req.Candidates {
		add(c.URL)
	}
	add(req.Episode.AudioURL)
	return urls
}

func (d *DirectStrategy) pick() *download.Downloader {
	i := d.next.Add(1) - 1
	return d.downloaders[int(i)%len(d.downloaders)]
}
