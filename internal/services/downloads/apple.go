package downloads

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/sources"
	"github.com/podforge/digest-api/pkg/download"
	"github.com/podforge/digest-api/pkg/titles"
)

// AppleResolver resolves Apple episode enclosures at download time.
type AppleResolver interface {
	LookupEpisodes(ctx context.Context, appleID int64, limit int) (*itunes.PodcastWithEpisodes, error)
}

const (
	appleLookupLimit = 50
	appleMinOverlap  = 0.6
	appleDateTol     = 24 * time.Hour
)

// AppleStrategy re-resolves the episode through the iTunes catalog and
// fetches the enclosure Apple advertises. Apple's CDN copies survive when
// the publisher's own hosting blocks or breaks.
type AppleStrategy struct {
	resolver   AppleResolver
	downloader *download.Downloader
}

func NewAppleStrategy(resolver AppleResolver, opts download.Options) *AppleStrategy {
	return &AppleStrategy{
		resolver:   resolver,
		downloader: download.NewDownloader(opts),
	}
}

func (a *AppleStrategy) Name() string { return catalog.StrategyApple }

func (a *AppleStrategy) CanHandle(url string, podcast *catalog.Podcast) bool {
	return a.resolver != nil && podcast.AppleID != 0
}

func (a *AppleStrategy) Download(ctx context.Context, req Request) error {
	audioURL, err := a.resolveURL(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("[DEBUG] downloads: apple resolved %q to %s", req.Episode.Title, audioURL)
	_, err = a.downloader.DownloadWithRetry(ctx, audioURL, req.OutputPath)
	return err
}

// resolveURL prefers the source finder's Apple candidate, then falls back
// to a fresh iTunes lookup with fuzzy title matching.
func (a *AppleStrategy) resolveURL(ctx context.Context, req Request) (string, error) {
	for _, c := range req.Candidates {
		if c.Origin == sources.OriginApple {
			return c.URL, nil
		}
	}

	result, err := a.resolver.LookupEpisodes(ctx, req.Podcast.AppleID, appleLookupLimit)
	if err != nil {
		return "", fmt.Errorf("apple lookup for %s: %w", req.Podcast.Name, err)
	}

	bestRatio := -1.0
	bestURL := ""
	for _, appleEp := range result.Episodes {
		if appleEp == nil || appleEp.AudioURL == "" {
			continue
		}
		ratio := titles.OverlapRatio(req.Episode.Title, appleEp.Title)
		dateMatch := !req.Episode.Published.IsZero() && !appleEp.ReleaseDate.IsZero() &&
			absDuration(req.Episode.Published.Sub(appleEp.ReleaseDate)) <= appleDateTol
		if ratio < appleMinOverlap && !dateMatch {
			continue
		}
		if ratio > bestRatio {
			bestRatio = ratio
			bestURL = appleEp.AudioURL
		}
	}
	if bestURL == "" {
		return "", fmt.Errorf("no apple episode matches %q", req.Episode.Title)
	}
	return bestURL, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
