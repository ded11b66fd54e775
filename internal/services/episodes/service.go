package episodes

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
	"github.com/podforge/digest-api/pkg/titles"
)

const (
	appleLookupLimit     = 50
	directoryLookupLimit = 40
)

// Config controls discovery timeouts and the Apple verification pass.
type Config struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	UserAgent      string
	MaxConcurrent  int
	VerifyApple    bool
	FetchMissing   bool
}

// Service implements Fetcher across RSS feeds, the Apple directory and the
// Podcast Index directory.
type Service struct {
	httpClient *http.Client
	userAgent  string
	apple      AppleDirectory
	directory  PodcastDirectory
	failures   FailureRecorder

	totalTimeout  time.Duration
	maxConcurrent int
	verifyApple   bool
	fetchMissing  bool
}

// NewService wires the fetcher. apple, directory and failures may be nil;
// the corresponding source or bookkeeping is skipped.
func NewService(cfg Config, apple AppleDirectory, directory PodcastDirectory, failures FailureRecorder) *Service {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.TotalTimeout == 0 {
		cfg.TotalTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "digest-api/1.0 (podcast digest pipeline)"
	}

	return &Service{
		httpClient: &http.Client{
			Timeout: cfg.TotalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.TotalTimeout,
				MaxIdleConns:          10,
				IdleConnTimeout:       60 * time.Second,
			},
		},
		userAgent:     cfg.UserAgent,
		apple:         apple,
		directory:     directory,
		failures:      failures,
		totalTimeout:  cfg.TotalTimeout,
		maxConcurrent: cfg.MaxConcurrent,
		verifyApple:   cfg.VerifyApple,
		fetchMissing:  cfg.FetchMissing,
	}
}

// FetchRecent implements Fetcher. Podcasts are fetched with bounded
// concurrency; results are merged newest first.
func (s *Service) FetchRecent(ctx context.Context, podcasts []catalog.Podcast, daysBack int, progress ProgressFunc) ([]models.Episode, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -daysBack)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.maxConcurrent)

	var mu sync.Mutex
	all := make([]models.Episode, 0, len(podcasts)*4)

	for i := range podcasts {
		i := i
		podcast := podcasts[i]
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			if progress != nil {
				progress(podcast.Name, i+1, len(podcasts))
			}

			eps, err := s.FetchPodcast(gctx, &podcast, since)
			if err != nil {
				// Only cancellation aborts the batch; a podcast with no
				// reachable sources is a recorded failure, not a stop.
				if errs.IsCancelled(err) {
					return err
				}
				log.Printf("[WARN] Fetching %s failed: %v", podcast.Name, err)
				return nil
			}

			mu.Lock()
			all = append(all, eps...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Published.After(all[j].Published)
	})
	return all, nil
}

// FetchPodcast implements Fetcher for a single catalog entry.
func (s *Service) FetchPodcast(ctx context.Context, podcast *catalog.Podcast, since time.Time) ([]models.Episode, error) {
	entries := make([]SourcedEpisode, 0, 16)
	sourcesTried := 0
	sourcesFailed := 0

	for _, feedURL := range podcast.RSSFeeds {
		sourcesTried++
		items, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			sourcesFailed++
			s.recordFeedFailure(ctx, podcast.Name, feedURL, err)
			continue
		}
		for _, item := range items {
			ep := episodeFromItem(podcast.Name, item)
			if ep != nil && !ep.Published.Before(since) {
				entries = append(entries, SourcedEpisode{Episode: *ep, Source: SourceRSS})
			}
		}
	}

	appleEntries := s.fetchAppleEntries(ctx, podcast, since)
	if podcast.AppleID != 0 && s.apple != nil {
		sourcesTried++
		if appleEntries == nil {
			sourcesFailed++
		}
	}
	entries = append(entries, appleEntries...)

	if s.directory != nil && s.directory.Enabled() {
		sourcesTried++
		dirEps, err := s.directory.EpisodesByPodcastTitle(ctx, podcast.SearchQuery(), directoryLookupLimit)
		if err != nil {
			sourcesFailed++
			s.recordFeedFailure(ctx, podcast.Name, "podcastindex:"+podcast.SearchQuery(), err)
		}
		for i := range dirEps {
			ep := episodeFromDirectory(podcast.Name, &dirEps[i])
			if ep != nil && !ep.Published.Before(since) {
				entries = append(entries, SourcedEpisode{Episode: *ep, Source: SourceDirectory})
			}
		}
	}

	if ctx.Err() != nil {
		return nil, errs.Cancelled(errs.ComponentFetcher)
	}
	if sourcesTried > 0 && sourcesFailed == sourcesTried && len(entries) == 0 {
		return nil, errs.FeedError(podcast.Name, "all sources", fmt.Errorf("%d of %d sources failed", sourcesFailed, sourcesTried))
	}

	episodes := Deduplicate(entries)
	episodes = s.dropWithoutMedia(ctx, episodes)

	if s.verifyApple && len(appleEntries) > 0 {
		episodes = s.verifyAgainstApple(ctx, podcast, episodes, appleEntries)
	}

	log.Printf("[INFO] %s: %d episodes in window from %d raw entries", podcast.Name, len(episodes), len(entries))
	return episodes, nil
}

// fetchFeed parses one RSS/Atom source under the per-source timeout.
func (s *Service) fetchFeed(ctx context.Context, feedURL string) ([]*gofeed.Item, error) {
	srcCtx, cancel := context.WithTimeout(ctx, s.totalTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = s.httpClient
	parser.UserAgent = s.userAgent

	feed, err := parser.ParseURLWithContext(feedURL, srcCtx)
	if err != nil {
		return nil, err
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}
	return feed.Items, nil
}

// fetchAppleEntries pulls the Apple lookup feed. Returns nil on failure,
// an empty non-nil slice when the lookup worked but nothing is in window.
func (s *Service) fetchAppleEntries(ctx context.Context, podcast *catalog.Podcast, since time.Time) []SourcedEpisode {
	if podcast.AppleID == 0 || s.apple == nil {
		return []SourcedEpisode{}
	}

	result, err := s.apple.LookupEpisodes(ctx, podcast.AppleID, appleLookupLimit)
	if err != nil {
		s.recordFeedFailure(ctx, podcast.Name, fmt.Sprintf("apple:%d", podcast.AppleID), err)
		return nil
	}

	entries := make([]SourcedEpisode, 0, len(result.Episodes))
	for _, appleEp := range result.Episodes {
		ep := episodeFromApple(podcast.Name, appleEp)
		if ep != nil && !ep.Published.Before(since) {
			entries = append(entries, SourcedEpisode{Episode: *ep, Source: SourceApple})
		}
	}
	return entries
}

// dropWithoutMedia enforces the no-audio-no-transcript drop rule.
func (s *Service) dropWithoutMedia(ctx context.Context, episodes []models.Episode) []models.Episode {
	kept := episodes[:0]
	for i := range episodes {
		ep := episodes[i]
		if ep.HasMedia() {
			kept = append(kept, ep)
			continue
		}
		log.Printf("[WARN] Dropping %s - %s: no audio or transcript URL", ep.Podcast, ep.Title)
		if s.failures != nil {
			s.failures.RecordFailure(ctx, errs.ComponentFetcher, ep.Key(), errs.KindNoMedia, "episode has no audio or transcript URL", 0, "")
		}
	}
	return kept
}

// verifyAgainstApple reports Apple episodes the merged set is missing.
// With fetchMissing enabled the missing ones are promoted into the result.
func (s *Service) verifyAgainstApple(ctx context.Context, podcast *catalog.Podcast, episodes []models.Episode, appleEntries []SourcedEpisode) []models.Episode {
	var missing []models.Episode
	for _, entry := range appleEntries {
		if !containsEpisode(episodes, &entry.Episode) {
			missing = append(missing, entry.Episode)
		}
	}
	if len(missing) == 0 {
		return episodes
	}

	for i := range missing {
		log.Printf("[WARN] %s: episode missing from merged feeds: %s (%s)",
			podcast.Name, missing[i].Title, missing[i].Published.Format("2006-01-02"))
	}

	if !s.fetchMissing {
		return episodes
	}

	log.Printf("[INFO] %s: promoting %d Apple-only episodes into the run", podcast.Name, len(missing))
	episodes = append(episodes, s.dropWithoutMedia(ctx, missing)...)
	return episodes
}

func containsEpisode(episodes []models.Episode, candidate *models.Episode) bool {
	for i := range episodes {
		ep := &episodes[i]
		if ep.GUID != "" && ep.GUID == candidate.GUID {
			return true
		}
		if titles.SameEpisode(ep.Title, ep.Published, candidate.Title, candidate.Published) {
			return true
		}
		if titles.Matches(ep.Title, candidate.Title) && withinDay(ep.Published, candidate.Published) {
			return true
		}
	}
	return false
}

func withinDay(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= 24*time.Hour
}

func (s *Service) recordFeedFailure(ctx context.Context, podcast, source string, err error) {
	log.Printf("[WARN] Source %s for %s failed: %v", source, podcast, err)
	if s.failures == nil {
		return
	}
	key := models.EpisodeKey{Podcast: podcast}
	s.failures.RecordFailure(ctx, errs.ComponentFetcher, key, errs.KindFeed, fmt.Sprintf("source %s: %v", source, err), 0, "")
}
