package sources

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/youtube"
)

// Config controls probing and page-scrape behavior.
type Config struct {
	ProbeTimeout   time.Duration
	UserAgent      string
	MaxScrapeBytes int64
}

// Service implements Finder.
type Service struct {
	prober         *prober
	apple          AppleResolver
	video          VideoLocator
	maxScrapeBytes int64
}

// NewService wires the finder. apple and video may be nil; the
// corresponding steps then contribute nothing.
func NewService(cfg Config, apple AppleResolver, video VideoLocator) *Service {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = appleCoreMediaUA
	}
	if cfg.MaxScrapeBytes <= 0 {
		cfg.MaxScrapeBytes = 2 << 20
	}
	return &Service{
		prober:         newProber(cfg.ProbeTimeout, cfg.UserAgent),
		apple:          apple,
		video:          video,
		maxScrapeBytes: cfg.MaxScrapeBytes,
	}
}

// Find yields the ordered candidate list for one episode. Steps follow the
// podcast's retry strategy; duplicates keep their first position.
func (s *Service) Find(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode) []Candidate {
	rs := podcast.RetryStrategy

	var list []Candidate
	seen := map[string]bool{}
	add := func(c Candidate) {
		if c.URL == "" || seen[c.URL] {
			return
		}
		seen[c.URL] = true
		list = append(list, c)
	}

	if rs.ForceApple || rs.Primary == catalog.StrategyApple {
		if c, ok := s.appleCandidate(ctx, podcast, episode); ok {
			add(c)
		}
	}

	for _, c := range s.rewriteCandidates(ctx, episode.AudioURL) {
		add(c)
	}

	youtubePlaced := false
	if rs.Primary == catalog.StrategyYouTube {
		youtubePlaced = true
		if c, ok := s.videoCandidate(ctx, podcast, episode); ok {
			add(c)
		}
	}

	for _, c := range s.scrapeCandidates(ctx, episode.Link) {
		add(c)
	}

	if rs.Fallback == catalog.StrategyCDN {
		for _, c := range s.cdnCandidates(ctx, episode.AudioURL) {
			add(c)
		}
	}

	if rs.Fallback == catalog.StrategyYouTube && !youtubePlaced {
		if c, ok := s.videoCandidate(ctx, podcast, episode); ok {
			add(c)
		}
	}

	if !rs.SkipRSS {
		add(Candidate{URL: episode.AudioURL, Origin: OriginRSS})
	}

	log.Printf("[INFO] %d audio candidates for %s - %s", len(list), episode.Podcast, episode.Title)
	return list
}

func (s *Service) videoCandidate(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode) (Candidate, bool) {
	if s.video == nil {
		return Candidate{}, false
	}
	video, err := s.video.FindEpisodeVideo(ctx, podcast, episode)
	if err != nil {
		if !errors.Is(err, youtube.ErrNoMatch) {
			log.Printf("[WARN] Video search for %s - %s failed: %v", episode.Podcast, episode.Title, err)
		}
		return Candidate{}, false
	}
	return Candidate{URL: video.URL, Origin: OriginYouTube}, true
}
