package transcripts

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
	"github.com/podforge/digest-api/pkg/titles"
	"github.com/podforge/digest-api/pkg/transcript"
)

// Config holds finder settings. Zero values get production defaults.
type Config struct {
	// MinLength is the smallest normalized transcript accepted. Shorter
	// texts are usually show notes or chapter stubs.
	MinLength int
	// FetchTimeout bounds one transcript URL fetch.
	FetchTimeout time.Duration
	// DirectoryLimit is how many directory episodes to scan for a match.
	DirectoryLimit int
}

// Service locates an existing transcript for an episode without touching
// audio: store cache, advertised URL, directory lookup, video captions,
// in that order. Each source is best-effort; the next one covers for it.
type Service struct {
	cache     Cache
	fetcher   *transcript.Fetcher
	parser    *transcript.Parser
	directory Directory
	video     VideoLocator
	captions  CaptionFetcher

	minLength int
	dirLimit  int
}

// NewService wires the finder. Any of cache, directory, video, and
// captions may be nil; the corresponding source is skipped.
func NewService(cfg Config, cache Cache, directory Directory, video VideoLocator, captions CaptionFetcher) *Service {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 1000
	}
	if cfg.DirectoryLimit <= 0 {
		cfg.DirectoryLimit = 20
	}
	fetchOpts := transcript.DefaultFetchOptions()
	if cfg.FetchTimeout > 0 {
		fetchOpts.Timeout = cfg.FetchTimeout
	}
	return &Service{
		cache:     cache,
		fetcher:   transcript.NewFetcher(fetchOpts),
		parser:    transcript.NewParser(),
		directory: directory,
		video:     video,
		captions:  captions,
		minLength: cfg.MinLength,
		dirLimit:  cfg.DirectoryLimit,
	}
}

// Find returns the transcript text and its source tag. Exhausting every
// source yields a transcript_not_found error; the caller decides whether
// to fall back to speech-to-text.
func (s *Service) Find(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode, mode models.Mode) (string, string, error) {
	if text, source, ok := s.fromCache(ctx, episode, mode); ok {
		return text, source, nil
	}
	if err := ctx.Err(); err != nil {
		return "", "", errs.Cancelled(errs.ComponentTranscripts).WithEpisode(podcast.Name, episode.Title)
	}

	if text, ok := s.fromURL(ctx, episode.TranscriptURL); ok {
		log.Printf("[INFO] transcripts: advertised URL served %q", episode.Title)
		return text, models.SourceAPIDirect, nil
	}
	if err := ctx.Err(); err != nil {
		return "", "", errs.Cancelled(errs.ComponentTranscripts).WithEpisode(podcast.Name, episode.Title)
	}

	if text, ok := s.fromDirectory(ctx, podcast, episode); ok {
		log.Printf("[INFO] transcripts: directory lookup served %q", episode.Title)
		return text, models.SourceAPIDirect, nil
	}
	if err := ctx.Err(); err != nil {
		return "", "", errs.Cancelled(errs.ComponentTranscripts).WithEpisode(podcast.Name, episode.Title)
	}

	if text, ok := s.fromCaptions(ctx, podcast, episode); ok {
		log.Printf("[INFO] transcripts: video captions served %q", episode.Title)
		return text, models.SourceScraped, nil
	}
	if err := ctx.Err(); err != nil {
		return "", "", errs.Cancelled(errs.ComponentTranscripts).WithEpisode(podcast.Name, episode.Title)
	}

	return "", "", errs.TranscriptNotFound(podcast.Name, episode.Title)
}

// fromCache returns the stored transcript for this mode. Cached text was
// length-checked when saved, so it is trusted as-is.
func (s *Service) fromCache(ctx context.Context, episode *models.Episode, mode models.Mode) (string, string, bool) {
	if s.cache == nil {
		return "", "", false
	}
	text, source, err := s.cache.Transcript(ctx, episode.Key(), mode)
	if err != nil {
		log.Printf("[WARN] transcripts: cache read for %q: %v", episode.Title, err)
		return "", "", false
	}
	if text == "" {
		return "", "", false
	}
	log.Printf("[DEBUG] transcripts: cache hit for %q (%s)", episode.Title, source)
	return text, source, true
}

// fromURL fetches and flattens one transcript URL.
func (s *Service) fromURL(ctx context.Context, rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	result, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		log.Printf("[WARN] transcripts: fetching %s: %v", rawURL, err)
		return "", false
	}
	parsed, err := s.parser.Parse(result.Content, result.Format)
	if err != nil {
		log.Printf("[WARN] transcripts: parsing %s as %s: %v", rawURL, result.Format, err)
		return "", false
	}
	return s.accept(parsed.ToPlainText())
}

// fromDirectory matches the episode in the external index and follows the
// publisher's transcript reference.
func (s *Service) fromDirectory(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode) (string, bool) {
	if s.directory == nil || !s.directory.Enabled() {
		return "", false
	}
	entries, err := s.directory.EpisodesByPodcastTitle(ctx, podcast.SearchQuery(), s.dirLimit)
	if err != nil {
		log.Printf("[WARN] transcripts: directory lookup for %s: %v", podcast.Name, err)
		return "", false
	}
	for _, entry := range entries {
		if !titles.SameEpisode(episode.Title, episode.Published, entry.Title, entry.PublishedTime()) &&
			!titles.Matches(episode.Title, entry.Title) {
			continue
		}
		if url := entry.BestTranscriptURL(); url != "" {
			if text, ok := s.fromURL(ctx, url); ok {
				return text, true
			}
		}
	}
	return "", false
}

// fromCaptions resolves a matching video and pulls its caption track.
func (s *Service) fromCaptions(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode) (string, bool) {
	if s.video == nil || s.captions == nil {
		return "", false
	}
	video, err := s.video.FindEpisodeVideo(ctx, podcast, episode)
	if err != nil {
		log.Printf("[DEBUG] transcripts: no video match for %q: %v", episode.Title, err)
		return "", false
	}
	text, err := s.captions.FetchCaptions(ctx, video.ID)
	if err != nil {
		log.Printf("[WARN] transcripts: captions for %s: %v", video.ID, err)
		return "", false
	}
	return s.accept(text)
}

// accept normalizes the text and applies the length floor.
func (s *Service) accept(text string) (string, bool) {
	normalized := normalizeText(text)
	if utf8.RuneCountInString(normalized) < s.minLength {
		log.Printf("[DEBUG] transcripts: rejected %d-char text (floor %d)", utf8.RuneCountInString(normalized), s.minLength)
		return "", false
	}
	return normalized, true
}

// normalizeText trims the blob and collapses intra-line whitespace while
// keeping line structure, so speaker-block formatting survives.
func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
