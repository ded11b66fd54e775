package youtube

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/pkg/titles"
)

const (
	watchURLPrefix   = "https://www.youtube.com/watch?v="
	defaultScrapeURL = "https://www.youtube.com"
	maxAPIResults    = 10
	maxScrapeResults = 10
)

// Config holds search settings. APIKey enables the official data API;
// without it only the results-page scrape is used.
type Config struct {
	APIKey    string
	Timeout   time.Duration
	UserAgent string

	// Endpoint overrides for tests.
	APIEndpoint   string
	ScrapeBaseURL string
}

// Service finds episode videos through, in order: the podcast's curated
// episode map, the official data API, and a results-page scrape.
type Service struct {
	apiKey        string
	api           *youtubeapi.Service
	httpClient    *http.Client
	userAgent     string
	scrapeBaseURL string
}

// NewService builds the searcher. API construction failure is not fatal:
// the service degrades to scrape-only and logs the reason.
func NewService(cfg Config) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.ScrapeBaseURL == "" {
		cfg.ScrapeBaseURL = defaultScrapeURL
	}

	s := &Service{
		apiKey:        cfg.APIKey,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		userAgent:     cfg.UserAgent,
		scrapeBaseURL: strings.TrimSuffix(cfg.ScrapeBaseURL, "/"),
	}

	if cfg.APIKey != "" {
		opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.APIEndpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.APIEndpoint))
		}
		api, err := youtubeapi.NewService(context.Background(), opts...)
		if err != nil {
			log.Printf("[WARN] YouTube data API unavailable, using scrape only: %v", err)
		} else {
			s.api = api
		}
	}
	return s
}

// FindEpisodeVideo implements Searcher.
func (s *Service) FindEpisodeVideo(ctx context.Context, podcast *catalog.Podcast, ep *models.Episode) (*Video, error) {
	// Curated map wins over any search.
	if v := s.curatedVideo(podcast, ep); v != nil {
		log.Printf("[INFO] Using curated video mapping for %s - %s", podcast.Name, ep.Title)
		return v, nil
	}

	queries := buildQueries(podcast, ep)
	seen := make(map[string]bool)
	var candidates []Video

	for _, q := range queries {
		var (
			results []Video
			err     error
		)
		if s.api != nil {
			results, err = s.apiSearch(ctx, podcast.RetryStrategy.YouTubeChannel, q)
			if err != nil {
				log.Printf("[WARN] YouTube API search %q failed, trying scrape: %v", q, err)
			}
		}
		if len(results) == 0 {
			results, err = s.scrapeSearch(ctx, q)
			if err != nil {
				log.Printf("[WARN] YouTube scrape search %q failed: %v", q, err)
				continue
			}
		}
		for _, v := range results {
			if !seen[v.ID] {
				seen[v.ID] = true
				candidates = append(candidates, v)
			}
		}
		// The first query is the most specific; stop as soon as one
		// candidate actually matches the episode.
		if best := bestMatch(ep, candidates); best != nil {
			return best, nil
		}
	}

	if best := bestMatch(ep, candidates); best != nil {
		return best, nil
	}
	return nil, ErrNoMatch
}

// curatedVideo consults the podcast's episode_number → URL table.
func (s *Service) curatedVideo(podcast *catalog.Podcast, ep *models.Episode) *Video {
	if len(podcast.YouTubeEpisodeMap) == 0 {
		return nil
	}
	num, ok := episodeNumber(ep)
	if !ok {
		return nil
	}
	rawURL, ok := podcast.YouTubeEpisodeMap[num]
	if !ok {
		return nil
	}
	return &Video{
		ID:    ExtractVideoID(rawURL),
		URL:   rawURL,
		Title: ep.Title,
	}
}

func (s *Service) apiSearch(ctx context.Context, channelID, query string) ([]Video, error) {
	call := s.api.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(maxAPIResults).
		Order("relevance").
		Context(ctx)
	if channelID != "" {
		call = call.ChannelId(channelID)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("search.list: %w", err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		videos = append(videos, Video{
			ID:           item.Id.VideoId,
			URL:          watchURLPrefix + item.Id.VideoId,
			Title:        html.UnescapeString(item.Snippet.Title),
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: item.Snippet.ChannelTitle,
			Published:    published,
		})
	}
	return videos, nil
}

var videoRendererRe = regexp.MustCompile(`"videoRenderer":\{"videoId":"([A-Za-z0-9_-]{11})"`)
var scrapeTitleRe = regexp.MustCompile(`"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`)

// scrapeSearch parses the results page's embedded JSON. Dates are not
// exposed there, so scraped candidates never earn the proximity bonus.
func (s *Service) scrapeSearch(ctx context.Context, query string) ([]Video, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.scrapeBaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	return parseResultsPage(string(body)), nil
}

// parseResultsPage walks videoRenderer blocks, pairing each videoId with
// the first title run that follows it.
func parseResultsPage(page string) []Video {
	var videos []Video
	seen := make(map[string]bool)

	locs := videoRendererRe.FindAllStringSubmatchIndex(page, -1)
	for i, loc := range locs {
		id := page[loc[2]:loc[3]]
		if seen[id] {
			continue
		}

		blockEnd := len(page)
		if i+1 < len(locs) {
			blockEnd = locs[i+1][0]
		}
		block := page[loc[1]:blockEnd]

		m := scrapeTitleRe.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		title := unescapeJSONString(m[1])

		seen[id] = true
		videos = append(videos, Video{
			ID:    id,
			URL:   watchURLPrefix + id,
			Title: title,
		})
		if len(videos) >= maxScrapeResults {
			break
		}
	}
	return videos
}

// unescapeJSONString handles the escapes that appear inside the embedded
// results JSON without re-parsing the whole document.
func unescapeJSONString(s string) string {
	replacer := strings.NewReplacer(
		`\"`, `"`,
		`\\`, `\`,
		`\/`, `/`,
		`&`, "&",
		`'`, "'",
		`<`, "<",
		`>`, ">",
	)
	return replacer.Replace(s)
}

// bestMatch scores candidates against the episode and returns the winner,
// or nil when nothing clears the overlap threshold. Ties keep the earliest
// candidate, which preserves search ranking.
func bestMatch(ep *models.Episode, candidates []Video) *Video {
	var best *Video
	for i := range candidates {
		score, ok := titles.Score(ep.Title, ep.Published, candidates[i].Title, candidates[i].Published)
		if !ok {
			continue
		}
		candidates[i].Score = score
		if best == nil || score > best.Score {
			best = &candidates[i]
		}
	}
	return best
}

// buildQueries orders search queries most-specific first.
func buildQueries(podcast *catalog.Podcast, ep *models.Episode) []string {
	channelName := podcast.RetryStrategy.YouTubeChannelName
	prefix := podcast.Name
	if channelName != "" {
		prefix = channelName
	}

	queries := []string{fmt.Sprintf("%s %s", prefix, ep.Title)}

	if guest := guestName(ep); guest != "" {
		queries = append(queries, fmt.Sprintf("%s %s", prefix, guest))
	}
	if num, ok := episodeNumber(ep); ok {
		queries = append(queries, fmt.Sprintf("%s episode %d", prefix, num))
	}

	seen := make(map[string]bool, len(queries))
	out := queries[:0]
	for _, q := range queries {
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

func episodeNumber(ep *models.Episode) (int, bool) {
	if ep.EpisodeNumber != nil {
		return *ep.EpisodeNumber, true
	}
	return titles.ExtractEpisodeNumber(ep.Title)
}

func guestName(ep *models.Episode) string {
	if ep.GuestName != "" {
		return ep.GuestName
	}
	if guest, ok := titles.ExtractGuestName(ep.Title); ok {
		return guest
	}
	return ""
}

var videoIDRe = regexp.MustCompile(`(?:v=|youtu\.be/|/embed/|/shorts/|/live/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID pulls the 11-character id out of any watch URL form.
func ExtractVideoID(rawURL string) string {
	if m := videoIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// IsVideoURL reports whether the URL points at the video host. The
// download router forces the youtube strategy chain for these.
func IsVideoURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	return host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com" || host == "music.youtube.com"
}
