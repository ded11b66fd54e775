package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/podforge/digest-api/pkg/transcript"
)

// captionTrack mirrors the track list embedded in the watch page player
// config. Kind "asr" marks auto-generated tracks.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

var captionTracksRe = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// Captions fetches caption tracks by scraping the watch page. The data
// API's caption download needs OAuth, so this path works with no
// credentials at all.
type Captions struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// CaptionsConfig configures the caption fetcher. BaseURL is a test hook.
type CaptionsConfig struct {
	Timeout   time.Duration
	UserAgent string
	BaseURL   string
}

func NewCaptions(cfg CaptionsConfig) *Captions {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultScrapeURL
	}
	return &Captions{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
	}
}

// FetchCaptions implements CaptionFetcher. Manually created tracks are
// preferred over auto-generated ones, English over other languages.
func (c *Captions) FetchCaptions(ctx context.Context, videoID string) (string, error) {
	page, err := c.get(ctx, fmt.Sprintf("%s/watch?v=%s", c.baseURL, url.QueryEscape(videoID)))
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}

	tracks, err := parseCaptionTracks(page)
	if err != nil {
		return "", err
	}
	if len(tracks) == 0 {
		return "", fmt.Errorf("video %s has no caption tracks", videoID)
	}

	track := pickTrack(tracks)
	body, err := c.get(ctx, withVTTFormat(track.BaseURL))
	if err != nil {
		return "", fmt.Errorf("caption track: %w", err)
	}

	parsed, err := transcript.NewParser().Parse(body, transcript.FormatVTT)
	if err != nil {
		return "", fmt.Errorf("parsing captions: %w", err)
	}
	return parsed.ToPlainText(), nil
}

func (c *Captions) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func parseCaptionTracks(page string) ([]captionTrack, error) {
	m := captionTracksRe.FindStringSubmatch(page)
	if m == nil {
		return nil, nil
	}
	var tracks []captionTrack
	if err := json.Unmarshal([]byte(m[1]), &tracks); err != nil {
		return nil, fmt.Errorf("parsing caption track list: %w", err)
	}
	return tracks, nil
}

// pickTrack orders manual before ASR, then English before the rest, then
// original order.
func pickTrack(tracks []captionTrack) captionTrack {
	ranked := make([]captionTrack, len(tracks))
	copy(ranked, tracks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return trackRank(ranked[i]) < trackRank(ranked[j])
	})
	return ranked[0]
}

func trackRank(t captionTrack) int {
	rank := 0
	if t.Kind == "asr" {
		rank += 2
	}
	if !strings.HasPrefix(strings.ToLower(t.LanguageCode), "en") {
		rank++
	}
	return rank
}

// withVTTFormat requests WebVTT so one parser covers both advertised
// transcript URLs and caption tracks.
func withVTTFormat(baseURL string) string {
	if strings.Contains(baseURL, "fmt=") {
		return baseURL
	}
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + "fmt=vtt"
}
