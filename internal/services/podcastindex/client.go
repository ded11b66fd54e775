package podcastindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client handles communication with the Podcast Index API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	userAgent  string
}

// Config holds configuration for the Podcast Index client
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NewClient creates a new Podcast Index API client
func NewClient(cfg Config) *Client {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.podcastindex.org/api/1.0"
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "DigestAPI/1.0"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		userAgent:  cfg.UserAgent,
	}
}

// Enabled reports whether the client has credentials. Directory lookups are
// skipped entirely when the API keys are not configured.
func (c *Client) Enabled() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// makeAPIRequest is a helper method to reduce code duplication for API requests
func (c *Client) makeAPIRequest(ctx context.Context, endpoint string, result interface{}) error {
	fullURL := fmt.Sprintf("%s/%s", c.baseURL, endpoint)

	// Create a clean context that inherits deadlines but not values/metadata
	// This prevents auth middleware headers from propagating to external API calls
	cleanCtx := context.Background()
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		cleanCtx, cancel = context.WithDeadline(cleanCtx, deadline)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(cleanCtx, "GET", fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	signRequest(req, c.apiKey, c.apiSecret, c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ERROR] Podcast Index API returned status %d for %s", resp.StatusCode, fullURL)
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// SearchByTerm searches the directory for podcast feeds matching the query.
func (c *Client) SearchByTerm(ctx context.Context, query string, limit int) ([]Feed, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("search/byterm?q=%s&max=%d", url.QueryEscape(query), limit)

	var response SearchResponse
	if err := c.makeAPIRequest(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("searching podcasts: %w", err)
	}

	if response.Status != "true" {
		return nil, fmt.Errorf("API error: %s", response.Description)
	}

	return response.Feeds, nil
}

// EpisodesByFeedID fetches recent episodes for a feed by its directory ID.
func (c *Client) EpisodesByFeedID(ctx context.Context, feedID int64, limit int) ([]Episode, error) {
	if feedID <= 0 {
		return nil, fmt.Errorf("feed ID must be positive")
	}
	if limit <= 0 {
		limit = 20
	}

	endpoint := fmt.Sprintf("episodes/byfeedid?id=%d&max=%d", feedID, limit)

	var response EpisodesResponse
	if err := c.makeAPIRequest(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("fetching episodes for feed %d: %w", feedID, err)
	}

	if response.Status != "true" {
		return nil, fmt.Errorf("API error: %s", response.Description)
	}

	return response.Items, nil
}

// EpisodesByFeedURL fetches recent episodes for a feed by its RSS URL.
func (c *Client) EpisodesByFeedURL(ctx context.Context, feedURL string, limit int) ([]Episode, error) {
	if feedURL == "" {
		return nil, fmt.Errorf("feed URL cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	endpoint := fmt.Sprintf("episodes/byfeedurl?url=%s&max=%d", url.QueryEscape(feedURL), limit)

	var response EpisodesResponse
	if err := c.makeAPIRequest(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("fetching episodes for feed %s: %w", feedURL, err)
	}

	if response.Status != "true" {
		return nil, fmt.Errorf("API error: %s", response.Description)
	}

	return response.Items, nil
}

// EpisodesByPodcastTitle searches for a feed by title and returns its recent
// episodes. An exact case-insensitive title match wins over the first search
// hit when both exist.
func (c *Client) EpisodesByPodcastTitle(ctx context.Context, title string, limit int) ([]Episode, error) {
	feeds, err := c.SearchByTerm(ctx, title, 5)
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, nil
	}

	feed := feeds[0]
	for _, f := range feeds {
		if strings.EqualFold(strings.TrimSpace(f.Title), strings.TrimSpace(title)) {
			feed = f
			break
		}
	}

	log.Printf("[DEBUG] Podcast Index matched %q to feed %d (%s)", title, feed.ID, feed.Title)
	return c.EpisodesByFeedID(ctx, feed.ID, limit)
}
