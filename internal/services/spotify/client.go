package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Client talks to the Spotify Web API using the client-credentials flow.
// Spotify only returns catalog metadata here, never downloadable audio.
type Client struct {
	httpClient *http.Client
	baseURL    string
	enabled    bool
}

// Config holds credentials and endpoints for the Spotify client.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// NewClient creates a Spotify client. Without credentials the client is
// disabled and every lookup returns empty results.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	enabled := cfg.ClientID != "" && cfg.ClientSecret != ""

	var httpClient *http.Client
	if enabled {
		conf := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		base := &http.Client{Timeout: cfg.Timeout}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = conf.Client(ctx)
		httpClient.Timeout = cfg.Timeout
	} else {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		enabled:    enabled,
	}
}

// Enabled reports whether credentials were configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// makeAPIRequest issues an authenticated GET and decodes the JSON response.
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

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ERROR] Spotify API returned status %d for %s", resp.StatusCode, fullURL)
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// SearchShows searches Spotify's podcast catalog by name.
func (c *Client) SearchShows(ctx context.Context, query string, limit int) ([]Show, error) {
	if !c.enabled {
		return nil, nil
	}
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	endpoint := fmt.Sprintf("search?q=%s&type=show&limit=%d", url.QueryEscape(query), limit)

	var response searchResponse
	if err := c.makeAPIRequest(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("searching shows: %w", err)
	}

	shows := make([]Show, 0, len(response.Shows.Items))
	for _, item := range response.Shows.Items {
		shows = append(shows, item.toShow())
	}
	return shows, nil
}

// ShowEpisodes lists recent episodes for a show by its Spotify ID.
func (c *Client) ShowEpisodes(ctx context.Context, showID string, limit int) ([]Episode, error) {
	if !c.enabled {
		return nil, nil
	}
	if showID == "" {
		return nil, fmt.Errorf("show ID cannot be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	endpoint := fmt.Sprintf("shows/%s/episodes?limit=%d&market=US", url.PathEscape(showID), limit)

	var response episodesResponse
	if err := c.makeAPIRequest(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("fetching episodes for show %s: %w", showID, err)
	}

	episodes := make([]Episode, 0, len(response.Items))
	for _, item := range response.Items {
		episodes = append(episodes, item.toEpisode())
	}
	return episodes, nil
}

// EpisodesByShowTitle searches for a show by title and returns its recent
// episodes. An exact case-insensitive name match wins over the first hit.
func (c *Client) EpisodesByShowTitle(ctx context.Context, title string, limit int) ([]Episode, error) {
	if !c.enabled {
		return nil, nil
	}

	shows, err := c.SearchShows(ctx, title, 5)
	if err != nil {
		return nil, err
	}
	if len(shows) == 0 {
		return nil, nil
	}

	show := shows[0]
	for _, s := range shows {
		if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(title)) {
			show = s
			break
		}
	}

	log.Printf("[DEBUG] Spotify matched %q to show %s (%s)", title, show.ID, show.Name)
	return c.ShowEpisodes(ctx, show.ID, limit)
}
