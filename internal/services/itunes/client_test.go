package itunes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/podforge/digest-api/internal/services/cache"
)

const lookupPodcastResponse = `{
	"resultCount": 1,
	"results": [{
		"wrapperType": "track",
		"kind": "podcast",
		"collectionId": 1469663053,
		"trackId": 1469663053,
		"artistName": "Acme Media",
		"collectionName": "Acme Radio Hour",
		"trackName": "Acme Radio Hour",
		"collectionViewUrl": "https://podcasts.apple.com/us/podcast/acme-radio-hour/id1469663053?uo=4",
		"feedUrl": "https://feeds.example.com/acme.xml",
		"artworkUrl600": "https://example.com/artwork.jpg",
		"trackCount": 317,
		"releaseDate": "2026-08-01T11:00:00Z",
		"country": "USA"
	}]
}`

func TestClient_LookupPodcast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lookup" {
			t.Errorf("Expected path /lookup, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "1469663053" {
			t.Errorf("Expected id=1469663053, got %s", r.URL.Query().Get("id"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(lookupPodcastResponse))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})

	podcast, err := client.LookupPodcast(context.Background(), 1469663053)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if podcast == nil {
		t.Fatal("Expected podcast, got nil")
	}

	if podcast.ID != 1469663053 {
		t.Errorf("Expected ID 1469663053, got %d", podcast.ID)
	}
	if podcast.Title != "Acme Radio Hour" {
		t.Errorf("Expected title 'Acme Radio Hour', got %s", podcast.Title)
	}
	if podcast.FeedURL != "https://feeds.example.com/acme.xml" {
		t.Errorf("Expected feed URL, got %s", podcast.FeedURL)
	}
	if podcast.EpisodeCount != 317 {
		t.Errorf("Expected 317 episodes, got %d", podcast.EpisodeCount)
	}
}

func TestClient_LookupEpisodes(t *testing.T) {
	response := `{
		"resultCount": 3,
		"results": [
			{
				"wrapperType": "track",
				"kind": "podcast",
				"collectionId": 99,
				"collectionName": "Acme Radio Hour",
				"feedUrl": "https://feeds.example.com/acme.xml"
			},
			{
				"wrapperType": "podcastEpisode",
				"kind": "podcast-episode",
				"trackId": 1001,
				"collectionId": 99,
				"trackName": "Ep 2: Reentry",
				"episodeUrl": "https://chrt.fm/track/x/audio2.mp3",
				"episodeGuid": "guid-2",
				"trackTimeMillis": 3600000,
				"releaseDate": "2026-08-02T10:00:00Z",
				"episodeFileExtension": "mp3"
			},
			{
				"wrapperType": "podcastEpisode",
				"kind": "podcast-episode",
				"trackId": 1000,
				"collectionId": 99,
				"trackName": "Ep 1: Liftoff",
				"previewUrl": "https://cdn.example.com/audio1-preview.mp3",
				"episodeGuid": "guid-1",
				"releaseDate": "2026-08-01T10:00:00Z"
			}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("entity"); got != "podcastEpisode" {
			t.Errorf("Expected entity=podcastEpisode, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	result, err := client.LookupEpisodes(context.Background(), 99, 50)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Podcast == nil || result.Podcast.ID != 99 {
		t.Fatalf("Expected podcast 99, got %+v", result.Podcast)
	}
	if len(result.Episodes) != 2 {
		t.Fatalf("Expected 2 episodes, got %d", len(result.Episodes))
	}
	if result.Episodes[0].AudioURL != "https://chrt.fm/track/x/audio2.mp3" {
		t.Errorf("Unexpected audio URL: %s", result.Episodes[0].AudioURL)
	}
	// Falls back to previewUrl when episodeUrl is absent.
	if result.Episodes[1].AudioURL != "https://cdn.example.com/audio1-preview.mp3" {
		t.Errorf("Expected preview URL fallback, got %s", result.Episodes[1].AudioURL)
	}
	if result.Episodes[0].PodcastID != 99 {
		t.Errorf("Expected podcast ID propagated, got %d", result.Episodes[0].PodcastID)
	}
}

func TestClient_LookupEpisodes_EpisodesOnly(t *testing.T) {
	response := `{
		"resultCount": 1,
		"results": [
			{
				"wrapperType": "podcastEpisode",
				"kind": "podcast-episode",
				"trackId": 1000,
				"collectionId": 42,
				"collectionName": "Founders Weekly",
				"trackName": "Ep 478",
				"episodeUrl": "https://cdn.example.com/478.mp3"
			}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	result, err := client.LookupEpisodes(context.Background(), 42, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Podcast == nil || result.Podcast.Title != "Founders Weekly" {
		t.Fatalf("Expected podcast recovered from episode row, got %+v", result.Podcast)
	}
	if len(result.Episodes) != 1 {
		t.Fatalf("Expected 1 episode, got %d", len(result.Episodes))
	}
}

func TestClient_Search(t *testing.T) {
	response := `{
		"resultCount": 2,
		"results": [
			{
				"wrapperType": "track",
				"kind": "podcast",
				"collectionId": 99,
				"collectionName": "Acme Radio Hour",
				"feedUrl": "https://feeds.example.com/acme.xml"
			},
			{
				"wrapperType": "podcastEpisode",
				"kind": "podcast-episode",
				"trackId": 1000,
				"trackName": "stray episode"
			}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("Expected path /search, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("term"); got != "acme radio" {
			t.Errorf("Expected term 'acme radio', got %q", got)
		}
		if got := r.URL.Query().Get("media"); got != "podcast" {
			t.Errorf("Expected media=podcast, got %s", got)
		}
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	podcasts, err := client.Search(context.Background(), "acme radio", 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(podcasts) != 1 {
		t.Fatalf("Expected 1 podcast (episode filtered), got %d", len(podcasts))
	}
	if podcasts[0].ID != 99 {
		t.Errorf("Expected podcast 99, got %d", podcasts[0].ID)
	}
}

func TestClient_SearchEmptyTerm(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:0"})
	if _, err := client.Search(context.Background(), "", 10); err == nil {
		t.Fatal("Expected error for empty term")
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(lookupPodcastResponse))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:      server.URL,
		MaxRetries:   3,
		RetryBackoff: 10 * time.Millisecond,
	})

	podcast, err := client.LookupPodcast(context.Background(), 1469663053)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if podcast.ID != 1469663053 {
		t.Errorf("Unexpected podcast: %+v", podcast)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}

	metrics := client.GetMetrics()
	if metrics["rate_limit_hits"] != 2 {
		t.Errorf("Expected 2 rate limit hits, got %d", metrics["rate_limit_hits"])
	}
}

func TestClient_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultCount": 0, "results": []}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.LookupPodcast(context.Background(), 123)
	if err == nil {
		t.Fatal("Expected error for empty result")
	}
}

func TestCachedClient_LookupPodcast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(lookupPodcastResponse))
	}))
	defer server.Close()

	store := cache.NewMemoryCache(cache.DefaultOptions())
	defer store.Stop()

	client := NewCachedClient(Config{BaseURL: server.URL}, store, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		podcast, err := client.LookupPodcast(ctx, 1469663053)
		if err != nil {
			t.Fatalf("Lookup %d failed: %v", i, err)
		}
		if podcast.Title != "Acme Radio Hour" {
			t.Errorf("Lookup %d: unexpected title %s", i, podcast.Title)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 upstream request, got %d", got)
	}
}

func TestExtractPodcastIDFromURL(t *testing.T) {
	tests := []struct {
		url    string
		wantID int64
		wantOK bool
	}{
		{"https://podcasts.apple.com/us/podcast/the-daily/id1200361736", 1200361736, true},
		{"https://podcasts.apple.com/us/podcast/acme/id99?uo=4", 99, true},
		{"https://example.com/feed.xml", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		id, ok := ExtractPodcastIDFromURL(tt.url)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ExtractPodcastIDFromURL(%q) = (%d, %v), want (%d, %v)", tt.url, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestNormalizeFeedURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Feeds.Example.com/Acme.xml/", "feeds.example.com/acme.xml"},
		{"http://feeds.example.com/acme.xml", "feeds.example.com/acme.xml"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeFeedURL(tt.in); got != tt.want {
			t.Errorf("NormalizeFeedURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
