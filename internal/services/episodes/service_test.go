package episodes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/podcastindex"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Mock implementations for testing

type MockAppleDirectory struct {
	mock.Mock
}

func (m *MockAppleDirectory) LookupEpisodes(ctx context.Context, appleID int64, limit int) (*itunes.PodcastWithEpisodes, error) {
	args := m.Called(ctx, appleID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*itunes.PodcastWithEpisodes), args.Error(1)
}

type MockPodcastDirectory struct {
	mock.Mock
}

func (m *MockPodcastDirectory) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockPodcastDirectory) EpisodesByPodcastTitle(ctx context.Context, title string, limit int) ([]podcastindex.Episode, error) {
	args := m.Called(ctx, title, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]podcastindex.Episode), args.Error(1)
}

type MockFailureRecorder struct {
	mock.Mock
	mu    sync.Mutex
	kinds []errs.Kind
}

func (m *MockFailureRecorder) RecordFailure(ctx context.Context, component string, key models.EpisodeKey, kind errs.Kind, message string, retries int, mode models.Mode) {
	m.mu.Lock()
	m.kinds = append(m.kinds, kind)
	m.mu.Unlock()
	m.Called(ctx, component, key, kind, message, retries, mode)
}

func (m *MockFailureRecorder) recorded(kind errs.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// feedServer serves a minimal RSS document whose items carry the given
// titles, published offsets from now, and optional enclosures.
type feedItem struct {
	title      string
	age        time.Duration
	audioURL   string
	transcript string
	guid       string
}

func feedServer(t *testing.T, items ...feedItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>`)
		fmt.Fprint(w, `<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0"><channel><title>Test Feed</title>`)
		for _, item := range items {
			fmt.Fprintf(w, `<item><title>%s</title><guid>%s</guid><pubDate>%s</pubDate>`,
				item.title, item.guid, time.Now().Add(-item.age).UTC().Format(http.TimeFormat))
			if item.audioURL != "" {
				fmt.Fprintf(w, `<enclosure url="%s" type="audio/mpeg" length="1"/>`, item.audioURL)
			}
			if item.transcript != "" {
				fmt.Fprintf(w, `<podcast:transcript url="%s" type="text/vtt"/>`, item.transcript)
			}
			fmt.Fprint(w, `</item>`)
		}
		fmt.Fprint(w, `</channel></rss>`)
	}))
}

func testPodcast(name string, feeds ...string) *catalog.Podcast {
	return &catalog.Podcast{Name: name, RSSFeeds: feeds}
}

func TestFetchPodcastMergesRSSAndApple(t *testing.T) {
	server := feedServer(t, feedItem{
		title:    "Ep 7: Ada Lovelace on Analytical Engines",
		guid:     "ep-7",
		age:      24 * time.Hour,
		audioURL: "https://cdn.example.com/7.mp3",
	})
	defer server.Close()

	apple := new(MockAppleDirectory)
	apple.On("LookupEpisodes", mock.Anything, int64(555), appleLookupLimit).Return(&itunes.PodcastWithEpisodes{
		Episodes: []*itunes.Episode{{
			ID:          31337,
			Title:       "Ep 7: Ada Lovelace on Analytical Engines",
			AudioURL:    "https://apple.example.com/7.m4a",
			ReleaseDate: time.Now().Add(-23 * time.Hour).UTC(),
			GUID:        "ep-7",
			Description: "Apple-side summary.",
		}},
	}, nil)

	svc := NewService(Config{}, apple, nil, nil)
	podcast := testPodcast("Engine Talk", server.URL)
	podcast.AppleID = 555

	episodes, err := svc.FetchPodcast(context.Background(), podcast, time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	// RSS identity and audio win; the Apple-only fields fill in.
	assert.Equal(t, "https://cdn.example.com/7.mp3", episodes[0].AudioURL)
	assert.Equal(t, int64(31337), episodes[0].ApplePodcastID)
	assert.Equal(t, "Apple-side summary.", episodes[0].Description)
	apple.AssertExpectations(t)
}

func TestFetchPodcastFiltersWindow(t *testing.T) {
	server := feedServer(t,
		feedItem{title: "Fresh Episode About Compilers", guid: "new", age: 48 * time.Hour, audioURL: "https://cdn.example.com/new.mp3"},
		feedItem{title: "Stale Episode About Assemblers", guid: "old", age: 21 * 24 * time.Hour, audioURL: "https://cdn.example.com/old.mp3"},
	)
	defer server.Close()

	svc := NewService(Config{}, nil, nil, nil)
	episodes, err := svc.FetchPodcast(context.Background(), testPodcast("Binary Hour", server.URL), time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "Fresh Episode About Compilers", episodes[0].Title)
}

func TestFetchPodcastDropsEpisodesWithoutMedia(t *testing.T) {
	server := feedServer(t,
		feedItem{title: "Silent Episode Without Audio", guid: "silent", age: time.Hour},
		feedItem{title: "Transcript Only Episode Copy", guid: "text", age: time.Hour, transcript: "https://cdn.example.com/t.vtt"},
	)
	defer server.Close()

	failures := new(MockFailureRecorder)
	failures.On("RecordFailure", mock.Anything, errs.ComponentFetcher, mock.Anything, errs.KindNoMedia, mock.Anything, 0, mock.Anything).Return()

	svc := NewService(Config{}, nil, nil, failures)
	episodes, err := svc.FetchPodcast(context.Background(), testPodcast("Quiet Cast", server.URL), time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)

	// The transcript-only episode stays; the bare one is dropped and recorded.
	require.Len(t, episodes, 1)
	assert.Equal(t, "Transcript Only Episode Copy", episodes[0].Title)
	assert.True(t, failures.recorded(errs.KindNoMedia))
	failures.AssertExpectations(t)
}

func TestFetchPodcastDirectoryRescuesMissingAudio(t *testing.T) {
	published := time.Now().Add(-30 * time.Hour).UTC().Truncate(time.Second)

	server := feedServer(t, feedItem{
		title: "Ep 9: Grace Hopper on Debugging",
		guid:  "ep-9",
		age:   time.Since(published),
	})
	defer server.Close()

	directory := new(MockPodcastDirectory)
	directory.On("Enabled").Return(true)
	directory.On("EpisodesByPodcastTitle", mock.Anything, "Compiler Stories", directoryLookupLimit).Return([]podcastindex.Episode{{
		Title:         "Ep 9: Grace Hopper on Debugging",
		DatePublished: published.Unix(),
		EnclosureURL:  "https://dir.example.com/9.mp3",
	}}, nil)

	svc := NewService(Config{}, nil, directory, nil)
	podcast := testPodcast("Compiler Stories", server.URL)

	episodes, err := svc.FetchPodcast(context.Background(), podcast, time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "https://dir.example.com/9.mp3", episodes[0].AudioURL)
	directory.AssertExpectations(t)
}

func TestFetchPodcastAllSourcesFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	failures := new(MockFailureRecorder)
	failures.On("RecordFailure", mock.Anything, errs.ComponentFetcher, mock.Anything, errs.KindFeed, mock.Anything, 0, mock.Anything).Return()

	svc := NewService(Config{}, nil, nil, failures)
	_, err := svc.FetchPodcast(context.Background(), testPodcast("Broken Cast", server.URL), time.Now().AddDate(0, 0, -7))
	require.Error(t, err)
	assert.Equal(t, errs.KindFeed, errs.KindOf(err))
	assert.True(t, failures.recorded(errs.KindFeed))
}

func TestFetchPodcastSurvivesOneBadFeed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer bad.Close()

	good := feedServer(t, feedItem{title: "Working Episode About Resilience", guid: "ok", age: time.Hour, audioURL: "https://cdn.example.com/ok.mp3"})
	defer good.Close()

	failures := new(MockFailureRecorder)
	failures.On("RecordFailure", mock.Anything, errs.ComponentFetcher, mock.Anything, errs.KindFeed, mock.Anything, 0, mock.Anything).Return()

	svc := NewService(Config{}, nil, nil, failures)
	episodes, err := svc.FetchPodcast(context.Background(), testPodcast("Mixed Cast", bad.URL, good.URL), time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Len(t, episodes, 1)
	assert.True(t, failures.recorded(errs.KindFeed))
}

func TestFetchRecentSortsNewestFirstAndReportsProgress(t *testing.T) {
	older := feedServer(t, feedItem{title: "Older Episode About Caching", guid: "a", age: 72 * time.Hour, audioURL: "https://cdn.example.com/a.mp3"})
	defer older.Close()
	newer := feedServer(t, feedItem{title: "Newer Episode About Sharding", guid: "b", age: 2 * time.Hour, audioURL: "https://cdn.example.com/b.mp3"})
	defer newer.Close()

	svc := NewService(Config{MaxConcurrent: 1}, nil, nil, nil)
	podcasts := []catalog.Podcast{
		{Name: "Cache Cast", RSSFeeds: []string{older.URL}},
		{Name: "Shard Show", RSSFeeds: []string{newer.URL}},
	}

	var mu sync.Mutex
	var seen []string
	episodes, err := svc.FetchRecent(context.Background(), podcasts, 7, func(podcast string, index, total int) {
		mu.Lock()
		seen = append(seen, fmt.Sprintf("%s %d/%d", podcast, index, total))
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "Newer Episode About Sharding", episodes[0].Title)
	assert.Equal(t, "Older Episode About Caching", episodes[1].Title)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"Cache Cast 1/2", "Shard Show 2/2"}, seen)
}

func TestFetchRecentStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(Config{}, nil, nil, nil)
	_, err := svc.FetchRecent(ctx, []catalog.Podcast{{Name: "Any", RSSFeeds: []string{"http://127.0.0.1:0/feed"}}}, 7, nil)
	require.Error(t, err)
}

func TestVerifyAgainstApplePromotesMissing(t *testing.T) {
	published := time.Date(2024, 8, 5, 10, 0, 0, 0, time.UTC)

	current := []models.Episode{{
		Podcast:   "Engine Talk",
		Title:     "Ep 7: Ada Lovelace on Analytical Engines",
		Published: published,
		AudioURL:  "https://cdn.example.com/7.mp3",
	}}
	appleEntries := []SourcedEpisode{
		{Source: SourceApple, Episode: current[0]},
		{Source: SourceApple, Episode: models.Episode{
			Podcast:   "Engine Talk",
			Title:     "Ep 8: Charles Babbage Returns Triumphant",
			Published: published.Add(72 * time.Hour),
			AudioURL:  "https://apple.example.com/8.m4a",
		}},
	}

	svc := NewService(Config{VerifyApple: true, FetchMissing: true}, nil, nil, nil)
	merged := svc.verifyAgainstApple(context.Background(), &catalog.Podcast{Name: "Engine Talk"}, current, appleEntries)
	require.Len(t, merged, 2)
	assert.Equal(t, "Ep 8: Charles Babbage Returns Triumphant", merged[1].Title)

	// Verification alone only reports.
	svc = NewService(Config{VerifyApple: true}, nil, nil, nil)
	merged = svc.verifyAgainstApple(context.Background(), &catalog.Podcast{Name: "Engine Talk"}, current, appleEntries)
	assert.Len(t, merged, 1)
}
