package downloads

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/sources"
)

type MockAppleResolver struct {
	mock.Mock
}

func (m *MockAppleResolver) LookupEpisodes(ctx context.Context, appleID int64, limit int) (*itunes.PodcastWithEpisodes, error) {
	args := m.Called(ctx, appleID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*itunes.PodcastWithEpisodes), args.Error(1)
}

func TestAppleUsesFinderCandidate(t *testing.T) {
	server := newAudioServer(t)
	resolver := new(MockAppleResolver)
	strategy := NewAppleStrategy(resolver, directTestOptions())

	req := Request{
		Podcast: &catalog.Podcast{Name: "Acme Radio Hour", AppleID: 99},
		Episode: routerEpisode(),
		Candidates: []sources.Candidate{
			{URL: server.URL + "/good", Origin: sources.OriginApple},
		},
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	require.NoError(t, err)
	assert.FileExists(t, req.OutputPath)
	resolver.AssertNotCalled(t, "LookupEpisodes", mock.Anything, mock.Anything, mock.Anything)
}

func TestAppleLookupMatchesFuzzyTitle(t *testing.T) {
	server := newAudioServer(t)
	resolver := new(MockAppleResolver)
	strategy := NewAppleStrategy(resolver, directTestOptions())

	resolver.On("LookupEpisodes", mock.Anything, int64(99), 50).Return(&itunes.PodcastWithEpisodes{
		Episodes: []*itunes.Episode{
			{Title: "Something Else Entirely Today", AudioURL: server.URL + "/missing", ReleaseDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Title: "#7 — Ada Lovelace on Analytical Engines", AudioURL: server.URL + "/good", ReleaseDate: time.Date(2024, 8, 5, 3, 0, 0, 0, time.UTC)},
		},
	}, nil)

	req := Request{
		Podcast:    &catalog.Podcast{Name: "Acme Radio Hour", AppleID: 99},
		Episode:    routerEpisode(),
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, []string{"/good"}, server.requested())
	resolver.AssertExpectations(t)
}

func TestAppleLookupNoMatch(t *testing.T) {
	resolver := new(MockAppleResolver)
	strategy := NewAppleStrategy(resolver, directTestOptions())

	resolver.On("LookupEpisodes", mock.Anything, int64(99), 50).Return(&itunes.PodcastWithEpisodes{
		Episodes: []*itunes.Episode{
			{Title: "Completely Unrelated Show", AudioURL: "https://apple.example.com/x.mp3", ReleaseDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}, nil)

	req := Request{
		Podcast:    &catalog.Podcast{Name: "Acme Radio Hour", AppleID: 99},
		Episode:    routerEpisode(),
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no apple episode matches")
}

func TestAppleCanHandle(t *testing.T) {
	strategy := NewAppleStrategy(new(MockAppleResolver), directTestOptions())

	assert.True(t, strategy.CanHandle("", &catalog.Podcast{Name: "A", AppleID: 42}))
	assert.False(t, strategy.CanHandle("", &catalog.Podcast{Name: "A"}))

	unwired := NewAppleStrategy(nil, directTestOptions())
	assert.False(t, unwired.CanHandle("", &catalog.Podcast{Name: "A", AppleID: 42}))
}
