package downloads

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/sources"
	"github.com/podforge/digest-api/internal/services/youtube"
)

type stubSearcher struct {
	video *youtube.Video
	err   error
	calls int
}

func (s *stubSearcher) FindEpisodeVideo(ctx context.Context, podcast *catalog.Podcast, ep *models.Episode) (*youtube.Video, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.video, nil
}

type stubYtdlp struct {
	available bool
	err       error
	gotURL    string
}

func (s *stubYtdlp) Available() bool { return s.available }

func (s *stubYtdlp) DownloadAudio(ctx context.Context, videoURL, outputPath string) error {
	s.gotURL = videoURL
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(outputPath, validAudio(), 0o644)
}

func TestYouTubeUsesVideoEnclosure(t *testing.T) {
	searcher := &stubSearcher{}
	ytdlp := &stubYtdlp{available: true}
	strategy := NewYouTubeStrategy(searcher, ytdlp)

	episode := routerEpisode()
	episode.AudioURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	req := Request{
		Podcast:    &catalog.Podcast{Name: "Acme Radio Hour"},
		Episode:    episode,
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, episode.AudioURL, ytdlp.gotURL)
	assert.Equal(t, 0, searcher.calls)
}

func TestYouTubeUsesFinderCandidate(t *testing.T) {
	searcher := &stubSearcher{}
	ytdlp := &stubYtdlp{available: true}
	strategy := NewYouTubeStrategy(searcher, ytdlp)

	req := Request{
		Podcast: &catalog.Podcast{Name: "Acme Radio Hour"},
		Episode: routerEpisode(),
		Candidates: []sources.Candidate{
			{URL: "https://cdn.example.com/ep7.mp3", Origin: sources.OriginRSS},
			{URL: "https://www.youtube.com/watch?v=abc123xyz00", Origin: sources.OriginYouTube},
		},
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123xyz00", ytdlp.gotURL)
	assert.Equal(t, 0, searcher.calls)
}

func TestYouTubeFallsBackToSearch(t *testing.T) {
	searcher := &stubSearcher{video: &youtube.Video{
		ID:  "abc123xyz00",
		URL: "https://www.youtube.com/watch?v=abc123xyz00",
	}}
	ytdlp := &stubYtdlp{available: true}
	strategy := NewYouTubeStrategy(searcher, ytdlp)

	req := Request{
		Podcast:    &catalog.Podcast{Name: "Acme Radio Hour"},
		Episode:    routerEpisode(),
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, searcher.video.URL, ytdlp.gotURL)
	assert.FileExists(t, req.OutputPath)
}

func TestYouTubeNoMatchPropagates(t *testing.T) {
	searcher := &stubSearcher{err: youtube.ErrNoMatch}
	strategy := NewYouTubeStrategy(searcher, &stubYtdlp{available: true})

	req := Request{
		Podcast:    &catalog.Podcast{Name: "Acme Radio Hour"},
		Episode:    routerEpisode(),
		OutputPath: filepath.Join(t.TempDir(), "ep.mp3"),
	}

	err := strategy.Download(context.Background(), req)

	assert.ErrorIs(t, err, youtube.ErrNoMatch)
}

func TestYouTubeCanHandleNeedsExtractor(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour"}

	available := NewYouTubeStrategy(nil, &stubYtdlp{available: true})
	missing := NewYouTubeStrategy(nil, &stubYtdlp{available: false})
	nilDownloader := NewYouTubeStrategy(nil, nil)

	assert.True(t, available.CanHandle("", podcast))
	assert.False(t, missing.CanHandle("", podcast))
	assert.False(t, nilDownloader.CanHandle("", podcast))
}
