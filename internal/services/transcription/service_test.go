package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
)

type stubEngine struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	paths []string
}

func (s *stubEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.paths = append(s.paths, audioPath)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubTrimmer struct {
	err      error
	calls    int
	gotLimit time.Duration
}

func (s *stubTrimmer) Trim(ctx context.Context, input, output string, limit time.Duration) error {
	s.calls++
	s.gotLimit = limit
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(output, []byte("trimmed audio"), 0o644)
}

func asrEpisode() *models.Episode {
	return &models.Episode{
		Podcast: "Acme Radio Hour",
		Title:   "Ep 7: Ada Lovelace on Analytical Engines",
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.mp3")
	require.NoError(t, os.WriteFile(path, []byte("original audio"), 0o644))
	return path
}

func TestTranscribeTestModeTrims(t *testing.T) {
	engine := &stubEngine{text: "Speaker A: hello"}
	trimmer := &stubTrimmer{}
	svc := NewService(Config{}, engine, trimmer)
	audio := writeAudio(t)

	text, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeTest)

	require.NoError(t, err)
	assert.Equal(t, "Speaker A: hello", text)
	assert.Equal(t, 1, trimmer.calls)
	assert.Equal(t, 15*time.Minute, trimmer.gotLimit)

	trimmed := filepath.Join(filepath.Dir(audio), "episode.trim.mp3")
	require.Len(t, engine.paths, 1)
	assert.Equal(t, trimmed, engine.paths[0])
	assert.NoFileExists(t, trimmed)
	assert.FileExists(t, audio)
}

func TestTranscribeFullModeSkipsTrim(t *testing.T) {
	engine := &stubEngine{text: "full text"}
	trimmer := &stubTrimmer{}
	svc := NewService(Config{}, engine, trimmer)
	audio := writeAudio(t)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)

	require.NoError(t, err)
	assert.Equal(t, 0, trimmer.calls)
	require.Len(t, engine.paths, 1)
	assert.Equal(t, audio, engine.paths[0])
}

func TestTranscribeTrimFailureUploadsOriginal(t *testing.T) {
	engine := &stubEngine{text: "text"}
	trimmer := &stubTrimmer{err: errors.New("muxer refused")}
	svc := NewService(Config{}, engine, trimmer)
	audio := writeAudio(t)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeTest)

	require.NoError(t, err)
	require.Len(t, engine.paths, 1)
	assert.Equal(t, audio, engine.paths[0])
}

func TestTranscribeNilTrimmer(t *testing.T) {
	engine := &stubEngine{text: "text"}
	svc := NewService(Config{}, engine, nil)
	audio := writeAudio(t)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeTest)

	require.NoError(t, err)
	require.Len(t, engine.paths, 1)
	assert.Equal(t, audio, engine.paths[0])
}

func TestTranscribeWrapsEngineError(t *testing.T) {
	engine := &stubEngine{err: errors.New("connection reset")}
	svc := NewService(Config{}, engine, nil)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), writeAudio(t), models.ModeFull)

	require.Error(t, err)
	var pe *errs.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, errs.KindASRUpload, pe.Kind)
	assert.Equal(t, "Acme Radio Hour", pe.Podcast)
	assert.Equal(t, "Ep 7: Ada Lovelace on Analytical Engines", pe.Episode)
}

func TestTranscribePreservesErrorKind(t *testing.T) {
	engine := &stubEngine{err: errs.ASRError(errs.KindASRJobFailed, "job failed: bad audio", nil)}
	svc := NewService(Config{}, engine, nil)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), writeAudio(t), models.ModeFull)

	require.Error(t, err)
	assert.Equal(t, errs.KindASRJobFailed, errs.KindOf(err))
	var pe *errs.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Acme Radio Hour", pe.Podcast)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	engine := &stubEngine{err: errors.New("boom")}
	svc := NewService(Config{BreakerThreshold: 2, BreakerCooldown: time.Minute}, engine, nil)
	audio := writeAudio(t)

	for i := 0; i < 2; i++ {
		_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
		require.Error(t, err)
	}
	assert.Equal(t, 2, engine.calls)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)

	require.Error(t, err)
	assert.Equal(t, errs.KindASRQuota, errs.KindOf(err))
	assert.Contains(t, err.Error(), "suspended")
	assert.Equal(t, 2, engine.calls)
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	engine := &stubEngine{err: errors.New("boom")}
	svc := NewService(Config{BreakerThreshold: 2, BreakerCooldown: time.Minute}, engine, nil)
	audio := writeAudio(t)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.Error(t, err)

	engine.err = nil
	_, err = svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.NoError(t, err)

	engine.err = errors.New("boom again")
	_, err = svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.Error(t, err)

	// One failure since the success; the breaker must still be closed.
	engine.err = nil
	_, err = svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 4, engine.calls)
}

func TestBreakerCooldownExpires(t *testing.T) {
	engine := &stubEngine{err: errors.New("boom")}
	svc := NewService(Config{BreakerThreshold: 1, BreakerCooldown: time.Minute}, engine, nil)
	audio := writeAudio(t)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.Error(t, err)

	_, err = svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.Error(t, err)
	assert.Equal(t, errs.KindASRQuota, errs.KindOf(err))

	svc.breaker.mu.Lock()
	svc.breaker.openUntil = time.Now().Add(-time.Second)
	svc.breaker.mu.Unlock()

	engine.err = nil
	_, err = svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.calls)
}

func TestCancellationDoesNotTripBreaker(t *testing.T) {
	engine := &stubEngine{err: context.Canceled}
	svc := NewService(Config{BreakerThreshold: 1, BreakerCooldown: time.Minute}, engine, nil)
	audio := writeAudio(t)

	_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)

	require.Error(t, err)
	assert.True(t, errs.IsCancelled(err))

	engine.err = nil
	_, err = svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 2, engine.calls)
}

type gateEngine struct {
	mu      sync.Mutex
	inside  int
	maxSeen int
	release chan struct{}
}

func (g *gateEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	g.mu.Lock()
	g.inside++
	if g.inside > g.maxSeen {
		g.maxSeen = g.inside
	}
	g.mu.Unlock()

	<-g.release

	g.mu.Lock()
	g.inside--
	g.mu.Unlock()
	return "text", nil
}

func TestConcurrencyLimitPerMode(t *testing.T) {
	engine := &gateEngine{release: make(chan struct{})}
	svc := NewService(Config{MaxConcurrent: 2}, engine, nil)
	audio := writeAudio(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transcribe(context.Background(), asrEpisode(), audio, models.ModeTest)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(engine.release)
	wg.Wait()

	assert.LessOrEqual(t, engine.maxSeen, 2)
}
