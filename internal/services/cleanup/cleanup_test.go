package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAged creates a file and backdates its mtime by age.
func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

type captureEvictor struct {
	calls    int
	gotBytes int64
}

func (e *captureEvictor) EnforceCap(ctx context.Context, maxBytes int64) (int, int64, error) {
	e.calls++
	e.gotBytes = maxBytes
	return 0, 0, nil
}

func TestSweepRemovesOldTempFiles(t *testing.T) {
	tempDir := t.TempDir()
	stale := writeAged(t, tempDir, "probe.json", 48*time.Hour)
	fresh := writeAged(t, tempDir, "partial.mp3", time.Minute)

	svc := NewService(tempDir, "", 24*time.Hour, time.Hour)
	svc.Sweep(context.Background())

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestSweepRemovesStaleTrimArtifacts(t *testing.T) {
	audioDir := t.TempDir()
	stale := writeAged(t, audioDir, "episode.trim.mp3", 48*time.Hour)
	freshTrim := writeAged(t, audioDir, "current.trim.mp3", time.Minute)
	episode := writeAged(t, audioDir, "episode.mp3", 48*time.Hour)

	svc := NewService(t.TempDir(), audioDir, 24*time.Hour, time.Hour)
	svc.Sweep(context.Background())

	assert.NoFileExists(t, stale)
	// In-flight trims and real episode audio are left alone.
	assert.FileExists(t, freshTrim)
	assert.FileExists(t, episode)
}

func TestSweepInvokesEvictor(t *testing.T) {
	evictor := &captureEvictor{}
	svc := NewService(t.TempDir(), t.TempDir(), time.Hour, time.Hour).
		WithEviction(evictor, 5<<30)

	svc.Sweep(context.Background())

	assert.Equal(t, 1, evictor.calls)
	assert.EqualValues(t, 5<<30, evictor.gotBytes)
}

func TestSweepSkipsEvictorWithoutCap(t *testing.T) {
	evictor := &captureEvictor{}
	svc := NewService(t.TempDir(), t.TempDir(), time.Hour, time.Hour).
		WithEviction(evictor, 0)

	svc.Sweep(context.Background())

	assert.Zero(t, evictor.calls)
}

func TestSweepMissingDirsIsQuiet(t *testing.T) {
	svc := NewService("/nonexistent/temp", "/nonexistent/audio", time.Hour, time.Hour)
	svc.Sweep(context.Background())
}

func TestStartAndStop(t *testing.T) {
	tempDir := t.TempDir()
	stale := writeAged(t, tempDir, "leftover.mp3", 48*time.Hour)

	svc := NewService(tempDir, "", 24*time.Hour, time.Hour)
	svc.Start(context.Background())
	defer svc.Stop()

	// Start runs an eager sweep before the first tick.
	assert.NoFileExists(t, stale)
}
