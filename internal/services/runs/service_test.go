package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/podforge/digest-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Run{}))
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	db := setupTestDB(t)
	return NewService(NewRepository(db)), db
}

func TestBeginCreatesRun(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.Begin(ctx, models.ModeTest, 12)
	require.NoError(t, err)
	require.NotZero(t, run.ID)

	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, models.ModeTest, run.Mode)
	assert.Equal(t, 12, run.Total)
	assert.False(t, run.StartedAt.IsZero())
	assert.Nil(t, run.FinishedAt)
}

func TestBeginRejectsSecondActiveRun(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Begin(ctx, models.ModeFull, 3)
	require.NoError(t, err)

	_, err = svc.Begin(ctx, models.ModeFull, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunActive)

	// Finishing the first run frees the slot.
	require.NoError(t, svc.Finish(ctx, first.ID, models.RunStatusCompleted, nil, ""))

	second, err := svc.Begin(ctx, models.ModeFull, 5)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRecordEpisodeCounters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.Begin(ctx, models.ModeTest, 4)
	require.NoError(t, err)

	require.NoError(t, svc.RecordEpisode(ctx, run.ID, false))
	require.NoError(t, svc.RecordEpisode(ctx, run.ID, false))
	require.NoError(t, svc.RecordEpisode(ctx, run.ID, true))

	got, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Completed)
	assert.Equal(t, 1, got.Failed)
}

func TestRecordEpisodeAfterFinishIsIgnored(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.Begin(ctx, models.ModeTest, 2)
	require.NoError(t, err)
	require.NoError(t, svc.RecordEpisode(ctx, run.ID, false))
	require.NoError(t, svc.Finish(ctx, run.ID, models.RunStatusCancelled, nil, ""))

	// A straggling episode result after cancellation must not mutate the row.
	require.NoError(t, svc.RecordEpisode(ctx, run.ID, false))

	got, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, models.RunStatusCancelled, got.Status)
}

func TestRecordEpisodeMissingRun(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.RecordEpisode(context.Background(), 999, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFinishPersistsStatsAndError(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.Begin(ctx, models.ModeFull, 1)
	require.NoError(t, err)

	stats := models.RunStats{"downloaded": 1, "cache_hits": 0}
	require.NoError(t, svc.Finish(ctx, run.ID, models.RunStatusFailed, stats, "asr credentials missing"))

	got, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "asr credentials missing", got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.WithinDuration(t, time.Now(), *got.FinishedAt, 5*time.Second)

	// JSON round trip through the stats column.
	assert.EqualValues(t, 1, got.Stats["downloaded"])
}

func TestFinishIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	run, err := svc.Begin(ctx, models.ModeTest, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Finish(ctx, run.ID, models.RunStatusCancelled, nil, ""))
	// Second terminal transition loses the race and is dropped.
	require.NoError(t, svc.Finish(ctx, run.ID, models.RunStatusCompleted, nil, ""))

	got, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, got.Status)
}

func TestGetMissingRun(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestActiveRun(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Active(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	run, err := svc.Begin(ctx, models.ModeTest, 2)
	require.NoError(t, err)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, active.ID)
}

func TestListNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Begin(ctx, models.ModeTest, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, first.ID, models.RunStatusCompleted, nil, ""))

	second, err := svc.Begin(ctx, models.ModeFull, 2)
	require.NoError(t, err)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestCleanupOldRuns(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	old, err := svc.Begin(ctx, models.ModeTest, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Finish(ctx, old.ID, models.RunStatusCompleted, nil, ""))

	// Backdate the finished run past the retention window.
	backdated := time.Now().AddDate(0, 0, -60)
	require.NoError(t, db.Model(&models.Run{}).Where("id = ?", old.ID).
		Update("created_at", backdated).Error)

	current, err := svc.Begin(ctx, models.ModeTest, 1)
	require.NoError(t, err)

	deleted, err := svc.CleanupOldRuns(ctx, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = svc.Get(ctx, current.ID)
	assert.NoError(t, err)
}

func TestCleanupKeepsRunningRuns(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	run, err := svc.Begin(ctx, models.ModeFull, 1)
	require.NoError(t, err)

	backdated := time.Now().AddDate(0, 0, -60)
	require.NoError(t, db.Model(&models.Run{}).Where("id = ?", run.ID).
		Update("created_at", backdated).Error)

	deleted, err := svc.CleanupOldRuns(ctx, 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	got, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
}

func TestCleanupRejectsNonPositiveRetention(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CleanupOldRuns(context.Background(), 0)
	assert.Error(t, err)
}
