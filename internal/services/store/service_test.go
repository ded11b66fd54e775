package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
)

func TestService_TranscriptCacheMiss(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(NewRepository(db))

	// No such episode at all: a cache miss, not an error.
	key := models.EpisodeKey{Podcast: "Nobody", Title: "Nothing", Published: time.Now().UTC()}
	text, source, err := svc.Transcript(context.Background(), key, models.ModeFull)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, source)
}

func TestService_EpisodeNotFoundPassthrough(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(NewRepository(db))

	key := models.EpisodeKey{Podcast: "Nobody", Title: "Nothing", Published: time.Now().UTC()}
	_, err := svc.Episode(context.Background(), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errs.IsRetryable(err))
}

func TestService_IOErrorsAreRetryable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(NewRepository(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.Upsert(context.Background(), testEpisode("Acme Radio Hour", "Ep 1", time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, errs.IsRetryable(err))
	assert.Equal(t, errs.KindStoreIO, errs.KindOf(err))
}

func TestService_RecordFailureSwallowsErrors(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(NewRepository(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// Must not panic or propagate; the original failure matters more.
	key := models.EpisodeKey{Podcast: "Acme Radio Hour", Title: "Ep 1", Published: time.Now().UTC()}
	svc.RecordFailure(context.Background(), errs.ComponentDownloads, key, errs.KindStalled, "stalled after 60s", 2, models.ModeFull)
}
