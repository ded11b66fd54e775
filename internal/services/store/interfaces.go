package store

import (
	"context"
	"errors"
	"time"

	"github.com/podforge/digest-api/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Repository is the persistence surface the digest pipeline depends on.
// Episode identity everywhere is the (podcast, title, published) triple
// with published in UTC.
type Repository interface {
	// UpsertEpisode inserts or refreshes an episode. On conflict with an
	// existing row only feed metadata is merged; transcript and summary
	// columns are never touched. Returns the row id.
	UpsertEpisode(ctx context.Context, ep *models.Episode) (uint, error)

	// GetEpisode loads one episode by identity.
	GetEpisode(ctx context.Context, key models.EpisodeKey) (*models.Episode, error)

	// RecentEpisodes lists episodes published at or after since, newest
	// first, optionally filtered to the given podcast names.
	RecentEpisodes(ctx context.Context, since time.Time, podcasts []string) ([]models.Episode, error)

	// EpisodesWithSummary lists episodes that already carry a summary for
	// the given mode.
	EpisodesWithSummary(ctx context.Context, mode models.Mode) ([]models.Episode, error)

	// GetTranscript returns the transcript text and source tag for one
	// mode. It never falls back to the other mode's columns.
	GetTranscript(ctx context.Context, key models.EpisodeKey, mode models.Mode) (text, source string, err error)

	// SaveTranscript writes the mode's transcript column pair.
	SaveTranscript(ctx context.Context, key models.EpisodeKey, mode models.Mode, text, source string) error

	// GetSummary returns (paragraph, long) for one mode. Either may be
	// empty; partial reads are allowed.
	GetSummary(ctx context.Context, key models.EpisodeKey, mode models.Mode) (paragraph, long string, err error)

	// SaveSummary writes both summary columns for one mode in a single
	// statement.
	SaveSummary(ctx context.Context, key models.EpisodeKey, mode models.Mode, paragraph, long string) error

	// RecordDownloadStrategy moves the strategy to the front of the
	// podcast's MRU success history (bounded to models.MaxStrategyHistory).
	RecordDownloadStrategy(ctx context.Context, podcast, strategy string) error

	// LoadStrategyHistory returns the MRU history, most recent first.
	// Podcasts with no history yield an empty list, not an error.
	LoadStrategyHistory(ctx context.Context, podcast string) ([]string, error)

	// AppendFailure records a pipeline failure and trims retention to
	// models.MaxFailureRecords.
	AppendFailure(ctx context.Context, f *models.Failure) error

	// RecentFailures lists the newest failures up to limit.
	RecentFailures(ctx context.Context, limit int) ([]models.Failure, error)
}
