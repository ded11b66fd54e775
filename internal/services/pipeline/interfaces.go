package pipeline

import (
	"context"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/episodes"
	"github.com/podforge/digest-api/internal/services/sources"
	"github.com/podforge/digest-api/internal/services/summaries"
	"github.com/podforge/digest-api/internal/services/transcription"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Orchestrator is the UI boundary: list episodes for selection, process a
// selected batch, cancel the batch in flight.
type Orchestrator interface {
	// ListRecentEpisodes fetches and persists the recent window for the
	// selected podcasts (every catalog podcast when selected is empty).
	ListRecentEpisodes(ctx context.Context, selected []string, daysBack int, progress episodes.ProgressFunc) ([]models.Episode, error)

	// ProcessEpisodes runs the stage pipeline over a batch. Per-episode
	// failures are recorded and never abort the batch; the error return
	// is reserved for fatal conditions (run bookkeeping, double start).
	ProcessEpisodes(ctx context.Context, eps []models.Episode, mode models.Mode, progress ProgressFunc) (*RunResult, error)

	// StartRun creates the run record synchronously and processes the
	// batch on a background goroutine, so callers get an ID to poll.
	StartRun(ctx context.Context, eps []models.Episode, mode models.Mode) (*models.Run, error)

	// Cancel stops the in-flight run at the next stage boundary. It is
	// idempotent, fire-and-forget, and a no-op when nothing runs.
	Cancel()

	// Events returns the progress buffer. The buffer holds the current
	// or most recent run only; a non-zero runID belonging to an earlier
	// run returns nil. Zero means whatever is buffered.
	Events(runID uint) []Event
}

// Store is the persistence surface the orchestrator drives. Satisfied by
// *store.Service.
type Store interface {
	Upsert(ctx context.Context, ep *models.Episode) (uint, error)
	Transcript(ctx context.Context, key models.EpisodeKey, mode models.Mode) (text, source string, err error)
	SaveTranscript(ctx context.Context, key models.EpisodeKey, mode models.Mode, text, source string) error
	Summary(ctx context.Context, key models.EpisodeKey, mode models.Mode) (paragraph, long string, err error)
	SaveSummary(ctx context.Context, key models.EpisodeKey, mode models.Mode, paragraph, long string) error
	StrategyHistory(ctx context.Context, podcast string) ([]string, error)
	RecordFailure(ctx context.Context, component string, key models.EpisodeKey, kind errs.Kind, message string, retries int, mode models.Mode)
}

// TranscriptFinder locates an existing transcript without touching audio.
// Satisfied by *transcripts.Service.
type TranscriptFinder interface {
	Find(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode, mode models.Mode) (text, source string, err error)
}

// Downloader produces one validated audio file per episode. Satisfied by
// *downloads.Service.
type Downloader interface {
	Download(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode, candidates []sources.Candidate, outputPath string, mode models.Mode) error
}

// RunRecorder is the slice of the runs service the orchestrator updates.
type RunRecorder interface {
	Begin(ctx context.Context, mode models.Mode, total int) (*models.Run, error)
	RecordEpisode(ctx context.Context, runID uint, failed bool) error
	Finish(ctx context.Context, runID uint, status models.RunStatus, stats models.RunStats, errMsg string) error
}

// Artifacts is the slice of the audio cache index the orchestrator feeds.
type Artifacts interface {
	Record(ctx context.Context, episode *models.Episode, mode models.Mode, path, strategy string) (*models.AudioCacheEntry, error)
	MarkTranscribed(ctx context.Context, path string) error
	EnforceCap(ctx context.Context, maxBytes int64) (evicted int, freed int64, err error)
}

// Dependencies carries the stage services the orchestrator drives. Runs
// and Artifacts may be nil; nil disables that bookkeeping.
type Dependencies struct {
	Catalog     *catalog.Catalog
	Fetcher     episodes.Fetcher
	Store       Store
	Transcripts TranscriptFinder
	Sources     sources.Finder
	Downloads   Downloader
	Transcriber transcription.Transcriber
	Summarizer  summaries.Summarizer
	Runs        RunRecorder
	Artifacts   Artifacts
}

// Config bounds the orchestrator. Zero values get production defaults.
type Config struct {
	// AudioDir is where episode audio artifacts live.
	AudioDir string
	// DownloadSlots, TranscribeSlots and SummarizeSlots bound concurrent
	// work per stage across the whole batch.
	DownloadSlots   int64
	TranscribeSlots int64
	SummarizeSlots  int64
	// BatchSlots bounds episodes in flight at once.
	BatchSlots int
	// RetryAttempts is the number of extra tries for transcription and
	// summarization on retryable errors; RetryBackoff doubles per try.
	RetryAttempts int
	RetryBackoff  time.Duration
	// DaysBack is the default fetch window.
	DaysBack int
	// MaxAudioBytes caps the audio directory after a run; 0 disables
	// eviction.
	MaxAudioBytes int64
}

func (c *Config) setDefaults() {
	if c.AudioDir == "" {
		c.AudioDir = "downloads"
	}
	if c.DownloadSlots <= 0 {
		c.DownloadSlots = 10
	}
	if c.TranscribeSlots <= 0 {
		c.TranscribeSlots = 10
	}
	if c.SummarizeSlots <= 0 {
		c.SummarizeSlots = 20
	}
	if c.BatchSlots <= 0 {
		c.BatchSlots = 32
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 2
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.DaysBack <= 0 {
		c.DaysBack = 7
	}
}

// EpisodeSummary is one processed episode's output in a run result.
type EpisodeSummary struct {
	Title     string `json:"title"`
	Paragraph string `json:"paragraph"`
	Long      string `json:"long"`
}

// RunResult aggregates one finished batch, grouped by podcast. Episodes
// that failed or were cancelled do not appear in Summaries.
type RunResult struct {
	RunID     uint                        `json:"run_id,omitempty"`
	Summaries map[string][]EpisodeSummary `json:"summaries"`
	Processed int                         `json:"processed"`
	Failed    int                         `json:"failed"`
	Cancelled bool                        `json:"cancelled"`
}
