package runs

import (
	"context"

	"github.com/podforge/digest-api/internal/models"
)

// Service defines run-record operations used by the HTTP API and the
// pipeline orchestrator. A Run is one operator-initiated batch; the API
// creates it, the orchestrator updates counters as episodes finish and
// moves it to a terminal status at the end.
type Service interface {
	// Begin creates a running Run row for a new batch. Only one run may
	// be live at a time; Begin returns ErrRunActive while another run is
	// still running.
	Begin(ctx context.Context, mode models.Mode, total int) (*models.Run, error)

	// Get returns a run by ID.
	Get(ctx context.Context, runID uint) (*models.Run, error)

	// Active returns the current non-terminal run, or ErrRunNotFound.
	Active(ctx context.Context) (*models.Run, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]models.Run, error)

	// RecordEpisode increments the run's completed or failed counter.
	RecordEpisode(ctx context.Context, runID uint, failed bool) error

	// Finish moves a running run to a terminal status with final stats.
	// Finishing an already-terminal run is a no-op, so cancellation and
	// normal completion can race safely.
	Finish(ctx context.Context, runID uint, status models.RunStatus, stats models.RunStats, errMsg string) error

	// CleanupOldRuns deletes terminal runs older than retentionDays.
	CleanupOldRuns(ctx context.Context, retentionDays int) (int64, error)
}
