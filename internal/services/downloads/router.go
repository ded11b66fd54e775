package downloads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/sources"
	"github.com/podforge/digest-api/pkg/audio"
	"github.com/podforge/digest-api/pkg/download"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Config holds router settings. Zero values get production defaults.
type Config struct {
	// AttemptTimeout bounds a single strategy attempt.
	AttemptTimeout time.Duration
	// EpisodeBudget bounds the total wall clock spent on one episode.
	EpisodeBudget time.Duration
	// Backoff is the minimum pause between failed strategies.
	Backoff time.Duration
}

// Service routes an episode through the strategy chain until one produces
// a validated audio file.
type Service struct {
	registry  *Registry
	validator *audio.Validator
	history   HistoryStore
	failures  FailureRecorder

	attemptTimeout time.Duration
	episodeBudget  time.Duration
	backoff        time.Duration
}

// NewService creates a download router. history and failures may be nil
// in tests; nil disables the corresponding recording.
func NewService(cfg Config, registry *Registry, validator *audio.Validator, history HistoryStore, failures FailureRecorder) *Service {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Minute
	}
	if cfg.EpisodeBudget <= 0 {
		cfg.EpisodeBudget = 15 * time.Minute
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if validator == nil {
		validator = audio.NewValidator(nil)
	}
	return &Service{
		registry:       registry,
		validator:      validator,
		history:        history,
		failures:       failures,
		attemptTimeout: cfg.AttemptTimeout,
		episodeBudget:  cfg.EpisodeBudget,
		backoff:        cfg.Backoff,
	}
}

// Download produces exactly one validated audio file at outputPath. An
// existing validated file short-circuits without network work, so the
// pipeline performs at most one download per episode per run.
func (s *Service) Download(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode, candidates []sources.Candidate, outputPath string, mode models.Mode) error {
	if s.reusable(ctx, outputPath) {
		log.Printf("[INFO] downloads: reusing existing audio for %q", episode.Title)
		return nil
	}

	budgetCtx, cancel := context.WithTimeout(ctx, s.episodeBudget)
	defer cancel()

	var history []string
	if s.history != nil {
		var err error
		history, err = s.history.StrategyHistory(ctx, podcast.Name)
		if err != nil {
			log.Printf("[WARN] downloads: loading strategy history for %s: %v", podcast.Name, err)
		}
	}

	names := chainNames(podcast, episode.AudioURL, history)
	chain := resolveChain(s.registry, names, episode.AudioURL, podcast)
	if len(chain) == 0 {
		return errs.DownloadError(errs.KindAllStrategiesFail, "no applicable download strategy", nil).
			WithEpisode(podcast.Name, episode.Title)
	}
	log.Printf("[DEBUG] downloads: chain for %q: %s", episode.Title, strings.Join(strategyNames(chain), " → "))

	req := Request{
		Podcast:    podcast,
		Episode:    episode,
		Candidates: candidates,
		OutputPath: outputPath,
	}

	attempts := make([]map[string]string, 0, len(chain))
	for i, st := range chain {
		if budgetCtx.Err() != nil {
			if ctx.Err() != nil {
				return errs.Cancelled(errs.ComponentDownloads).WithEpisode(podcast.Name, episode.Title)
			}
			log.Printf("[WARN] downloads: episode budget exhausted for %q after %d attempts", episode.Title, i)
			break
		}

		err := s.attempt(budgetCtx, st, req)
		if err == nil {
			s.recordSuccess(ctx, podcast.Name, st.Name(), episode.Title)
			return nil
		}
		if errs.IsCancelled(err) || errors.Is(err, context.Canceled) {
			return errs.Cancelled(errs.ComponentDownloads).WithEpisode(podcast.Name, episode.Title)
		}

		kind := classify(err)
		log.Printf("[WARN] downloads: strategy %s failed for %q: %v", st.Name(), episode.Title, err)
		attempts = append(attempts, map[string]string{
			"strategy": st.Name(),
			"kind":     string(kind),
			"error":    err.Error(),
		})
		if s.failures != nil {
			s.failures.RecordFailure(ctx, errs.ComponentDownloads, episode.Key(), kind, err.Error(), i, mode)
		}

		if i < len(chain)-1 {
			select {
			case <-budgetCtx.Done():
			case <-time.After(s.backoff):
			}
		}
	}

	return errs.DownloadError(errs.KindAllStrategiesFail,
		fmt.Sprintf("no strategy produced audio for %q", episode.Title), nil).
		WithEpisode(podcast.Name, episode.Title).
		WithDetail("attempts", attempts)
}

// attempt runs one strategy under the stage timeout and validates its
// output. Any file left behind by a failed attempt is removed so the next
// strategy starts clean.
func (s *Service) attempt(ctx context.Context, st Strategy, req Request) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	if err := st.Download(attemptCtx, req); err != nil {
		s.removeArtifact(req.OutputPath)
		return err
	}
	if err := s.validator.Validate(ctx, req.OutputPath); err != nil {
		s.removeArtifact(req.OutputPath)
		return errs.DownloadError(errs.KindValidationFailed,
			fmt.Sprintf("%s produced an invalid file: %v", st.Name(), err), err)
	}
	return nil
}

func (s *Service) recordSuccess(ctx context.Context, podcast, strategy, title string) {
	log.Printf("[INFO] downloads: %s succeeded for %q", strategy, title)
	if s.history == nil {
		return
	}
	if err := s.history.RecordStrategy(ctx, podcast, strategy); err != nil {
		log.Printf("[WARN] downloads: recording strategy %s for %s: %v", strategy, podcast, err)
	}
}

// reusable reports whether outputPath already holds validated audio.
func (s *Service) reusable(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	if err := s.validator.Validate(ctx, path); err != nil {
		log.Printf("[DEBUG] downloads: existing %s not reusable: %v", filepath.Base(path), err)
		return false
	}
	return true
}

func (s *Service) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] downloads: removing %s: %v", path, err)
	}
}

func strategyNames(chain []Strategy) []string {
	names := make([]string, len(chain))
	for i, st := range chain {
		names[i] = st.Name()
	}
	return names
}

var statusMsgRe = regexp.MustCompile(`server returned status (\d{3})`)

// classify maps an attempt error onto the failure taxonomy for the
// per-attempt record. Structured errors keep their kind; pkg/download
// sentinels and status-line messages map onto theirs; anything else is a
// plain network failure.
func classify(err error) errs.Kind {
	var perr *errs.PipelineError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	switch {
	case errors.Is(err, download.ErrStalled):
		return errs.KindStalled
	case errors.Is(err, download.ErrMaxTimeout), errors.Is(err, context.DeadlineExceeded):
		return errs.KindMaxTimeout
	}
	msg := err.Error()
	if strings.Contains(msg, "403 Forbidden") {
		return errs.HTTPKind(http.StatusForbidden)
	}
	if m := statusMsgRe.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return errs.HTTPKind(code)
		}
	}
	return errs.KindNetwork
}
