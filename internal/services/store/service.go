package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Service wraps the repository with the pipeline's error taxonomy: DB
// failures surface as retryable store errors, cache misses do not.
type Service struct {
	repo    Repository
	mirrors *Mirrors
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// WithMirrors attaches a best-effort mirror writer and returns s.
func (s *Service) WithMirrors(m *Mirrors) *Service {
	s.mirrors = m
	return s
}

func (s *Service) Upsert(ctx context.Context, ep *models.Episode) (uint, error) {
	id, err := s.repo.UpsertEpisode(ctx, ep)
	if err != nil {
		return 0, errs.StoreError(errs.KindStoreIO, "upsert_episode", err)
	}
	return id, nil
}

// Episode loads one episode. ErrNotFound passes through unwrapped so
// callers can distinguish absence from IO failure.
func (s *Service) Episode(ctx context.Context, key models.EpisodeKey) (*models.Episode, error) {
	ep, err := s.repo.GetEpisode(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errs.StoreError(errs.KindStoreIO, "get_episode", err)
	}
	return ep, nil
}

func (s *Service) Recent(ctx context.Context, since time.Time, podcasts []string) ([]models.Episode, error) {
	eps, err := s.repo.RecentEpisodes(ctx, since, podcasts)
	if err != nil {
		return nil, errs.StoreError(errs.KindStoreIO, "recent_episodes", err)
	}
	return eps, nil
}

func (s *Service) WithSummaries(ctx context.Context, mode models.Mode) ([]models.Episode, error) {
	eps, err := s.repo.EpisodesWithSummary(ctx, mode)
	if err != nil {
		return nil, errs.StoreError(errs.KindStoreIO, "episodes_with_summary", err)
	}
	return eps, nil
}

// Transcript returns the cached transcript for one mode. A missing row or
// empty column is a cache miss, reported as empty text with a nil error.
func (s *Service) Transcript(ctx context.Context, key models.EpisodeKey, mode models.Mode) (text, source string, err error) {
	text, source, err = s.repo.GetTranscript(ctx, key, mode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", "", nil
		}
		return "", "", errs.StoreError(errs.KindStoreIO, "get_transcript", err)
	}
	return text, source, nil
}

func (s *Service) SaveTranscript(ctx context.Context, key models.EpisodeKey, mode models.Mode, text, source string) error {
	if err := s.repo.SaveTranscript(ctx, key, mode, text, source); err != nil {
		return errs.StoreError(errs.KindStoreIO, "save_transcript", err)
	}
	if s.mirrors != nil {
		s.mirrors.WriteTranscript(key, mode, text)
	}
	return nil
}

// Summary returns the cached (paragraph, long) pair for one mode. Partial
// results are allowed; a missing row reads as two empty strings.
func (s *Service) Summary(ctx context.Context, key models.EpisodeKey, mode models.Mode) (paragraph, long string, err error) {
	paragraph, long, err = s.repo.GetSummary(ctx, key, mode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", "", nil
		}
		return "", "", errs.StoreError(errs.KindStoreIO, "get_summary", err)
	}
	return paragraph, long, nil
}

func (s *Service) SaveSummary(ctx context.Context, key models.EpisodeKey, mode models.Mode, paragraph, long string) error {
	if err := s.repo.SaveSummary(ctx, key, mode, paragraph, long); err != nil {
		return errs.StoreError(errs.KindStoreIO, "save_summary", err)
	}
	if s.mirrors != nil {
		s.mirrors.WriteSummary(key, mode, paragraph, long)
	}
	return nil
}

func (s *Service) RecordStrategy(ctx context.Context, podcast, strategy string) error {
	if err := s.repo.RecordDownloadStrategy(ctx, podcast, strategy); err != nil {
		return errs.StoreError(errs.KindStoreIO, "record_download_strategy", err)
	}
	return nil
}

func (s *Service) StrategyHistory(ctx context.Context, podcast string) ([]string, error) {
	history, err := s.repo.LoadStrategyHistory(ctx, podcast)
	if err != nil {
		return nil, errs.StoreError(errs.KindStoreIO, "load_strategy_history", err)
	}
	return history, nil
}

// RecordFailure appends an observability record for an error the pipeline
// swallowed. Recording must never mask the original failure, so repository
// errors here are logged and dropped.
func (s *Service) RecordFailure(ctx context.Context, component string, key models.EpisodeKey, kind errs.Kind, message string, retries int, mode models.Mode) {
	failure := &models.Failure{
		Timestamp: time.Now().UTC(),
		Component: component,
		Podcast:   key.Podcast,
		Title:     key.Title,
		ErrorKind: string(kind),
		ErrorMsg:  message,
		Retries:   retries,
		Mode:      mode,
	}
	if err := s.repo.AppendFailure(ctx, failure); err != nil {
		log.Printf("[WARN] Failed to record failure for %s/%s: %v", key.Podcast, key.Title, err)
	}
}

func (s *Service) Failures(ctx context.Context, limit int) ([]models.Failure, error) {
	failures, err := s.repo.RecentFailures(ctx, limit)
	if err != nil {
		return nil, errs.StoreError(errs.KindStoreIO, "recent_failures", err)
	}
	return failures, nil
}
