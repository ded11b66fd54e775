package transcription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
)

// Config holds transcriber settings. Zero values get production defaults.
type Config struct {
	// MaxMinutes caps the audio length uploaded in test mode.
	MaxMinutes int
	// MaxConcurrent bounds in-flight transcriptions in test mode.
	MaxConcurrent int
	// FullConcurrent bounds in-flight transcriptions in full mode.
	FullConcurrent int
	// BreakerThreshold is how many consecutive failures open the breaker.
	BreakerThreshold int
	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration
}

// Service runs speech-to-text over downloaded audio: trims test-mode
// uploads, bounds concurrency per mode, and trips a circuit breaker when
// the remote service fails repeatedly.
type Service struct {
	engine  Engine
	trimmer Trimmer
	breaker *breaker

	semTest    *semaphore.Weighted
	semFull    *semaphore.Weighted
	maxMinutes int
}

// NewService wires the transcriber. A nil trimmer disables test-mode
// trimming; full files are uploaded instead.
func NewService(cfg Config, engine Engine, trimmer Trimmer) *Service {
	if cfg.MaxMinutes <= 0 {
		cfg.MaxMinutes = 15
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.FullConcurrent <= 0 {
		cfg.FullConcurrent = 3
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 5 * time.Minute
	}
	if trimmer == nil {
		log.Printf("[WARN] transcription: no trimmer configured, test mode uploads full episodes")
	}
	return &Service{
		engine:     engine,
		trimmer:    trimmer,
		breaker:    &breaker{threshold: cfg.BreakerThreshold, cooldown: cfg.BreakerCooldown},
		semTest:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		semFull:    semaphore.NewWeighted(int64(cfg.FullConcurrent)),
		maxMinutes: cfg.MaxMinutes,
	}
}

// Transcribe produces transcript text for a downloaded episode. The
// original audio file is left in place; only the trimmed temp is removed.
func (s *Service) Transcribe(ctx context.Context, episode *models.Episode, audioPath string, mode models.Mode) (string, error) {
	if wait := s.breaker.wait(); wait > 0 {
		return "", errs.ASRError(errs.KindASRQuota,
			fmt.Sprintf("transcription suspended for %s after repeated failures", wait.Round(time.Second)), nil).
			WithEpisode(episode.Podcast, episode.Title)
	}

	sem := s.semFull
	if mode == models.ModeTest {
		sem = s.semTest
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return "", errs.Cancelled(errs.ComponentTranscription).WithEpisode(episode.Podcast, episode.Title)
	}
	defer sem.Release(1)

	uploadPath := audioPath
	if mode == models.ModeTest {
		trimmed, err := s.trimForUpload(ctx, audioPath)
		if err != nil {
			log.Printf("[WARN] transcription: trimming %s failed, uploading full file: %v", filepath.Base(audioPath), err)
		} else if trimmed != audioPath {
			defer os.Remove(trimmed)
			uploadPath = trimmed
		}
	}

	start := time.Now()
	text, err := s.engine.Transcribe(ctx, uploadPath)
	if err != nil {
		if errs.IsCancelled(err) || errors.Is(err, context.Canceled) {
			return "", errs.Cancelled(errs.ComponentTranscription).WithEpisode(episode.Podcast, episode.Title)
		}
		s.breaker.failure()
		var pe *errs.PipelineError
		if errors.As(err, &pe) {
			return "", pe.WithEpisode(episode.Podcast, episode.Title)
		}
		return "", errs.ASRError(errs.KindASRUpload, "transcription failed", err).
			WithEpisode(episode.Podcast, episode.Title)
	}
	s.breaker.success()

	log.Printf("[INFO] transcription: %q done in %s (%d chars)", episode.Title, time.Since(start).Round(time.Second), len(text))
	return text, nil
}

// trimForUpload cuts the audio to the test-mode cap. Returns the input
// path unchanged when no trimmer is configured.
func (s *Service) trimForUpload(ctx context.Context, audioPath string) (string, error) {
	if s.trimmer == nil {
		return audioPath, nil
	}
	limit := time.Duration(s.maxMinutes) * time.Minute
	trimmed := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".trim.mp3"
	if err := s.trimmer.Trim(ctx, audioPath, trimmed, limit); err != nil {
		os.Remove(trimmed)
		return audioPath, err
	}
	log.Printf("[DEBUG] transcription: trimmed %s to %d minutes", filepath.Base(audioPath), s.maxMinutes)
	return trimmed, nil
}

// breaker counts consecutive failures and suspends calls for a cooldown
// once the threshold is hit.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
}

// wait returns how long calls stay suspended, or zero when closed.
func (b *breaker) wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := time.Until(b.openUntil); remaining > 0 {
		return remaining
	}
	return 0
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
		b.failures = 0
		log.Printf("[WARN] transcription: %d consecutive failures, suspending calls for %s", b.threshold, b.cooldown)
	}
}
