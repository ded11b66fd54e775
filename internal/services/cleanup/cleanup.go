package cleanup

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/podforge/digest-api/pkg/download"
)

// Evictor brings the audio directory back under its size cap. Satisfied
// by the audiocache service.
type Evictor interface {
	EnforceCap(ctx context.Context, maxBytes int64) (evicted int, freed int64, err error)
}

// Service sweeps transient files the pipeline leaves behind: redirect
// probes and partial downloads in the temp dir, plus trim artifacts a
// crashed upload left next to episode audio. An optional eviction hook
// keeps the audio directory under its configured size cap.
type Service struct {
	tempDir  string
	audioDir string
	maxAge   time.Duration
	interval time.Duration

	evictor  Evictor
	capBytes int64

	cancel context.CancelFunc
}

// NewService creates a cleanup service sweeping tempDir and audioDir.
func NewService(tempDir, audioDir string, maxAge, interval time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		tempDir:  tempDir,
		audioDir: audioDir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// WithEviction attaches the audio-dir cap hook and returns s. capBytes <= 0
// leaves eviction disabled.
func (s *Service) WithEviction(evictor Evictor, capBytes int64) *Service {
	s.evictor = evictor
	s.capBytes = capBytes
	return s
}

// Start runs an immediate sweep and then sweeps on the configured
// interval until the context is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.Sweep(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				log.Println("[INFO] Cleanup service stopped")
				return
			}
		}
	}()

	log.Printf("[INFO] Cleanup service started (interval: %v, max age: %v)", s.interval, s.maxAge)
}

// Stop stops the periodic sweep.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Sweep performs one cleanup pass. The orchestrator also calls this after
// each run so a batch's debris does not wait for the next tick.
func (s *Service) Sweep(ctx context.Context) {
	if err := download.CleanupOldTempFiles(s.tempDir, s.maxAge); err != nil {
		log.Printf("[WARN] cleanup: sweeping %s: %v", s.tempDir, err)
	}

	s.sweepTrimArtifacts()

	if s.evictor != nil && s.capBytes > 0 {
		if _, _, err := s.evictor.EnforceCap(ctx, s.capBytes); err != nil {
			log.Printf("[WARN] cleanup: enforcing audio cap: %v", err)
		}
	}
}

// sweepTrimArtifacts removes stale .trim.mp3 files. These are deleted
// right after a successful upload, so anything old enough to hit the max
// age belongs to a crashed or cancelled run.
func (s *Service) sweepTrimArtifacts() {
	if s.audioDir == "" {
		return
	}
	entries, err := os.ReadDir(s.audioDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[WARN] cleanup: reading %s: %v", s.audioDir, err)
		}
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".trim.mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.audioDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("[WARN] cleanup: removing %s: %v", path, err)
			continue
		}
		log.Printf("[DEBUG] cleanup: removed stale trim artifact %s", entry.Name())
	}
}
