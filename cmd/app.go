package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/database"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/audiocache"
	"github.com/podforge/digest-api/internal/services/cache"
	"github.com/podforge/digest-api/internal/services/cleanup"
	"github.com/podforge/digest-api/internal/services/downloads"
	"github.com/podforge/digest-api/internal/services/episodes"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/pipeline"
	"github.com/podforge/digest-api/internal/services/podcastindex"
	"github.com/podforge/digest-api/internal/services/runs"
	"github.com/podforge/digest-api/internal/services/sources"
	"github.com/podforge/digest-api/internal/services/spotify"
	"github.com/podforge/digest-api/internal/services/store"
	"github.com/podforge/digest-api/internal/services/summaries"
	"github.com/podforge/digest-api/internal/services/transcription"
	"github.com/podforge/digest-api/internal/services/transcripts"
	"github.com/podforge/digest-api/internal/services/youtube"
	"github.com/podforge/digest-api/pkg/audio"
	"github.com/podforge/digest-api/pkg/config"
	"github.com/podforge/digest-api/pkg/download"
	"github.com/podforge/digest-api/pkg/ffmpeg"
)

// app is the wired service graph shared by the serve and run commands.
type app struct {
	DB       *database.DB
	Catalog  *catalog.Catalog
	Cache    *cache.MemoryCache
	Store    *store.Service
	Runs     runs.Service
	Cleanup  *cleanup.Service
	Pipeline *pipeline.Service
}

// buildApp wires every stage service from config. Missing credentials do
// not block startup: the fetcher, transcriber and summarizer fail per
// episode at run time, and serving already-stored data keeps working.
func buildApp(cfg *config.Config) (*app, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Loaded %d podcasts from %s", cat.Len(), cfg.Catalog.Path)

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	memCache := cache.NewMemoryCache(cache.Options{
		DefaultTTL:      cfg.Cache.Memory.DefaultTTL,
		CleanupInterval: cfg.Cache.Memory.CleanupInterval,
		MaxEntries:      cfg.Cache.Memory.MaxEntries,
	})

	storeSvc := store.NewService(store.NewRepository(db.DB))
	if cfg.Storage.WriteMirrors {
		storeSvc = storeSvc.WithMirrors(store.NewMirrors(cfg.Storage.BaseDir))
	}

	// Directory clients. The iTunes client carries its own rate limit
	// defaults; Podcast Index and Spotify disable themselves without
	// credentials.
	itunesClient := itunes.NewCachedClient(itunes.Config{}, memCache, cfg.Cache.API.LookupTTL)
	piClient := podcastindex.NewClient(podcastindex.Config{
		APIKey:    cfg.PodcastIndex.APIKey,
		APISecret: cfg.PodcastIndex.APISecret,
		BaseURL:   cfg.PodcastIndex.BaseURL,
		UserAgent: cfg.PodcastIndex.UserAgent,
		Timeout:   cfg.PodcastIndex.Timeout,
	})
	spotifyClient := spotify.NewClient(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
	})

	ff := ffmpeg.New(cfg.Transcription.FFmpegPath, cfg.Transcription.FFprobePath, cfg.Transcription.FFmpegTimeout)

	ytSearch := youtube.NewService(youtube.Config{
		APIKey:    cfg.YouTube.APIKey,
		Timeout:   cfg.YouTube.SearchTimeout,
		UserAgent: cfg.Download.UserAgent,
	})
	ytCaptions := youtube.NewCaptions(youtube.CaptionsConfig{
		Timeout:   cfg.YouTube.SearchTimeout,
		UserAgent: cfg.Download.UserAgent,
	})
	ytdlp := youtube.NewYtdlp(youtube.YtdlpConfig{
		Path:        cfg.YouTube.YtdlpPath,
		CookiesDir:  cfg.YouTube.CookiesDir,
		Timeout:     cfg.Download.MaxTimeout,
		AudioFormat: cfg.YouTube.DownloadAudio,
	}, ff)

	fetcher := episodes.NewService(episodes.Config{
		ConnectTimeout: cfg.Fetch.ConnectTimeout,
		TotalTimeout:   cfg.Fetch.TotalTimeout,
		UserAgent:      cfg.Download.UserAgent,
		MaxConcurrent:  cfg.Fetch.MaxConcurrent,
		VerifyApple:    cfg.Fetch.VerifyApple,
		FetchMissing:   cfg.Fetch.FetchMissing,
	}, itunesClient, piClient, storeSvc)

	transcriptFinder := transcripts.NewService(transcripts.Config{
		FetchTimeout: cfg.Fetch.TotalTimeout,
	}, storeSvc, piClient, ytSearch, ytCaptions)

	sourceFinder := sources.NewService(sources.Config{
		ProbeTimeout: cfg.Fetch.ConnectTimeout,
		UserAgent:    cfg.Download.UserAgent,
	}, itunesClient, ytSearch)

	opts := download.DefaultOptions()
	opts.StallTimeout = cfg.Download.StallTimeout
	opts.MaxTimeout = cfg.Download.MaxTimeout
	opts.MinSpeed = cfg.Download.MinSpeed
	if cfg.Download.UserAgent != "" {
		opts.UserAgent = cfg.Download.UserAgent
	}

	registry := downloads.NewRegistry(
		downloads.NewDirectStrategy(opts),
		downloads.NewAppleStrategy(itunesClient, opts),
		downloads.NewYouTubeStrategy(ytSearch, ytdlp),
		downloads.NewBrowserStrategy(downloads.BrowserConfig{
			UserAgent: opts.UserAgent,
		}).WithPageFinder(spotifyClient),
	)
	downloader := downloads.NewService(downloads.Config{
		AttemptTimeout: cfg.Download.StageTimeout,
		EpisodeBudget:  cfg.Download.EpisodeTimeout,
	}, registry, audio.NewValidator(ff), storeSvc, storeSvc)

	transcriber := transcription.NewService(transcription.Config{
		MaxMinutes:       cfg.Transcription.MaxMinutes,
		MaxConcurrent:    cfg.Transcription.MaxConcurrent,
		FullConcurrent:   cfg.Transcription.FullConcurrent,
		BreakerThreshold: cfg.Transcription.BreakerThreshold,
		BreakerCooldown:  cfg.Transcription.BreakerCooldown,
	}, transcription.NewClient(transcription.ClientConfig{
		APIKey:        cfg.Transcription.APIKey,
		BaseURL:       cfg.Transcription.BaseURL,
		SpeakerLabels: cfg.Transcription.SpeakerLabels,
		PollInitial:   cfg.Transcription.PollInitial,
		PollFactor:    cfg.Transcription.PollFactor,
		PollCap:       cfg.Transcription.PollCap,
		PollOverall:   cfg.Transcription.PollOverall,
	}), ff)

	summarizer := summaries.NewService(summaries.Config{
		Model:            cfg.Summarize.Model,
		Temperature:      cfg.Summarize.Temperature,
		ParagraphWords:   cfg.Summarize.ParagraphWords,
		RatePerMinute:    cfg.Summarize.RatePerMinute,
		RateSafety:       cfg.Summarize.RateSafety,
		MaxRetries:       cfg.Summarize.MaxRetries,
		CallTimeout:      cfg.Summarize.Timeout,
		ValidateCached:   cfg.Summarize.ValidateCached,
		ValidateEntities: cfg.Summarize.ValidateEntities,
	}, summaries.NewClient(cfg.Summarize.APIKey, cfg.Summarize.BaseURL))

	runRecorder := runs.NewService(runs.NewRepository(db.DB))
	artifacts := audiocache.NewService(audiocache.NewRepository(db.DB))

	audioDir := filepath.Join(cfg.Storage.BaseDir, "audio")
	tempDir := filepath.Join(cfg.Storage.BaseDir, "temp")

	sweeper := cleanup.NewService(tempDir, audioDir, cfg.Cleanup.MaxTempAge, cfg.Cleanup.Interval).
		WithEviction(artifacts, cfg.Storage.MaxAudioDirSize)

	orchestrator := pipeline.NewService(pipeline.Dependencies{
		Catalog:     cat,
		Fetcher:     fetcher,
		Store:       storeSvc,
		Transcripts: transcriptFinder,
		Sources:     sourceFinder,
		Downloads:   downloader,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Runs:        runRecorder,
		Artifacts:   artifacts,
	}, pipeline.Config{
		AudioDir:        audioDir,
		DownloadSlots:   int64(cfg.Download.MaxConcurrent),
		TranscribeSlots: int64(cfg.Transcription.MaxConcurrent),
		SummarizeSlots:  int64(cfg.Summarize.MaxConcurrent),
		DaysBack:        cfg.Fetch.DaysBack,
		MaxAudioBytes:   cfg.Storage.MaxAudioDirSize,
	})

	return &app{
		DB:       db,
		Catalog:  cat,
		Cache:    memCache,
		Store:    storeSvc,
		Runs:     runRecorder,
		Cleanup:  sweeper,
		Pipeline: orchestrator,
	}, nil
}

// Close releases background goroutines and the database handle.
func (a *app) Close() {
	a.Cache.Stop()
	if err := a.DB.Close(); err != nil {
		log.Printf("[WARN] Closing database: %v", err)
	}
}

// reapStaleRun closes out a run a previous process left in "running", so
// the single-run gate does not refuse every new batch after a crash.
func reapStaleRun(ctx context.Context, svc runs.Service) {
	run, err := svc.Active(ctx)
	if err != nil {
		return
	}
	log.Printf("[WARN] Closing run %d left running by a previous process", run.ID)
	if err := svc.Finish(ctx, run.ID, models.RunStatusFailed, nil, "interrupted by restart"); err != nil {
		log.Printf("[WARN] Could not close stale run %d: %v", run.ID, err)
	}
}
