// Package pipeline orchestrates the per-episode stage chain: transcript
// lookup, audio download, transcription and summarization. Stages run
// under per-stage concurrency gates; a failure in one episode never
// stops the others.
package pipeline

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/episodes"
	errs "github.com/podforge/digest-api/pkg/errors"
	"github.com/podforge/digest-api/pkg/titles"
)

// ErrRunInProgress rejects a second batch while one is executing.
var ErrRunInProgress = errors.New("a run is already in progress")

// Service drives episode batches through the stage chain. One batch runs
// at a time; Cancel stops the current one between stages.
type Service struct {
	deps   Dependencies
	config Config
	broker *Broker

	mu        sync.Mutex
	running   bool
	cancelled bool
	cancelRun context.CancelFunc
	lastRunID uint
}

var _ Orchestrator = (*Service)(nil)

func NewService(deps Dependencies, config Config) *Service {
	config.setDefaults()
	return &Service{deps: deps, config: config, broker: NewBroker()}
}

// ListRecentEpisodes fetches the recent window for the selected podcasts
// and persists every episode, so the rows exist before a run starts.
func (s *Service) ListRecentEpisodes(ctx context.Context, selected []string, daysBack int, progress episodes.ProgressFunc) ([]models.Episode, error) {
	if daysBack <= 0 {
		daysBack = s.config.DaysBack
	}
	podcasts, err := s.deps.Catalog.Select(selected)
	if err != nil {
		return nil, err
	}

	eps, err := s.deps.Fetcher.FetchRecent(ctx, podcasts, daysBack, progress)
	if err != nil {
		return nil, err
	}
	for i := range eps {
		id, err := s.deps.Store.Upsert(ctx, &eps[i])
		if err != nil {
			return nil, err
		}
		eps[i].ID = id
	}
	log.Printf("[INFO] pipeline: %d recent episode(s) across %d podcast(s)", len(eps), len(podcasts))
	return eps, nil
}

// ProcessEpisodes runs the stage chain over the batch and returns the
// summaries grouped by podcast. Failed episodes are recorded and left out
// of the result; only run bookkeeping and a concurrent start are fatal.
func (s *Service) ProcessEpisodes(ctx context.Context, eps []models.Episode, mode models.Mode, progress ProgressFunc) (*RunResult, error) {
	runCtx, run, err := s.prepare(ctx, ctx, mode, len(eps))
	if err != nil {
		return nil, err
	}
	return s.execute(runCtx, ctx, eps, mode, run, progress), nil
}

// StartRun creates the run record on the caller's context, then executes
// the batch in the background. The background work answers to Cancel, not
// to the request context, so it outlives an HTTP handler cleanly.
func (s *Service) StartRun(ctx context.Context, eps []models.Episode, mode models.Mode) (*models.Run, error) {
	if s.deps.Runs == nil {
		return nil, errors.New("run records are not configured")
	}
	runCtx, run, err := s.prepare(ctx, context.Background(), mode, len(eps))
	if err != nil {
		return nil, err
	}
	go s.execute(runCtx, context.Background(), eps, mode, run, nil)
	return run, nil
}

// prepare takes the single-run gate and creates the run record. beginCtx
// scopes the record write; execCtx parents the cancellable run context.
func (s *Service) prepare(beginCtx, execCtx context.Context, mode models.Mode, total int) (context.Context, *models.Run, error) {
	runCtx, err := s.beginRun(execCtx)
	if err != nil {
		return nil, nil, err
	}
	s.broker.Reset()

	var run *models.Run
	if s.deps.Runs != nil {
		run, err = s.deps.Runs.Begin(beginCtx, mode, total)
		if err != nil {
			s.endRun()
			return nil, nil, err
		}
		s.mu.Lock()
		s.lastRunID = run.ID
		s.mu.Unlock()
	}
	return runCtx, run, nil
}

// execute drives the batch to completion and settles the run record. It
// owns the gate taken by prepare and releases it when the batch is done.
func (s *Service) execute(runCtx, persistCtx context.Context, eps []models.Episode, mode models.Mode, run *models.Run, progress ProgressFunc) *RunResult {
	defer s.endRun()

	log.Printf("[INFO] pipeline: processing %d episode(s) in %s mode", len(eps), mode)
	started := time.Now()

	r := &batchRunner{
		svc:  s,
		mode: mode,
		st:   newBatchState(),
		run:  run,
		emit: func(ev Event) {
			ev.Time = time.Now()
			s.broker.Publish(ev)
			if progress != nil {
				progress(ev)
			}
		},
		semDownload:   semaphore.NewWeighted(s.config.DownloadSlots),
		semTranscribe: semaphore.NewWeighted(s.config.TranscribeSlots),
		semSummarize:  semaphore.NewWeighted(s.config.SummarizeSlots),
	}

	var g errgroup.Group
	g.SetLimit(s.config.BatchSlots)
	for i := range eps {
		ep := eps[i]
		g.Go(func() error {
			// Episodes that never started emit no events and count
			// nowhere.
			if runCtx.Err() != nil {
				r.st.skip()
				return nil
			}
			r.episode(runCtx, persistCtx, &ep)
			return nil
		})
	}
	_ = g.Wait()

	cancelled := s.isCancelled() || runCtx.Err() != nil
	stats := r.st.stats(time.Since(started))

	if s.deps.Artifacts != nil && s.config.MaxAudioBytes > 0 {
		evicted, freed, err := s.deps.Artifacts.EnforceCap(persistCtx, s.config.MaxAudioBytes)
		if err != nil {
			log.Printf("[WARN] pipeline: enforcing audio cap: %v", err)
		} else if evicted > 0 {
			stats["evicted_files"] = evicted
			stats["evicted_bytes"] = freed
		}
	}

	var runID uint
	if run != nil {
		runID = run.ID
		status := models.RunStatusCompleted
		if cancelled {
			status = models.RunStatusCancelled
		}
		if err := s.deps.Runs.Finish(persistCtx, run.ID, status, stats, ""); err != nil {
			log.Printf("[WARN] pipeline: finishing run %d: %v", run.ID, err)
		}
	}

	result := r.st.result(runID, cancelled)
	log.Printf("[INFO] pipeline: run finished: %d processed, %d failed, cancelled=%v",
		result.Processed, result.Failed, result.Cancelled)
	return result
}

// Cancel requests cooperative cancellation of the in-flight run. Safe to
// call from any goroutine at any time; a second call is a no-op.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cancelled {
		return
	}
	s.cancelled = true
	if s.cancelRun != nil {
		s.cancelRun()
	}
	log.Printf("[INFO] pipeline: cancellation requested")
}

// Events returns the buffered progress events. The buffer is reset when a
// new run starts, so only the current or most recent run's events exist;
// a non-zero runID from an earlier run returns nil.
func (s *Service) Events(runID uint) []Event {
	if runID != 0 {
		s.mu.Lock()
		owner := s.lastRunID
		s.mu.Unlock()
		if runID != owner {
			return nil
		}
	}
	return s.broker.Snapshot()
}

func (s *Service) beginRun(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, ErrRunInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancelled = false
	s.cancelRun = cancel
	return runCtx, nil
}

func (s *Service) endRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
}

func (s *Service) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// audioPath derives the deterministic artifact path for an episode, so
// re-runs find and reuse the same file.
func (s *Service) audioPath(ep *models.Episode) string {
	ext := ep.FileExtension
	if ext == "" {
		ext = "mp3"
	}
	name := titles.Slug(ep.Podcast) + "_" +
		ep.Published.UTC().Format("2006-01-02") + "_" +
		titles.Slug(ep.Title) + "." + ext
	return filepath.Join(s.config.AudioDir, name)
}

// podcastFor resolves the catalog entry. Episodes whose podcast has left
// the catalog still process, with default strategy behavior.
func (s *Service) podcastFor(name string) *catalog.Podcast {
	if s.deps.Catalog != nil {
		if p, ok := s.deps.Catalog.Get(name); ok {
			return p
		}
	}
	return &catalog.Podcast{Name: name}
}

// batchRunner carries one run's shared plumbing so the stage methods stay
// readable. Contexts flow through parameters: runCtx is cut by Cancel,
// persistCtx is not, so finished work is never thrown away.
type batchRunner struct {
	svc  *Service
	mode models.Mode
	st   *batchState
	run  *models.Run
	emit func(Event)

	semDownload   *semaphore.Weighted
	semTranscribe *semaphore.Weighted
	semSummarize  *semaphore.Weighted
}

// episode runs one episode start to finish and settles its bookkeeping.
func (r *batchRunner) episode(runCtx, persistCtx context.Context, ep *models.Episode) {
	es, err := r.process(runCtx, persistCtx, ep)
	switch {
	case err == nil:
		r.st.success(ep.Podcast, es)
		r.event(ep, StageEpisode, StateCompleted)
		r.recordEpisode(persistCtx, false)
	case errs.IsCancelled(err):
		r.st.skip()
		r.event(ep, StageEpisode, StateCancelled)
	default:
		r.st.fail()
		ev := r.newEvent(ep, StageEpisode, StateFailed)
		ev.Error = err.Error()
		r.emit(ev)

		component, kind := classifyFailure(err)
		retries := 0
		if errs.IsRetryable(err) {
			retries = r.svc.config.RetryAttempts
		}
		r.svc.deps.Store.RecordFailure(persistCtx, component, ep.Key(), kind, err.Error(), retries, r.mode)
		r.recordEpisode(persistCtx, true)
		log.Printf("[ERROR] pipeline: %s / %s failed: %v", ep.Podcast, ep.Title, err)
	}
}

func (r *batchRunner) process(runCtx, persistCtx context.Context, ep *models.Episode) (EpisodeSummary, error) {
	// Episodes can arrive from a caller that never listed them; the row
	// must exist before transcript and summary writes.
	if _, err := r.svc.deps.Store.Upsert(persistCtx, ep); err != nil {
		return EpisodeSummary{}, err
	}

	text, err := r.transcript(runCtx, persistCtx, ep)
	if err != nil {
		return EpisodeSummary{}, err
	}
	paragraph, long, err := r.summarize(runCtx, persistCtx, ep, text)
	if err != nil {
		return EpisodeSummary{}, err
	}
	return EpisodeSummary{Title: ep.Title, Paragraph: paragraph, Long: long}, nil
}

// transcript returns the episode transcript, cheapest source first: the
// store, then published sources, then generation from audio.
func (r *batchRunner) transcript(runCtx, persistCtx context.Context, ep *models.Episode) (string, error) {
	key := ep.Key()

	text, _, err := r.svc.deps.Store.Transcript(persistCtx, key, r.mode)
	if err != nil {
		log.Printf("[WARN] pipeline: transcript lookup for %q: %v", ep.Title, err)
	}
	if text != "" {
		r.event(ep, StageTranscript, StateCached)
		r.st.hit("transcript_cache_hits")
		return text, nil
	}

	r.event(ep, StageTranscript, StateStarted)
	podcast := r.svc.podcastFor(ep.Podcast)
	text, source, err := r.svc.deps.Transcripts.Find(runCtx, podcast, ep, r.mode)
	if err != nil {
		if errs.IsCancelled(err) {
			return "", err
		}
		if errs.KindOf(err) != errs.KindTranscriptNotFound {
			log.Printf("[WARN] pipeline: transcript search for %q: %v", ep.Title, err)
		}
	}
	if text != "" {
		if err := r.svc.deps.Store.SaveTranscript(persistCtx, key, r.mode, text, source); err != nil {
			return "", r.fail(ep, StageTranscript, err)
		}
		r.event(ep, StageTranscript, StateCompleted)
		r.st.hit("transcripts_located")
		return text, nil
	}

	return r.generate(runCtx, persistCtx, podcast, ep)
}

// generate produces a transcript the expensive way: fetch the audio, then
// run it through the speech-to-text engine.
func (r *batchRunner) generate(runCtx, persistCtx context.Context, podcast *catalog.Podcast, ep *models.Episode) (string, error) {
	key := ep.Key()
	audioPath := r.svc.audioPath(ep)

	if err := r.semDownload.Acquire(runCtx, 1); err != nil {
		return "", errs.Cancelled(errs.ComponentPipeline)
	}
	r.event(ep, StageDownload, StateStarted)
	candidates := r.svc.deps.Sources.Find(runCtx, podcast, ep)
	err := r.svc.deps.Downloads.Download(runCtx, podcast, ep, candidates, audioPath, r.mode)
	r.semDownload.Release(1)
	if err != nil {
		return "", r.fail(ep, StageDownload, err)
	}
	r.st.hit("downloaded")
	r.event(ep, StageDownload, StateCompleted)
	r.recordArtifact(persistCtx, ep, audioPath)

	if err := r.semTranscribe.Acquire(runCtx, 1); err != nil {
		return "", errs.Cancelled(errs.ComponentPipeline)
	}
	r.event(ep, StageTranscribe, StateStarted)
	text, err := r.retry(runCtx, StageTranscribe, ep, func(ctx context.Context) (string, error) {
		return r.svc.deps.Transcriber.Transcribe(ctx, ep, audioPath, r.mode)
	})
	r.semTranscribe.Release(1)
	if err != nil {
		return "", r.fail(ep, StageTranscribe, err)
	}

	if err := r.svc.deps.Store.SaveTranscript(persistCtx, key, r.mode, text, models.SourceGenerated); err != nil {
		return "", r.fail(ep, StageTranscribe, err)
	}
	r.markTranscribed(persistCtx, audioPath)
	r.st.hit("transcribed")
	r.event(ep, StageTranscribe, StateCompleted)
	return text, nil
}

// summarize returns the episode's summary pair, reusing a stored pair
// when it is still valid against the transcript.
func (r *batchRunner) summarize(runCtx, persistCtx context.Context, ep *models.Episode, transcript string) (string, string, error) {
	key := ep.Key()

	paragraph, long, err := r.svc.deps.Store.Summary(persistCtx, key, r.mode)
	if err != nil {
		log.Printf("[WARN] pipeline: summary lookup for %q: %v", ep.Title, err)
	}
	if err == nil && r.svc.deps.Summarizer.CachedValid(transcript, paragraph, long) {
		r.event(ep, StageSummarize, StateCached)
		r.st.hit("summary_cache_hits")
		return paragraph, long, nil
	}

	if err := r.semSummarize.Acquire(runCtx, 1); err != nil {
		return "", "", errs.Cancelled(errs.ComponentPipeline)
	}
	r.event(ep, StageSummarize, StateStarted)
	result, err := r.svc.deps.Summarizer.Summarize(runCtx, ep, transcript)
	r.semSummarize.Release(1)
	if err != nil {
		// A surviving half is persisted; the episode still fails.
		if result != nil && (result.Paragraph != "" || result.Long != "") {
			if saveErr := r.svc.deps.Store.SaveSummary(persistCtx, key, r.mode, result.Paragraph, result.Long); saveErr != nil {
				log.Printf("[WARN] pipeline: saving partial summary for %q: %v", ep.Title, saveErr)
			}
		}
		return "", "", r.fail(ep, StageSummarize, err)
	}

	if err := r.svc.deps.Store.SaveSummary(persistCtx, key, r.mode, result.Paragraph, result.Long); err != nil {
		return "", "", r.fail(ep, StageSummarize, err)
	}
	r.st.hit("summarized")
	r.event(ep, StageSummarize, StateCompleted)
	return result.Paragraph, result.Long, nil
}

// retry re-runs fn on retryable failures with doubling backoff. Attempt
// numbers land on retry events so a watcher can tell progress from a hang.
func (r *batchRunner) retry(ctx context.Context, stage Stage, ep *models.Episode, fn func(context.Context) (string, error)) (string, error) {
	backoff := r.svc.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if errs.IsCancelled(err) || !errs.IsRetryable(err) || attempt >= r.svc.config.RetryAttempts {
			return "", err
		}

		ev := r.newEvent(ep, stage, StateRetrying)
		ev.Attempt = attempt + 1
		ev.Error = err.Error()
		r.emit(ev)
		log.Printf("[WARN] pipeline: %s attempt %d for %q failed, retrying: %v", stage, attempt+1, ep.Title, err)

		select {
		case <-ctx.Done():
			return "", errs.Cancelled(errs.ComponentPipeline)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (r *batchRunner) recordArtifact(ctx context.Context, ep *models.Episode, path string) {
	if r.svc.deps.Artifacts == nil {
		return
	}
	// The history head is the strategy that just produced this file.
	strategy := ""
	if hist, err := r.svc.deps.Store.StrategyHistory(ctx, ep.Podcast); err == nil && len(hist) > 0 {
		strategy = hist[0]
	}
	if _, err := r.svc.deps.Artifacts.Record(ctx, ep, r.mode, path, strategy); err != nil {
		log.Printf("[WARN] pipeline: indexing audio %s: %v", filepath.Base(path), err)
	}
}

func (r *batchRunner) markTranscribed(ctx context.Context, path string) {
	if r.svc.deps.Artifacts == nil {
		return
	}
	if err := r.svc.deps.Artifacts.MarkTranscribed(ctx, path); err != nil {
		log.Printf("[WARN] pipeline: marking %s transcribed: %v", filepath.Base(path), err)
	}
}

func (r *batchRunner) recordEpisode(ctx context.Context, failed bool) {
	if r.run == nil || r.svc.deps.Runs == nil {
		return
	}
	if err := r.svc.deps.Runs.RecordEpisode(ctx, r.run.ID, failed); err != nil {
		log.Printf("[WARN] pipeline: updating run %d: %v", r.run.ID, err)
	}
}

func (r *batchRunner) newEvent(ep *models.Episode, stage Stage, state State) Event {
	return Event{Stage: stage, Podcast: ep.Podcast, Title: ep.Title, State: state}
}

func (r *batchRunner) event(ep *models.Episode, stage Stage, state State) {
	r.emit(r.newEvent(ep, stage, state))
}

// fail emits the stage failure event and passes the error through.
// Cancellations pass silently; the terminal episode event reports those.
func (r *batchRunner) fail(ep *models.Episode, stage Stage, err error) error {
	if errs.IsCancelled(err) {
		return err
	}
	ev := r.newEvent(ep, stage, StateFailed)
	ev.Error = err.Error()
	r.emit(ev)
	return err
}

func classifyFailure(err error) (component string, kind errs.Kind) {
	var pe *errs.PipelineError
	if errors.As(err, &pe) {
		return pe.Component, pe.Kind
	}
	return errs.ComponentPipeline, errs.Kind("internal")
}

// batchState accumulates one run's outputs behind a mutex shared by the
// episode workers.
type batchState struct {
	mu        sync.Mutex
	summaries map[string][]EpisodeSummary
	processed int
	failed    int
	skipped   int
	counters  map[string]int
}

func newBatchState() *batchState {
	return &batchState{
		summaries: make(map[string][]EpisodeSummary),
		counters:  make(map[string]int),
	}
}

func (st *batchState) success(podcast string, es EpisodeSummary) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.summaries[podcast] = append(st.summaries[podcast], es)
	st.processed++
}

func (st *batchState) fail() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.failed++
}

func (st *batchState) skip() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.skipped++
}

func (st *batchState) hit(counter string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.counters[counter]++
}

func (st *batchState) stats(elapsed time.Duration) models.RunStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	stats := models.RunStats{
		"processed":        st.processed,
		"failed":           st.failed,
		"duration_seconds": int(elapsed.Seconds()),
	}
	if st.skipped > 0 {
		stats["cancelled"] = st.skipped
	}
	for k, v := range st.counters {
		stats[k] = v
	}
	return stats
}

func (st *batchState) result(runID uint, cancelled bool) *RunResult {
	st.mu.Lock()
	defer st.mu.Unlock()
	return &RunResult{
		RunID:     runID,
		Summaries: st.summaries,
		Processed: st.processed,
		Failed:    st.failed,
		Cancelled: cancelled,
	}
}
