package summaries

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
	"github.com/podforge/digest-api/pkg/titles"
)

// validatorExcerptLimit caps how much transcript the entity validator sees.
const validatorExcerptLimit = 8000

// Config holds summarizer settings. Zero values get production defaults.
type Config struct {
	Model          string
	Temperature    float32
	ParagraphWords int
	// RatePerMinute is the provider quota; RateSafety is the fraction
	// held back from it. The effective limit is cap × (1 − safety).
	RatePerMinute int
	RateSafety    float64
	// MaxRetries bounds extra attempts per product on transient failures.
	MaxRetries int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
	// CallTimeout bounds one LLM round trip.
	CallTimeout time.Duration
	// ValidateCached re-checks stored summaries for stale entity fixes.
	ValidateCached bool
	// ValidateEntities runs the LLM correction validator before
	// summarizing. One extra call per episode.
	ValidateEntities bool
}

// Service generates the paragraph and long summaries through an
// OpenAI-compatible API, with entity correction, a shared rate limiter,
// and bounded retries per product.
type Service struct {
	client           ChatCompleter
	limiter          *rate.Limiter
	model            string
	temperature      float32
	paragraphWords   int
	maxRetries       int
	retryBackoff     time.Duration
	callTimeout      time.Duration
	validateCached   bool
	validateEntities bool
}

// NewClient builds the production LLM client. BaseURL overrides the
// OpenAI endpoint for compatible gateways.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewService wires the summarizer around an LLM client.
func NewService(cfg Config, client ChatCompleter) *Service {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.ParagraphWords <= 0 {
		cfg.ParagraphWords = 150
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 50
	}
	if cfg.RateSafety <= 0 || cfg.RateSafety >= 1 {
		cfg.RateSafety = 0.1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}

	effective := float64(cfg.RatePerMinute) * (1 - cfg.RateSafety)
	return &Service{
		client:           client,
		limiter:          rate.NewLimiter(rate.Limit(effective/60), 1),
		model:            cfg.Model,
		temperature:      cfg.Temperature,
		paragraphWords:   cfg.ParagraphWords,
		maxRetries:       cfg.MaxRetries,
		retryBackoff:     cfg.RetryBackoff,
		callTimeout:      cfg.CallTimeout,
		validateCached:   cfg.ValidateCached,
		validateEntities: cfg.ValidateEntities,
	}
}

// Summarize produces both products for the episode. When one product
// fails after retries, the other is still returned alongside the error.
func (s *Service) Summarize(ctx context.Context, episode *models.Episode, transcript string) (*Result, error) {
	corrected, applied := applyCorrections(transcript)
	if applied > 0 {
		log.Printf("[DEBUG] summaries: %d entity corrections applied for %q", applied, episode.Title)
	}
	if s.validateEntities {
		corrected = s.validateTranscriptEntities(ctx, corrected)
	}

	guest, _ := titles.ExtractGuestName(episode.Title)

	result := &Result{}
	var firstErr error

	paragraph, err := s.generate(ctx, paragraphSystemPrompt,
		buildParagraphPrompt(episode.Podcast, episode.Title, guest, corrected, s.paragraphWords))
	if err != nil {
		firstErr = err
	} else {
		result.Paragraph = paragraph
	}

	if errs.IsCancelled(firstErr) {
		var pe *errs.PipelineError
		errors.As(firstErr, &pe)
		return result, pe.WithEpisode(episode.Podcast, episode.Title)
	}

	long, err := s.generate(ctx, longSystemPrompt,
		buildLongPrompt(episode.Podcast, episode.Title, guest, corrected))
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		result.Long = long
	}

	if firstErr != nil {
		var pe *errs.PipelineError
		if errors.As(firstErr, &pe) {
			return result, pe.WithEpisode(episode.Podcast, episode.Title)
		}
		return result, errs.SummarizationError(errs.KindLLM, "summarization failed", firstErr).
			WithEpisode(episode.Podcast, episode.Title)
	}

	log.Printf("[INFO] summaries: %q summarized (%d + %d chars)", episode.Title, len(result.Paragraph), len(result.Long))
	return result, nil
}

// CachedValid reports whether a stored summary pair can be served as-is.
// An absent pair never is. A summary that still carries a mishearing the
// transcript no longer has was generated before the correction rule and
// must be regenerated.
func (s *Service) CachedValid(transcript, paragraph, long string) bool {
	if paragraph == "" && long == "" {
		return false
	}
	if !s.validateCached {
		return true
	}
	if staleEntities(transcript, paragraph) || staleEntities(transcript, long) {
		log.Printf("[DEBUG] summaries: cached summary carries stale entity fixes")
		return false
	}
	return true
}

// generate runs one product's completion with bounded retries on
// transient failures.
func (s *Service) generate(ctx context.Context, system, user string) (string, error) {
	backoff := s.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", errs.Cancelled(errs.ComponentSummaries)
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		text, err := s.complete(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errs.IsCancelled(err) || !errs.IsRetryable(err) {
			return "", err
		}
		log.Printf("[WARN] summaries: attempt %d/%d failed: %v", attempt+1, s.maxRetries+1, err)
	}
	return "", lastErr
}

// complete performs a single rate-limited chat completion.
func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", errs.Cancelled(errs.ComponentSummaries)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", s.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.ComponentSummaries, errs.KindInvalidOutput, false, "completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errs.New(errs.ComponentSummaries, errs.KindInvalidOutput, false, "completion returned empty text")
	}
	return text, nil
}

// classify maps client errors onto the component's kinds: 429 is
// rate_limited, 5xx and transport failures are transient llm errors,
// other API rejections are terminal.
func (s *Service) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return errs.Cancelled(errs.ComponentSummaries)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return errs.SummarizationError(errs.KindRateLimited, "LLM rate limit hit (429)", err)
		case apiErr.HTTPStatusCode >= 500:
			return errs.SummarizationError(errs.KindLLM, fmt.Sprintf("LLM service error (%d)", apiErr.HTTPStatusCode), err)
		default:
			return errs.Wrap(err, errs.ComponentSummaries, errs.KindLLM, false,
				fmt.Sprintf("LLM request rejected (%d)", apiErr.HTTPStatusCode))
		}
	}
	return errs.SummarizationError(errs.KindLLM, "LLM call failed", err)
}

// validateTranscriptEntities asks the LLM for extra name corrections and
// applies the confident ones. Failures leave the transcript as-is.
func (s *Service) validateTranscriptEntities(ctx context.Context, transcript string) string {
	excerpt := transcript
	if len(excerpt) > validatorExcerptLimit {
		excerpt = excerpt[:validatorExcerptLimit]
	}

	raw, err := s.generate(ctx, validatorSystemPrompt, buildValidatorPrompt(excerpt))
	if err != nil {
		log.Printf("[WARN] summaries: entity validator failed, continuing without it: %v", err)
		return transcript
	}
	proposals, err := parseProposals(raw)
	if err != nil {
		log.Printf("[WARN] summaries: entity validator output unparseable: %v", err)
		return transcript
	}

	fixed, applied := applyProposals(transcript, proposals)
	if applied > 0 {
		log.Printf("[INFO] summaries: validator applied %d corrections", applied)
	}
	return fixed
}
