package summaries

import (
	"context"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/models"
	errs "github.com/podforge/digest-api/pkg/errors"
)

type llmTurn struct {
	text string
	err  error
}

// scriptedLLM returns one scripted turn per call; the last turn repeats.
type scriptedLLM struct {
	mu       sync.Mutex
	turns    []llmTurn
	requests []openai.ChatCompletionRequest
}

func (s *scriptedLLM) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	turn := s.turns[len(s.turns)-1]
	if idx < len(s.turns) {
		turn = s.turns[idx]
	}
	if turn.err != nil {
		return openai.ChatCompletionResponse{}, turn.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: turn.text}},
		},
	}, nil
}

// fastConfig keeps retries and the rate limiter out of the tests' way.
func fastConfig() Config {
	return Config{
		RatePerMinute: 600000,
		RetryBackoff:  time.Millisecond,
	}
}

func summaryEpisode() *models.Episode {
	return &models.Episode{
		Podcast: "Acme Radio Hour",
		Title:   "Ep 7: Ada Lovelace on Analytical Engines",
	}
}

const sampleTranscript = "Speaker A: Welcome back. Today we dig into analytical engines and what they meant for computing."

func TestSummarizeBothProducts(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{text: "A tight paragraph."},
		{text: "## Overview\nThe long form."},
	}}
	svc := NewService(fastConfig(), llm)

	result, err := svc.Summarize(context.Background(), summaryEpisode(), sampleTranscript)

	require.NoError(t, err)
	assert.Equal(t, "A tight paragraph.", result.Paragraph)
	assert.Equal(t, "## Overview\nThe long form.", result.Long)

	require.Len(t, llm.requests, 2)
	first := llm.requests[0]
	assert.Equal(t, "gpt-4o-mini", first.Model)
	assert.Equal(t, float32(0.2), first.Temperature)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, paragraphSystemPrompt, first.Messages[0].Content)
	assert.Contains(t, first.Messages[1].Content, "about 150 words")
	assert.Contains(t, first.Messages[1].Content, "Guest: Ada Lovelace")
	assert.Contains(t, first.Messages[1].Content, sampleTranscript)

	second := llm.requests[1]
	assert.Equal(t, longSystemPrompt, second.Messages[0].Content)
}

func TestSummarizeRetriesRateLimit(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{err: &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}},
		{text: "Paragraph."},
		{text: "Long."},
	}}
	svc := NewService(fastConfig(), llm)

	result, err := svc.Summarize(context.Background(), summaryEpisode(), sampleTranscript)

	require.NoError(t, err)
	assert.Equal(t, "Paragraph.", result.Paragraph)
	assert.Equal(t, "Long.", result.Long)
	assert.Len(t, llm.requests, 3)
}

func TestSummarizeKeepsParagraphWhenLongFails(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{text: "Paragraph survives."},
		{err: &openai.APIError{HTTPStatusCode: 400, Message: "context too large"}},
	}}
	svc := NewService(fastConfig(), llm)

	result, err := svc.Summarize(context.Background(), summaryEpisode(), sampleTranscript)

	require.Error(t, err)
	assert.Equal(t, "Paragraph survives.", result.Paragraph)
	assert.Empty(t, result.Long)
	assert.Equal(t, errs.KindLLM, errs.KindOf(err))
	assert.False(t, errs.IsRetryable(err))

	var pe *errs.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Acme Radio Hour", pe.Podcast)

	// A 400 is terminal: no retry attempts for the long product.
	assert.Len(t, llm.requests, 2)
}

func TestSummarizeKeepsLongWhenParagraphFails(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{err: &openai.APIError{HTTPStatusCode: 400, Message: "bad request"}},
		{text: "Long survives."},
	}}
	svc := NewService(fastConfig(), llm)

	result, err := svc.Summarize(context.Background(), summaryEpisode(), sampleTranscript)

	require.Error(t, err)
	assert.Empty(t, result.Paragraph)
	assert.Equal(t, "Long survives.", result.Long)
}

func TestSummarizeEmptyCompletionNotRetried(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{text: "   "},
		{text: "Long."},
	}}
	svc := NewService(fastConfig(), llm)

	result, err := svc.Summarize(context.Background(), summaryEpisode(), sampleTranscript)

	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidOutput, errs.KindOf(err))
	assert.Equal(t, "Long.", result.Long)
	assert.Len(t, llm.requests, 2)
}

func TestSummarizeTransientFailuresExhausted(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{err: &openai.APIError{HTTPStatusCode: 503, Message: "down"}},
		{err: &openai.APIError{HTTPStatusCode: 503, Message: "down"}},
		{err: &openai.APIError{HTTPStatusCode: 503, Message: "still down"}},
		{text: "Long."},
	}}
	svc := NewService(fastConfig(), llm)

	result, err := svc.Summarize(context.Background(), summaryEpisode(), sampleTranscript)

	require.Error(t, err)
	assert.Equal(t, errs.KindLLM, errs.KindOf(err))
	assert.True(t, errs.IsRetryable(err))
	assert.Empty(t, result.Paragraph)
	assert.Equal(t, "Long.", result.Long)
	// Default budget: 1 attempt + 2 retries for the paragraph, then 1 for the long.
	assert.Len(t, llm.requests, 4)
}

func TestSummarizeAppliesKnownCorrections(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{{text: "P."}, {text: "L."}}}
	svc := NewService(fastConfig(), llm)
	transcript := "Lex Friedman talked with Dworkesh about scaling."

	_, err := svc.Summarize(context.Background(), summaryEpisode(), transcript)

	require.NoError(t, err)
	prompt := llm.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "Lex Fridman")
	assert.NotContains(t, prompt, "Lex Friedman")
	assert.Contains(t, prompt, "Dwarkesh")
	assert.NotContains(t, prompt, "Dworkesh")
}

func TestSummarizeEntityValidator(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{
		{text: `[{"wrong":"Jon Smith","right":"John Smith","confidence":0.95},{"wrong":"Acme","right":"ACME","confidence":0.5}]`},
		{text: "P."},
		{text: "L."},
	}}
	cfg := fastConfig()
	cfg.ValidateEntities = true
	svc := NewService(cfg, llm)
	transcript := "Jon Smith from Acme walked us through the roadmap."

	_, err := svc.Summarize(context.Background(), summaryEpisode(), transcript)

	require.NoError(t, err)
	require.Len(t, llm.requests, 3)
	assert.Equal(t, validatorSystemPrompt, llm.requests[0].Messages[0].Content)
	assert.Contains(t, llm.requests[0].Messages[1].Content, "TRANSCRIPT EXCERPT")

	prompt := llm.requests[1].Messages[1].Content
	assert.Contains(t, prompt, "John Smith")
	assert.NotContains(t, prompt, "Jon Smith")
	// Low-confidence suggestion stays unapplied.
	assert.Contains(t, prompt, "Acme")
	assert.NotContains(t, prompt, "ACME")
}

func TestSummarizeCancelledMakesNoCalls(t *testing.T) {
	llm := &scriptedLLM{turns: []llmTurn{{text: "P."}}}
	svc := NewService(fastConfig(), llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Summarize(ctx, summaryEpisode(), sampleTranscript)

	require.Error(t, err)
	assert.True(t, errs.IsCancelled(err))
	assert.Empty(t, llm.requests)
}

func TestCachedValid(t *testing.T) {
	cfg := fastConfig()
	cfg.ValidateCached = true
	svc := NewService(cfg, nil)

	assert.True(t, svc.CachedValid(
		"Lex Fridman joined us.",
		"A chat with Lex Fridman.",
		"## Overview\nLex Fridman on AI."))

	// Summary predates the correction rule: transcript fixed, summary not.
	assert.False(t, svc.CachedValid(
		"Lex Fridman joined us.",
		"A chat with Lex Friedman.",
		""))

	// Old transcript still carries the mishearing: summary matches it.
	assert.True(t, svc.CachedValid(
		"Lex Friedman joined us.",
		"A chat with Lex Friedman.",
		""))
}

func TestCachedValidDisabled(t *testing.T) {
	svc := NewService(fastConfig(), nil)

	assert.True(t, svc.CachedValid(
		"Lex Fridman joined us.",
		"A chat with Lex Friedman.",
		""))
}

func TestCachedValidRejectsAbsentPair(t *testing.T) {
	// A store miss reads as two empty strings; that must never count as
	// a servable summary, validated or not.
	svc := NewService(fastConfig(), nil)
	assert.False(t, svc.CachedValid(sampleTranscript, "", ""))

	cfg := fastConfig()
	cfg.ValidateCached = true
	svc = NewService(cfg, nil)
	assert.False(t, svc.CachedValid(sampleTranscript, "", ""))
}

func TestRateLimiterEffectiveRate(t *testing.T) {
	svc := NewService(Config{}, nil)

	// 50/min quota with a 10% safety buffer: 45/min, 0.75/s.
	assert.InDelta(t, 0.75, float64(svc.limiter.Limit()), 0.0001)
}
