package summaries

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/podforge/digest-api/internal/models"
)

// Summarizer produces both summary products for an episode transcript.
type Summarizer interface {
	Summarize(ctx context.Context, episode *models.Episode, transcript string) (*Result, error)

	// CachedValid reports whether a stored summary pair can be served
	// as-is against the current transcript.
	CachedValid(transcript, paragraph, long string) bool
}

// ChatCompleter is the LLM call surface. *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Result carries the two summary products. On partial failure the
// successful product is kept and the error names what failed.
type Result struct {
	Paragraph string
	Long      string
}
