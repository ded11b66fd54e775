package transcription

import (
	"context"
	"time"

	"github.com/podforge/digest-api/internal/models"
)

// Transcriber turns a downloaded audio file into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, episode *models.Episode, audioPath string, mode models.Mode) (string, error)
}

// Engine is the remote speech-to-text service. The production engine is
// Client; tests substitute a stub.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Trimmer cuts an audio file down to the given duration. Satisfied by
// *ffmpeg.FFmpeg.
type Trimmer interface {
	Trim(ctx context.Context, input, output string, limit time.Duration) error
}
