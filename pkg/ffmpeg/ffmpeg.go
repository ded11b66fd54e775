package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// FFmpeg wraps ffmpeg and ffprobe functionality
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// New creates a new FFmpeg instance
func New(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// ValidateBinaries checks if ffmpeg and ffprobe are available
func (f *FFmpeg) ValidateBinaries() error {
	// Check ffmpeg
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, f.ffmpegPath)
	}

	// Check ffprobe
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, f.ffprobePath)
	}

	return nil
}

// Trim writes the first `limit` of input to output. Stream copy is tried
// first; when the container rejects it, the audio is re-encoded instead.
func (f *FFmpeg) Trim(ctx context.Context, input, output string, limit time.Duration) error {
	if err := f.TrimCopy(ctx, input, output, limit); err == nil {
		return nil
	} else {
		log.Printf("[DEBUG] Stream-copy trim failed for %s, re-encoding: %v", filepath.Base(input), err)
	}
	os.Remove(output)
	return f.TrimReencode(ctx, input, output, limit)
}

// TrimCopy trims without re-encoding. Fast, but requires the cut point to
// fall on a container boundary the muxer accepts.
func (f *FFmpeg) TrimCopy(ctx context.Context, input, output string, limit time.Duration) error {
	args := []string{
		"-y",
		"-i", input,
		"-t", formatSeconds(limit),
		"-c", "copy",
		output,
	}
	if err := f.run(ctx, "trim_copy", input, args...); err != nil {
		return err
	}
	return requireNonEmpty("trim_copy", output)
}

// TrimReencode trims by decoding and re-encoding to MP3.
func (f *FFmpeg) TrimReencode(ctx context.Context, input, output string, limit time.Duration) error {
	args := []string{
		"-y",
		"-i", input,
		"-t", formatSeconds(limit),
		"-acodec", "libmp3lame",
		"-ab", "128k",
		output,
	}
	if err := f.run(ctx, "trim_reencode", input, args...); err != nil {
		return err
	}
	return requireNonEmpty("trim_reencode", output)
}

// ConvertToMP3 re-encodes any audio container into an MP3 file.
func (f *FFmpeg) ConvertToMP3(ctx context.Context, input, output string) error {
	args := []string{
		"-y",
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "128k",
		output,
	}
	if err := f.run(ctx, "convert_mp3", input, args...); err != nil {
		return err
	}
	return requireNonEmpty("convert_mp3", output)
}

// run executes ffmpeg with the configured timeout and captured stderr.
func (f *FFmpeg) run(ctx context.Context, operation, file string, args ...string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return NewProcessingError(operation, file, ErrProcessingTimeout, "")
		}
		return NewProcessingError(operation, file, err, tail(stderr.String(), 500))
	}
	return nil
}

// requireNonEmpty guards against ffmpeg exiting 0 while producing nothing.
func requireNonEmpty(operation, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return NewProcessingError(operation, path, err, "")
	}
	if info.Size() == 0 {
		return NewProcessingError(operation, path, fmt.Errorf("output file is empty"), "")
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%d", int(d.Seconds()))
}

// tail returns the last n bytes of s, for keeping logged stderr short.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
