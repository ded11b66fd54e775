package youtube

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/podforge/digest-api/pkg/cookies"
	"github.com/podforge/digest-api/pkg/ffmpeg"
)

// YtdlpConfig configures the external media extractor.
type YtdlpConfig struct {
	Path        string        // binary name or absolute path
	CookiesDir  string        // directory of Netscape cookie files
	Timeout     time.Duration // per-download wall clock cap
	AudioFormat string        // target audio container, default mp3
}

// Ytdlp shells out to yt-dlp for video-host audio extraction. A valid
// youtube cookie file, when present, is passed through for age-gated and
// member content.
type Ytdlp struct {
	path        string
	cookiesDir  string
	audioFormat string
	timeout     time.Duration
	ffmpeg      *ffmpeg.FFmpeg
}

// NewYtdlp builds the downloader. ffmpeg is used to convert stray output
// containers when the extractor could not produce the target format.
func NewYtdlp(cfg YtdlpConfig, ff *ffmpeg.FFmpeg) *Ytdlp {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Ytdlp{
		path:        cfg.Path,
		cookiesDir:  cfg.CookiesDir,
		audioFormat: cfg.AudioFormat,
		timeout:     cfg.Timeout,
		ffmpeg:      ff,
	}
}

// Available implements Downloader.
func (y *Ytdlp) Available() bool {
	_, err := exec.LookPath(y.path)
	return err == nil
}

// DownloadAudio implements Downloader. The extractor writes next to
// outputPath using its own extension template; anything that lands in a
// different container is converted to the target format afterwards.
func (y *Ytdlp) DownloadAudio(ctx context.Context, videoURL, outputPath string) error {
	if !y.Available() {
		return ErrUnavailable
	}

	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	args := y.buildArgs(videoURL, base)

	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, y.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Printf("[DEBUG] yt-dlp downloading %s", videoURL)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("yt-dlp timed out after %s", y.timeout)
		}
		return fmt.Errorf("yt-dlp failed: %w: %s", err, lastLine(stderr.String()))
	}

	return y.settleOutput(ctx, base, outputPath)
}

// buildArgs assembles the extractor invocation. Kept separate so tests can
// assert the cookie and format wiring without running the binary.
func (y *Ytdlp) buildArgs(videoURL, base string) []string {
	args := []string{
		"-x",
		"--audio-format", y.audioFormat,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-o", base + ".%(ext)s",
	}
	if cookieFile := cookies.FindValid(y.cookiesDir, "youtube"); cookieFile != "" {
		log.Printf("[DEBUG] yt-dlp using cookies from %s", cookieFile)
		args = append(args, "--cookies", cookieFile)
	}
	return append(args, videoURL)
}

// settleOutput moves or converts whatever the extractor produced into
// outputPath.
func (y *Ytdlp) settleOutput(ctx context.Context, base, outputPath string) error {
	if fileExists(outputPath) {
		return nil
	}

	expected := base + "." + y.audioFormat
	if fileExists(expected) {
		return os.Rename(expected, outputPath)
	}

	// Post-processing can be unavailable (no ffmpeg on PATH for yt-dlp);
	// pick up the raw container and convert it ourselves.
	matches, _ := filepath.Glob(base + ".*")
	for _, m := range matches {
		if m == outputPath || strings.HasSuffix(m, ".part") {
			continue
		}
		if y.ffmpeg != nil {
			log.Printf("[DEBUG] Converting %s to %s", filepath.Base(m), filepath.Base(outputPath))
			if err := y.ffmpeg.ConvertToMP3(ctx, m, outputPath); err != nil {
				return err
			}
			os.Remove(m)
			return nil
		}
		return os.Rename(m, outputPath)
	}
	return fmt.Errorf("yt-dlp produced no output for %s", filepath.Base(outputPath))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
