package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Sentinel errors for progress-based aborts. Callers distinguish a stalled
// stream from one that exceeded the overall wall-clock budget.
var (
	ErrStalled    = errors.New("download stalled: no progress within stall timeout")
	ErrMaxTimeout = errors.New("download exceeded maximum allowed time")
)

// Options configures the download behavior
type Options struct {
	StallTimeout  time.Duration     // Abort if no progress for this long
	MaxTimeout    time.Duration     // Abort if total elapsed exceeds this
	MinSpeed      int64             // Bytes/sec below which a tick counts as no progress
	MaxSize       int64             // Maximum file size in bytes (0 = no limit)
	UserAgent     string            // User agent string
	Headers       map[string]string // Extra request headers (cookies, referer)
	ValidateAudio bool              // Validate content-type is audio
	ProgressFunc  ProgressFunc      // Optional progress callback
}

// ProgressFunc is called during download to report progress
type ProgressFunc func(downloaded, total int64)

// DefaultOptions returns default download options
func DefaultOptions() Options {
	return Options{
		StallTimeout:  60 * time.Second,
		MaxTimeout:    30 * time.Minute,
		MinSpeed:      1024,              // 1 KB/s
		MaxSize:       500 * 1024 * 1024, // 500MB default max
		UserAgent:     "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) FxiOS/127.2 Mobile/15E148 Safari/605.1.15",
		ValidateAudio: true,
	}
}

// Result contains information about a successful download
type Result struct {
	FilePath      string    // Path to downloaded file
	ContentType   string    // Content-Type from response
	ContentLength int64     // Size in bytes
	ETag          string    // ETag header if present
	LastModified  time.Time // Last-Modified header if present
	Elapsed       time.Duration
}

// Downloader streams audio URLs to disk with progress-based timeouts.
type Downloader struct {
	client  *http.Client
	options Options
}

// NewDownloader creates a new downloader with the given options
func NewDownloader(options Options) *Downloader {
	return &Downloader{
		// No client-level timeout: total time is governed by MaxTimeout and
		// the stall monitor, which cancel via context.
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          10,
				IdleConnTimeout:       30 * time.Second,
				DisableCompression:    true, // Don't compress audio
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		options: options,
	}
}

// Fetch downloads a URL to the given destination path. The file is written
// to destPath + ".part" and renamed on success; on any failure the partial
// file is removed. Progress is tracked per second: a tick that moves fewer
// than MinSpeed bytes does not count as progress, and StallTimeout without
// progress or MaxTimeout overall aborts the stream.
func (d *Downloader) Fetch(ctx context.Context, url, destPath string) (*Result, error) {
	start := time.Now()
	log.Printf("[DEBUG] Starting download from %s to %s", url, destPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", d.options.UserAgent)
	req.Header.Set("Accept", "audio/*,*/*")
	for k, v := range d.options.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, statusError(url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if d.options.ValidateAudio && !isAudioContentType(contentType) {
		return nil, fmt.Errorf("invalid content type: %s", contentType)
	}

	contentLength := resp.ContentLength
	if d.options.MaxSize > 0 && contentLength > d.options.MaxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", contentLength, d.options.MaxSize)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination dir: %w", err)
	}

	partPath := destPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	written, abortErr := d.streamToFile(ctx, cancel, resp.Body, out, contentLength)
	closeErr := out.Close()

	if abortErr != nil {
		os.Remove(partPath)
		return nil, abortErr
	}
	if closeErr != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("failed to finalize download: %w", closeErr)
	}

	if err := os.Rename(partPath, destPath); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("failed to move download into place: %w", err)
	}

	elapsed := time.Since(start)
	log.Printf("[DEBUG] Downloaded %d bytes to %s in %s", written, destPath, elapsed.Round(time.Millisecond))

	result := &Result{
		FilePath:      destPath,
		ContentType:   contentType,
		ContentLength: written,
		ETag:          resp.Header.Get("ETag"),
		Elapsed:       elapsed,
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		if t, err := http.ParseTime(lastMod); err == nil {
			result.LastModified = t
		}
	}

	return result, nil
}

// streamToFile copies the body to the file while a monitor goroutine watches
// for stalls and the overall deadline. The monitor cancels the shared context,
// which surfaces here as a read error that is replaced with the abort reason.
func (d *Downloader) streamToFile(ctx context.Context, cancel context.CancelFunc, src io.Reader, dst *os.File, totalSize int64) (int64, error) {
	pr := &progressReader{
		reader:   src,
		total:    totalSize,
		callback: d.options.ProgressFunc,
	}

	var reader io.Reader = pr
	if d.options.MaxSize > 0 {
		reader = &io.LimitedReader{R: reader, N: d.options.MaxSize + 1}
	}

	done := make(chan struct{})
	var abortReason atomic.Value

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		start := time.Now()
		lastProgress := start
		var lastSeen int64

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				downloaded := pr.Downloaded()
				if downloaded-lastSeen >= d.options.MinSpeed {
					lastProgress = time.Now()
				}
				lastSeen = downloaded

				if d.options.StallTimeout > 0 && time.Since(lastProgress) >= d.options.StallTimeout {
					abortReason.Store(ErrStalled)
					cancel()
					return
				}
				if d.options.MaxTimeout > 0 && time.Since(start) >= d.options.MaxTimeout {
					abortReason.Store(ErrMaxTimeout)
					cancel()
					return
				}
			}
		}
	}()

	written, copyErr := io.Copy(dst, reader)
	close(done)

	if reason, ok := abortReason.Load().(error); ok {
		return written, fmt.Errorf("%w (after %d bytes)", reason, written)
	}
	if copyErr != nil {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		return written, fmt.Errorf("failed to download: %w", copyErr)
	}
	if d.options.MaxSize > 0 && written > d.options.MaxSize {
		return written, fmt.Errorf("file too large: exceeded %d bytes", d.options.MaxSize)
	}

	return written, nil
}

// DownloadWithRetry calls Fetch and retries a small number of times when the
// server answers 403. CDNs that rate-limit by IP often admit a request on a
// later attempt; other failures are returned immediately.
func (d *Downloader) DownloadWithRetry(ctx context.Context, url, destPath string) (*Result, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := d.Fetch(ctx, url, destPath)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isForbiddenError(err) {
			return nil, err
		}
		if attempt < maxAttempts {
			log.Printf("[DEBUG] 403 from %s, retrying (attempt %d/%d)", url, attempt, maxAttempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, lastErr
}

// statusError maps an HTTP status to a descriptive error. 403 responses get
// an explanation because they dominate real-world failures on podcast CDNs.
func statusError(url string, status int) error {
	if status == http.StatusForbidden {
		msg := "audio download blocked by CDN (403 Forbidden): the server is using IP blocking or hotlink protection"
		if strings.Contains(strings.ToLower(url), "buzzsprout") {
			msg += "; Buzzsprout serves audio to web browsers but not server-side downloads"
		}
		return errors.New(msg)
	}
	return fmt.Errorf("server returned status %d", status)
}

// isForbiddenError reports whether err came from a 403 response.
func isForbiddenError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "403 Forbidden")
}

// CleanupTempFile removes a temporary file
func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}

	log.Printf("[DEBUG] Cleaning up temp file: %s", path)
	return os.Remove(path)
}

// CleanupOldTempFiles removes files in tempDir older than the specified duration.
func CleanupOldTempFiles(tempDir string, maxAge time.Duration) error {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(tempDir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Printf("[DEBUG] Cleaned up %d old temp files", removed)
	}

	return nil
}

// isAudioContentType checks if content type is audio
func isAudioContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "video/mp4") || // M4A enclosures are often served as video/mp4
		contentType == "application/octet-stream" // Some servers use this for audio
}

// isValidAudioExtension checks if extension is valid for audio files
func isValidAudioExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	validExts := []string{"mp3", "m4a", "aac", "ogg", "wav", "flac", "opus", "webm"}
	for _, valid := range validExts {
		if ext == valid {
			return true
		}
	}
	return false
}

// ExtensionFromURL extracts a usable audio extension from a URL, defaulting
// to ".mp3" when the URL does not carry one.
func ExtensionFromURL(url string) string {
	path := url
	if idx := strings.IndexAny(path, "?#"); idx > 0 {
		path = path[:idx]
	}
	ext := filepath.Ext(path)
	if isValidAudioExtension(ext) {
		return strings.ToLower(ext)
	}
	return ".mp3"
}

// progressReader wraps a reader to report progress
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	callback   ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		atomic.AddInt64(&pr.downloaded, int64(n))
		if pr.callback != nil {
			pr.callback(pr.Downloaded(), pr.total)
		}
	}
	return n, err
}

func (pr *progressReader) Downloaded() int64 {
	return atomic.LoadInt64(&pr.downloaded)
}
