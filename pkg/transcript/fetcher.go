package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FetchOptions bounds transcript downloads.
type FetchOptions struct {
	Timeout   time.Duration
	UserAgent string
	MaxSize   int64
}

func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		Timeout:   30 * time.Second,
		UserAgent: "DigestAPI/1.0",
		MaxSize:   10 << 20,
	}
}

// Fetcher downloads transcript documents and sniffs their format so the
// parser knows how to read them.
type Fetcher struct {
	client  *http.Client
	options FetchOptions
}

func NewFetcher(options FetchOptions) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: options.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        5,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		options: options,
	}
}

// TranscriptResult is one fetched transcript document.
type TranscriptResult struct {
	Content     string
	Format      TranscriptFormat
	ContentType string
	Size        int64
}

// Fetch downloads url and returns its content with the detected format.
// Bodies over MaxSize are rejected rather than truncated.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*TranscriptResult, error) {
	if url == "" {
		return nil, fmt.Errorf("empty transcript URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.options.UserAgent)
	req.Header.Set("Accept", "text/vtt,text/plain,application/x-subrip,application/json,text/html,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.options.MaxSize {
		return nil, fmt.Errorf("transcript too large: %d bytes (max: %d)", resp.ContentLength, f.options.MaxSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.options.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	if int64(len(body)) > f.options.MaxSize {
		return nil, fmt.Errorf("transcript too large: exceeds %d bytes", f.options.MaxSize)
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	return &TranscriptResult{
		Content:     content,
		Format:      detectFormat(url, contentType, content),
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

// suffix and content-type hints, checked before content sniffing
var (
	extFormats = map[string]TranscriptFormat{
		".vtt":  FormatVTT,
		".srt":  FormatSRT,
		".json": FormatJSON,
		".txt":  FormatText,
		".html": FormatHTML,
		".htm":  FormatHTML,
	}
	typeFormats = []struct {
		marker string
		format TranscriptFormat
	}{
		{"vtt", FormatVTT},
		{"subrip", FormatSRT},
		{"srt", FormatSRT},
		{"json", FormatJSON},
		{"html", FormatHTML},
	}
)

// detectFormat picks the transcript format from the URL extension, the
// Content-Type, and finally the content itself.
func detectFormat(url, contentType, content string) TranscriptFormat {
	lower := strings.ToLower(url)
	for ext, format := range extFormats {
		if strings.HasSuffix(lower, ext) {
			return format
		}
	}

	ct := strings.ToLower(contentType)
	for _, hint := range typeFormats {
		if strings.Contains(ct, hint.marker) {
			return hint.format
		}
	}

	head := strings.TrimSpace(content[:min(200, len(content))])
	switch {
	case strings.HasPrefix(head, "WEBVTT"):
		return FormatVTT
	case strings.Contains(head, "-->"):
		// Cue arrows without the WEBVTT magic further up mean SRT.
		if strings.Contains(content[:min(1000, len(content))], "WEBVTT") {
			return FormatVTT
		}
		return FormatSRT
	case strings.HasPrefix(head, "{"), strings.HasPrefix(head, "["):
		return FormatJSON
	}
	lowerHead := strings.ToLower(head)
	if strings.HasPrefix(lowerHead, "<!doctype") || strings.HasPrefix(lowerHead, "<html") {
		return FormatHTML
	}
	return FormatText
}
