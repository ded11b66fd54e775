package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "github.com/podforge/digest-api/pkg/errors"
)

// Job states reported by the speech-to-text API.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// ClientConfig holds configuration for the speech-to-text client.
// Zero values get production defaults.
type ClientConfig struct {
	APIKey        string
	BaseURL       string
	SpeakerLabels bool
	PollInitial   time.Duration
	PollFactor    float64
	PollCap       time.Duration
	PollOverall   time.Duration
}

// Client talks to an AssemblyAI-compatible speech-to-text API: upload the
// audio, create a transcription job, poll until it settles.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	speakerLabels bool
	pollInitial   time.Duration
	pollFactor    float64
	pollCap       time.Duration
	pollOverall   time.Duration
}

// NewClient creates a speech-to-text client. The HTTP client carries no
// global timeout; uploads of long episodes are bounded by the caller's
// context instead.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.assemblyai.com/v2"
	}
	if cfg.PollInitial <= 0 {
		cfg.PollInitial = 2 * time.Second
	}
	if cfg.PollFactor <= 1 {
		cfg.PollFactor = 1.5
	}
	if cfg.PollCap <= 0 {
		cfg.PollCap = 30 * time.Second
	}
	if cfg.PollOverall <= 0 {
		cfg.PollOverall = 8 * time.Minute
	}
	return &Client{
		httpClient:    &http.Client{},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		speakerLabels: cfg.SpeakerLabels,
		pollInitial:   cfg.PollInitial,
		pollFactor:    cfg.PollFactor,
		pollCap:       cfg.PollCap,
		pollOverall:   cfg.PollOverall,
	}
}

// Enabled reports whether the client has an API key.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type jobRequest struct {
	AudioURL          string `json:"audio_url"`
	SpeakerLabels     bool   `json:"speaker_labels"`
	Punctuate         bool   `json:"punctuate"`
	LanguageDetection bool   `json:"language_detection"`
}

type utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type jobResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Text       string      `json:"text"`
	Error      string      `json:"error"`
	Utterances []utterance `json:"utterances"`
}

// Transcribe uploads the file, creates a job, and polls until it completes.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audioURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return "", err
	}

	jobID, err := c.createJob(ctx, audioURL)
	if err != nil {
		return "", err
	}
	log.Printf("[DEBUG] transcription: job %s created for %s", jobID, filepath.Base(audioPath))

	job, err := c.await(ctx, jobID)
	if err != nil {
		return "", err
	}
	return formatTranscript(job), nil
}

// upload streams the audio file to the service and returns its temporary URL.
func (c *Client) upload(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", errs.ASRError(errs.KindASRUpload, fmt.Sprintf("opening %s", filepath.Base(audioPath)), err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errs.ASRError(errs.KindASRUpload, fmt.Sprintf("stat %s", filepath.Base(audioPath)), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", file)
	if err != nil {
		return "", errs.ASRError(errs.KindASRUpload, "creating upload request", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := c.do(req, &out, "upload"); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errs.ASRError(errs.KindASRUpload, "upload response missing upload_url", nil)
	}
	return out.UploadURL, nil
}

// createJob submits the transcription job for an uploaded file.
func (c *Client) createJob(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(jobRequest{
		AudioURL:          audioURL,
		SpeakerLabels:     c.speakerLabels,
		Punctuate:         true,
		LanguageDetection: true,
	})
	if err != nil {
		return "", errs.ASRError(errs.KindASRUpload, "encoding job request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", errs.ASRError(errs.KindASRUpload, "creating job request", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out jobResponse
	if err := c.do(req, &out, "create job"); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errs.ASRError(errs.KindASRUpload, "job response missing id", nil)
	}
	return out.ID, nil
}

// await polls the job with exponential backoff until it completes, fails,
// or the overall poll budget runs out.
func (c *Client) await(ctx context.Context, jobID string) (*jobResponse, error) {
	interval := c.pollInitial
	deadline := time.Now().Add(c.pollOverall)

	for {
		job, err := c.jobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case statusCompleted:
			return job, nil
		case statusError:
			return nil, errs.ASRError(errs.KindASRJobFailed, fmt.Sprintf("job %s failed: %s", jobID, job.Error), nil)
		}

		if time.Now().After(deadline) {
			return nil, errs.ASRError(errs.KindASRTimeout, fmt.Sprintf("job %s still %s after %s", jobID, job.Status, c.pollOverall), nil)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * c.pollFactor)
		if interval > c.pollCap {
			interval = c.pollCap
		}
	}
}

// jobStatus fetches the current state of a transcription job.
func (c *Client) jobStatus(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, errs.ASRError(errs.KindASRUpload, "creating status request", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	var out jobResponse
	if err := c.do(req, &out, fmt.Sprintf("poll job %s", jobID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes the request and decodes the JSON response, translating HTTP
// failures into the component's error kinds.
func (c *Client) do(req *http.Request, result interface{}, action string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.ASRError(errs.KindASRUpload, action+" request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.ASRError(errs.KindASRQuota, action+": transcription quota exhausted (429)", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.ASRError(errs.KindASRUpload,
			fmt.Sprintf("%s: service returned status %d: %s", action, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errs.ASRError(errs.KindASRUpload, action+": decoding response", err)
	}
	return nil
}

// formatTranscript renders speaker-labelled utterances as blank-line
// separated blocks, falling back to the flat text.
func formatTranscript(job *jobResponse) string {
	if len(job.Utterances) == 0 {
		return strings.TrimSpace(job.Text)
	}
	blocks := make([]string, 0, len(job.Utterances))
	for _, u := range job.Utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Speaker %s: %s", u.Speaker, text))
	}
	if len(blocks) == 0 {
		return strings.TrimSpace(job.Text)
	}
	return strings.Join(blocks, "\n\n")
}
