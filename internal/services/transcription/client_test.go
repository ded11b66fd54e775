package transcription

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/podforge/digest-api/pkg/errors"
)

// fakeASR fakes the speech-to-text API: one upload, one job, then a
// scripted sequence of poll statuses (the last repeats).
type fakeASR struct {
	mu         sync.Mutex
	statuses   []string
	text       string
	utterances []utterance
	jobErr     string
	uploadCode int

	polls      int
	uploadSize int64
	gotAuth    string
	gotJob     jobRequest
}

func (f *fakeASR) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.gotAuth = r.Header.Get("Authorization")
		f.uploadSize, _ = io.Copy(io.Discard, r.Body)
		if f.uploadCode != 0 {
			http.Error(w, "upload rejected", f.uploadCode)
			return
		}
		json.NewEncoder(w).Encode(uploadResponse{UploadURL: "https://cdn.example.com/upload/abc"})
	})
	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewDecoder(r.Body).Decode(&f.gotJob)
		json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: statusQueued})
	})
	mux.HandleFunc("/transcript/job-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		idx := f.polls
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		f.polls++
		resp := jobResponse{ID: "job-1", Status: f.statuses[idx]}
		if resp.Status == statusCompleted {
			resp.Text = f.text
			resp.Utterances = f.utterances
		}
		if resp.Status == statusError {
			resp.Error = f.jobErr
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeASR) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		SpeakerLabels: true,
		PollInitial:   time.Millisecond,
		PollFactor:    1.5,
		PollCap:       2 * time.Millisecond,
		PollOverall:   time.Second,
	})
}

func audioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3fake audio bytes"), 0o644))
	return path
}

func TestClientTranscribeSpeakerLabels(t *testing.T) {
	fake := &fakeASR{
		statuses: []string{statusQueued, statusProcessing, statusCompleted},
		utterances: []utterance{
			{Speaker: "A", Text: "Welcome to the show."},
			{Speaker: "B", Text: "Glad to be here."},
		},
		text: "Welcome to the show. Glad to be here.",
	}
	client := newTestClient(t, fake)

	text, err := client.Transcribe(context.Background(), audioFixture(t))

	require.NoError(t, err)
	assert.Equal(t, "Speaker A: Welcome to the show.\n\nSpeaker B: Glad to be here.", text)
	assert.Equal(t, "test-key", fake.gotAuth)
	assert.True(t, fake.gotJob.SpeakerLabels)
	assert.True(t, fake.gotJob.Punctuate)
	assert.True(t, fake.gotJob.LanguageDetection)
	assert.Equal(t, "https://cdn.example.com/upload/abc", fake.gotJob.AudioURL)
	assert.Equal(t, int64(19), fake.uploadSize)
	assert.Equal(t, 3, fake.polls)
}

func TestClientTranscribePlainText(t *testing.T) {
	fake := &fakeASR{
		statuses: []string{statusCompleted},
		text:     "  No speaker labels here.  ",
	}
	client := newTestClient(t, fake)

	text, err := client.Transcribe(context.Background(), audioFixture(t))

	require.NoError(t, err)
	assert.Equal(t, "No speaker labels here.", text)
}

func TestClientJobFailed(t *testing.T) {
	fake := &fakeASR{
		statuses: []string{statusProcessing, statusError},
		jobErr:   "audio duration too short",
	}
	client := newTestClient(t, fake)

	_, err := client.Transcribe(context.Background(), audioFixture(t))

	require.Error(t, err)
	assert.Equal(t, errs.KindASRJobFailed, errs.KindOf(err))
	assert.False(t, errs.IsRetryable(err))
	assert.Contains(t, err.Error(), "audio duration too short")
}

func TestClientUploadRejected(t *testing.T) {
	fake := &fakeASR{uploadCode: http.StatusInternalServerError}
	client := newTestClient(t, fake)

	_, err := client.Transcribe(context.Background(), audioFixture(t))

	require.Error(t, err)
	assert.Equal(t, errs.KindASRUpload, errs.KindOf(err))
	assert.True(t, errs.IsRetryable(err))
}

func TestClientQuotaExhausted(t *testing.T) {
	fake := &fakeASR{uploadCode: http.StatusTooManyRequests}
	client := newTestClient(t, fake)

	_, err := client.Transcribe(context.Background(), audioFixture(t))

	require.Error(t, err)
	assert.Equal(t, errs.KindASRQuota, errs.KindOf(err))
	assert.True(t, errs.IsRetryable(err))
}

func TestClientPollBudgetExhausted(t *testing.T) {
	fake := &fakeASR{statuses: []string{statusProcessing}}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	client := NewClient(ClientConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		PollInitial: time.Millisecond,
		PollFactor:  1.5,
		PollCap:     2 * time.Millisecond,
		PollOverall: 25 * time.Millisecond,
	})

	_, err := client.Transcribe(context.Background(), audioFixture(t))

	require.Error(t, err)
	assert.Equal(t, errs.KindASRTimeout, errs.KindOf(err))
	assert.True(t, errs.IsRetryable(err))
	assert.GreaterOrEqual(t, fake.polls, 2)
}

func TestClientPollCancelled(t *testing.T) {
	fake := &fakeASR{statuses: []string{statusProcessing}}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	client := NewClient(ClientConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		PollInitial: 50 * time.Millisecond,
		PollFactor:  1.5,
		PollCap:     50 * time.Millisecond,
		PollOverall: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Transcribe(ctx, audioFixture(t))

	require.ErrorIs(t, err, context.Canceled)
}

func TestClientMissingFile(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: "http://127.0.0.1:0"})

	_, err := client.Transcribe(context.Background(), "/nonexistent/audio.mp3")

	require.Error(t, err)
	assert.Equal(t, errs.KindASRUpload, errs.KindOf(err))
}

func TestClientEnabled(t *testing.T) {
	assert.True(t, NewClient(ClientConfig{APIKey: "k"}).Enabled())
	assert.False(t, NewClient(ClientConfig{}).Enabled())
}

func TestFormatTranscript(t *testing.T) {
	tests := []struct {
		name string
		job  jobResponse
		want string
	}{
		{
			name: "utterances win over flat text",
			job: jobResponse{
				Text:       "flat",
				Utterances: []utterance{{Speaker: "A", Text: "one"}, {Speaker: "B", Text: "two"}},
			},
			want: "Speaker A: one\n\nSpeaker B: two",
		},
		{
			name: "no utterances falls back to text",
			job:  jobResponse{Text: "just text"},
			want: "just text",
		},
		{
			name: "blank utterances fall back to text",
			job:  jobResponse{Text: "fallback", Utterances: []utterance{{Speaker: "A", Text: "   "}}},
			want: "fallback",
		},
		{
			name: "empty job",
			job:  jobResponse{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTranscript(&tt.job))
		})
	}
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "k"})

	assert.Equal(t, "https://api.assemblyai.com/v2", client.baseURL)
	assert.Equal(t, 2*time.Second, client.pollInitial)
	assert.Equal(t, 1.5, client.pollFactor)
	assert.Equal(t, 30*time.Second, client.pollCap)
	assert.Equal(t, 8*time.Minute, client.pollOverall)
}

func TestClientBaseURLTrimsSlash(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "k", BaseURL: "http://example.com/v2/"})
	assert.Equal(t, "http://example.com/v2", client.baseURL)
}
