package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Component names used in error records and failure rows.
const (
	ComponentStore         = "store"
	ComponentFetcher       = "fetcher"
	ComponentSources       = "sources"
	ComponentDownloads     = "downloads"
	ComponentTranscripts   = "transcripts"
	ComponentTranscription = "transcription"
	ComponentSummaries     = "summaries"
	ComponentPipeline      = "pipeline"
)

// Kind identifies the failure class inside a component.
type Kind string

const (
	KindFeed               Kind = "feed_error"
	KindNoMedia            Kind = "no_media"
	KindStalled            Kind = "stalled"
	KindMaxTimeout         Kind = "max_timeout"
	KindNetwork            Kind = "network"
	KindValidationFailed   Kind = "validation_failed"
	KindAllStrategiesFail  Kind = "all_strategies_failed"
	KindTranscriptNotFound Kind = "transcript_not_found"
	KindASRUpload          Kind = "upload"
	KindASRJobFailed       Kind = "job_failed"
	KindASRTimeout         Kind = "timeout"
	KindASRQuota           Kind = "quota"
	KindLLM                Kind = "llm"
	KindRateLimited        Kind = "rate_limited"
	KindInvalidOutput      Kind = "invalid_output"
	KindStoreIO            Kind = "io"
	KindStoreSchema        Kind = "schema"
	KindCancelled          Kind = "cancelled"
)

// HTTPKind builds the download kind for an HTTP status, e.g. "http_403".
func HTTPKind(status int) Kind {
	return Kind(fmt.Sprintf("http_%d", status))
}

// PipelineError is the structured error every component reports to the
// orchestrator after exhausting its local retry policy.
type PipelineError struct {
	Component string                 `json:"component"`
	Podcast   string                 `json:"podcast,omitempty"`
	Episode   string                 `json:"episode,omitempty"`
	Kind      Kind                   `json:"kind"`
	Retryable bool                   `json:"retryable"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	s := fmt.Sprintf("%s/%s: %s", e.Component, e.Kind, e.Message)
	if e.Episode != "" {
		s = fmt.Sprintf("%s/%s: %s: %s", e.Component, e.Kind, e.Episode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", s, e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *PipelineError) WithDetail(key string, value interface{}) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithEpisode tags the error with the failing episode's podcast and title.
func (e *PipelineError) WithEpisode(podcast, title string) *PipelineError {
	e.Podcast = podcast
	e.Episode = title
	return e
}

// New creates a PipelineError with an explicit retryable flag.
func New(component string, kind Kind, retryable bool, message string) *PipelineError {
	return &PipelineError{Component: component, Kind: kind, Retryable: retryable, Message: message}
}

// Wrap creates a PipelineError around a cause.
func Wrap(cause error, component string, kind Kind, retryable bool, message string) *PipelineError {
	return &PipelineError{Component: component, Kind: kind, Retryable: retryable, Message: message, Cause: cause}
}

// Taxonomy constructors. Retryability defaults follow the propagation
// policy: feed and store IO problems are worth another pass, structural
// problems (no media, invalid output, schema) are not.

func FeedError(podcast, source string, cause error) *PipelineError {
	return Wrap(cause, ComponentFetcher, KindFeed, true, fmt.Sprintf("source %s failed", source)).
		WithDetail("source", source).WithEpisode(podcast, "")
}

func NoMediaError(podcast, title string) *PipelineError {
	return New(ComponentFetcher, KindNoMedia, false, "episode has no audio or transcript URL").
		WithEpisode(podcast, title)
}

func DownloadError(kind Kind, message string, cause error) *PipelineError {
	retryable := kind != KindValidationFailed && kind != KindAllStrategiesFail
	return Wrap(cause, ComponentDownloads, kind, retryable, message)
}

func TranscriptNotFound(podcast, title string) *PipelineError {
	return New(ComponentTranscripts, KindTranscriptNotFound, false, "all transcript sources exhausted").
		WithEpisode(podcast, title)
}

func ASRError(kind Kind, message string, cause error) *PipelineError {
	retryable := kind != KindASRJobFailed
	return Wrap(cause, ComponentTranscription, kind, retryable, message)
}

func SummarizationError(kind Kind, message string, cause error) *PipelineError {
	retryable := kind == KindRateLimited || kind == KindLLM
	return Wrap(cause, ComponentSummaries, kind, retryable, message)
}

func StoreError(kind Kind, operation string, cause error) *PipelineError {
	return Wrap(cause, ComponentStore, kind, kind == KindStoreIO, fmt.Sprintf("store %s failed", operation)).
		WithDetail("operation", operation)
}

func Cancelled(component string) *PipelineError {
	return New(component, KindCancelled, false, "cancelled")
}

// IsRetryable reports whether the orchestrator may retry the operation.
// Cancellation is never retryable. Raw network errors that did not get
// wrapped are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsCancelled(err) {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// IsCancelled reports whether err is the cooperative-cancellation signal.
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == KindCancelled
}

// KindOf extracts the kind from an error chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status the API surfaces it with.
func HTTPStatus(err error) int {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Kind {
	case KindTranscriptNotFound, KindNoMedia:
		return http.StatusNotFound
	case KindRateLimited, KindASRQuota:
		return http.StatusTooManyRequests
	case KindCancelled:
		return http.StatusConflict
	case KindInvalidOutput, KindValidationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
