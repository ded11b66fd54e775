package types

import "github.com/podforge/digest-api/internal/services/pipeline"

// Status constants for API responses
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusProcessing = "processing"
)

// BaseResponse contains fields common to all API responses
type BaseResponse struct {
	Status  string `json:"status"`            // One of the Status constants above
	Message string `json:"message,omitempty"` // Human-readable message
}

// ErrorResponse for detailed error information
type ErrorResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`   // Error code/type
	Details interface{} `json:"details,omitempty"` // Additional error details
}

// PodcastsResponse lists the configured catalog.
type PodcastsResponse struct {
	BaseResponse
	Podcasts []Podcast `json:"podcasts"`
	Count    int       `json:"count"`
}

// EpisodesResponse for episode lists
type EpisodesResponse struct {
	BaseResponse
	Episodes []Episode `json:"episodes"`
	Count    int       `json:"count"`
	Mode     string    `json:"mode,omitempty"` // Mode the artifact flags were computed for
}

// RunResponse for a single run
type RunResponse struct {
	BaseResponse
	Run *Run `json:"run"`
}

// RunsResponse for run lists, newest first
type RunsResponse struct {
	BaseResponse
	Runs  []Run `json:"runs"`
	Count int   `json:"count"`
}

// RunEventsResponse carries the progress snapshot of a run together with
// the run itself, so pollers can stop once the run is terminal.
type RunEventsResponse struct {
	BaseResponse
	Run    *Run             `json:"run"`
	Events []pipeline.Event `json:"events"`
	Count  int              `json:"count"`
}

// FailuresResponse for recorded per-episode failures, newest first
type FailuresResponse struct {
	BaseResponse
	Failures []Failure `json:"failures"`
	Count    int       `json:"count"`
}
