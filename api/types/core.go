package types

import "time"

// Core data types used across API responses

// Podcast is a catalog entry as exposed over the API. The retry strategy
// is surfaced read-only so operators can see which chain a podcast uses.
type Podcast struct {
	Name             string   `json:"name"`
	AppleID          int64    `json:"appleId,omitempty"`
	RSSFeeds         []string `json:"rssFeeds,omitempty"`
	SearchTerm       string   `json:"searchTerm,omitempty"`
	PrimaryStrategy  string   `json:"primaryStrategy,omitempty"`
	FallbackStrategy string   `json:"fallbackStrategy,omitempty"`
	Incompatible     bool     `json:"incompatible,omitempty"`
}

// Episode is the list-view episode shape. Transcript and summary bodies
// stay out of list responses; HasTranscript and HasSummary report whether
// they exist for the requested mode.
type Episode struct {
	ID            uint      `json:"id"`
	Podcast       string    `json:"podcast"`
	Title         string    `json:"title"`
	Published     time.Time `json:"published"`
	Description   string    `json:"description,omitempty"`
	Link          string    `json:"link,omitempty"`
	AudioURL      string    `json:"audioUrl,omitempty"`
	TranscriptURL string    `json:"transcriptUrl,omitempty"`
	Duration      *int      `json:"duration,omitempty"` // seconds
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
	GuestName     string    `json:"guestName,omitempty"`
	HasTranscript bool      `json:"hasTranscript"`
	HasSummary    bool      `json:"hasSummary"`
}

// Run is one processing batch as exposed over the API.
type Run struct {
	ID         uint                   `json:"id"`
	Status     string                 `json:"status"`
	Mode       string                 `json:"mode"`
	Total      int                    `json:"total"`
	Completed  int                    `json:"completed"`
	Failed     int                    `json:"failed"`
	Stats      map[string]interface{} `json:"stats,omitempty"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Failure is one recorded per-episode error.
type Failure struct {
	ID        uint      `json:"id"`
	Timestamp time.Time `json:"ts"`
	Component string    `json:"component"`
	Podcast   string    `json:"podcast"`
	Title     string    `json:"title"`
	ErrorKind string    `json:"errorKind"`
	ErrorMsg  string    `json:"errorMsg"`
	Retries   int       `json:"retries"`
	Mode      string    `json:"mode"`
}
