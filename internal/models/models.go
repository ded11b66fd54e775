package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Mode selects which set of persisted transcript/summary fields an
// operation reads and writes. Test mode additionally trims audio before
// transcription.
type Mode string

const (
	ModeTest Mode = "test"
	ModeFull Mode = "full"
)

// ParseMode validates a mode string from config or an API request.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTest, ModeFull:
		return Mode(s), nil
	case "":
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeTest, ModeFull)
	}
}

// Transcript source tags.
const (
	SourceAPIDirect = "api_direct"
	SourceScraped   = "scraped"
	SourceGenerated = "generated"
)

// EpisodeKey is the stable identity triple used as the cache key across
// every store lookup. Published is always UTC.
type EpisodeKey struct {
	Podcast   string    `json:"podcast"`
	Title     string    `json:"title"`
	Published time.Time `json:"published"`
}

func (k EpisodeKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Podcast, k.Title, k.Published.UTC().Format(time.RFC3339))
}

// Episode represents one podcast episode together with its per-mode
// transcript and summary artifacts. Identity is (podcast, title,
// published); the composite unique index makes upserts idempotent.
type Episode struct {
	gorm.Model
	Podcast   string    `json:"podcast" gorm:"not null;uniqueIndex:idx_episode_identity"`
	Title     string    `json:"title" gorm:"not null;uniqueIndex:idx_episode_identity"`
	Published time.Time `json:"published" gorm:"not null;uniqueIndex:idx_episode_identity"`

	// Feed metadata
	AudioURL       string `json:"audio_url"`
	TranscriptURL  string `json:"transcript_url"`
	Description    string `json:"description" gorm:"type:text"`
	Link           string `json:"link"`
	GUID           string `json:"guid" gorm:"index"`
	Duration       *int   `json:"duration"` // seconds, nullable
	ApplePodcastID int64  `json:"apple_podcast_id"`

	// Extracted metadata
	EpisodeNumber *int   `json:"episode_number"`
	GuestName     string `json:"guest_name"`
	FileExtension string `json:"file_extension"`

	// Mode-paired artifacts. The unsuffixed columns are full mode; rows
	// created before the mode split are full-mode data.
	Transcript           string `json:"transcript,omitempty" gorm:"type:text"`
	TranscriptTest       string `json:"transcript_test,omitempty" gorm:"type:text"`
	TranscriptSource     string `json:"transcript_source,omitempty"`
	TranscriptSourceTest string `json:"transcript_source_test,omitempty"`
	Summary              string `json:"summary,omitempty" gorm:"type:text"`
	SummaryTest          string `json:"summary_test,omitempty" gorm:"type:text"`
	ParagraphSummary     string `json:"paragraph_summary,omitempty" gorm:"type:text"`
	ParagraphSummaryTest string `json:"paragraph_summary_test,omitempty" gorm:"type:text"`
}

// TableName specifies the table name for GORM
func (Episode) TableName() string {
	return "episodes"
}

// Key returns the identity triple with Published normalized to UTC.
func (e *Episode) Key() EpisodeKey {
	return EpisodeKey{Podcast: e.Podcast, Title: e.Title, Published: e.Published.UTC()}
}

// HasMedia reports whether the episode carries anything the pipeline can
// work with. Episodes without both are dropped by the fetcher.
func (e *Episode) HasMedia() bool {
	return e.AudioURL != "" || e.TranscriptURL != ""
}

// TranscriptFor returns the transcript text and source tag for one mode
// only. It never falls back to the other mode's columns.
func (e *Episode) TranscriptFor(mode Mode) (text, source string) {
	if mode == ModeTest {
		return e.TranscriptTest, e.TranscriptSourceTest
	}
	return e.Transcript, e.TranscriptSource
}

// SetTranscript writes the transcript columns for one mode, leaving the
// other mode untouched.
func (e *Episode) SetTranscript(mode Mode, text, source string) {
	if mode == ModeTest {
		e.TranscriptTest = text
		e.TranscriptSourceTest = source
		return
	}
	e.Transcript = text
	e.TranscriptSource = source
}

// SummaryFor returns (paragraph, long) for one mode. Either may be empty;
// partial reads are allowed.
func (e *Episode) SummaryFor(mode Mode) (paragraph, long string) {
	if mode == ModeTest {
		return e.ParagraphSummaryTest, e.SummaryTest
	}
	return e.ParagraphSummary, e.Summary
}

// SetSummary writes both summary columns for one mode.
func (e *Episode) SetSummary(mode Mode, paragraph, long string) {
	if mode == ModeTest {
		e.ParagraphSummaryTest = paragraph
		e.SummaryTest = long
		return
	}
	e.ParagraphSummary = paragraph
	e.Summary = long
}
