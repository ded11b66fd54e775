package types

import (
	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
)

// Transformers from internal models to API shapes. List endpoints never
// ship transcript or summary bodies; the views carry presence flags
// instead.

// PodcastView converts a catalog entry to its API shape.
func PodcastView(p *catalog.Podcast) Podcast {
	return Podcast{
		Name:             p.Name,
		AppleID:          p.AppleID,
		RSSFeeds:         p.RSSFeeds,
		SearchTerm:       p.SearchTerm,
		PrimaryStrategy:  p.RetryStrategy.Primary,
		FallbackStrategy: p.RetryStrategy.Fallback,
		Incompatible:     p.Incompatible,
	}
}

// PodcastViews converts a catalog slice, preserving order.
func PodcastViews(ps []catalog.Podcast) []Podcast {
	out := make([]Podcast, len(ps))
	for i := range ps {
		out[i] = PodcastView(&ps[i])
	}
	return out
}

// EpisodeView converts an episode for the given mode. The artifact flags
// report that mode only; the other mode's columns are invisible here.
func EpisodeView(ep *models.Episode, mode models.Mode) Episode {
	transcript, _ := ep.TranscriptFor(mode)
	paragraph, long := ep.SummaryFor(mode)
	return Episode{
		ID:            ep.ID,
		Podcast:       ep.Podcast,
		Title:         ep.Title,
		Published:     ep.Published,
		Description:   ep.Description,
		Link:          ep.Link,
		AudioURL:      ep.AudioURL,
		TranscriptURL: ep.TranscriptURL,
		Duration:      ep.Duration,
		EpisodeNumber: ep.EpisodeNumber,
		GuestName:     ep.GuestName,
		HasTranscript: transcript != "",
		HasSummary:    paragraph != "" || long != "",
	}
}

// EpisodeViews converts an episode slice for the given mode.
func EpisodeViews(eps []models.Episode, mode models.Mode) []Episode {
	out := make([]Episode, len(eps))
	for i := range eps {
		out[i] = EpisodeView(&eps[i], mode)
	}
	return out
}

// RunView converts a run record to its API shape.
func RunView(r *models.Run) *Run {
	if r == nil {
		return nil
	}
	return &Run{
		ID:         r.ID,
		Status:     string(r.Status),
		Mode:       string(r.Mode),
		Total:      r.Total,
		Completed:  r.Completed,
		Failed:     r.Failed,
		Stats:      r.Stats,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
	}
}

// RunViews converts a run slice, preserving order.
func RunViews(rs []models.Run) []Run {
	out := make([]Run, len(rs))
	for i := range rs {
		out[i] = *RunView(&rs[i])
	}
	return out
}

// FailureView converts a failure record to its API shape.
func FailureView(f *models.Failure) Failure {
	return Failure{
		ID:        f.ID,
		Timestamp: f.Timestamp,
		Component: f.Component,
		Podcast:   f.Podcast,
		Title:     f.Title,
		ErrorKind: f.ErrorKind,
		ErrorMsg:  f.ErrorMsg,
		Retries:   f.Retries,
		Mode:      string(f.Mode),
	}
}

// FailureViews converts a failure slice, preserving order.
func FailureViews(fs []models.Failure) []Failure {
	out := make([]Failure, len(fs))
	for i := range fs {
		out[i] = FailureView(&fs[i])
	}
	return out
}
