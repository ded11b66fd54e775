package episodes

import (
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/pkg/titles"
)

// Deduplicate collapses the same episode seen through different sources.
// Two entries match on equal non-empty GUIDs, or on equal normalized
// titles published within one day. Merging keeps every non-empty field of
// the preferred source and fills its gaps from the other; output order is
// first appearance, which makes the operation stable and idempotent.
func Deduplicate(entries []SourcedEpisode) []models.Episode {
	merged := make([]SourcedEpisode, 0, len(entries))

	for _, entry := range entries {
		idx := findDuplicate(merged, &entry)
		if idx < 0 {
			merged = append(merged, entry)
			continue
		}
		merged[idx] = mergeEpisodes(merged[idx], entry)
	}

	out := make([]models.Episode, len(merged))
	for i := range merged {
		out[i] = merged[i].Episode
	}
	return out
}

func findDuplicate(merged []SourcedEpisode, entry *SourcedEpisode) int {
	for i := range merged {
		a, b := &merged[i].Episode, &entry.Episode
		if a.GUID != "" && a.GUID == b.GUID {
			return i
		}
		if titles.SameEpisode(a.Title, a.Published, b.Title, b.Published) {
			return i
		}
	}
	return -1
}

// mergeEpisodes combines a duplicate pair. The better-ranked source wins
// every field it has a value for, including the identity fields; the other
// entry only fills gaps.
func mergeEpisodes(existing, incoming SourcedEpisode) SourcedEpisode {
	primary, secondary := existing, incoming
	if sourceRank(incoming.Source) < sourceRank(existing.Source) {
		primary, secondary = incoming, existing
	}

	ep := primary.Episode
	fillEmpty(&ep, &secondary.Episode)
	return SourcedEpisode{Episode: ep, Source: primary.Source}
}

func fillEmpty(dst, src *models.Episode) {
	if dst.AudioURL == "" {
		dst.AudioURL = src.AudioURL
	}
	if dst.TranscriptURL == "" {
		dst.TranscriptURL = src.TranscriptURL
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Link == "" {
		dst.Link = src.Link
	}
	if dst.GUID == "" {
		dst.GUID = src.GUID
	}
	if dst.Duration == nil {
		dst.Duration = src.Duration
	}
	if dst.ApplePodcastID == 0 {
		dst.ApplePodcastID = src.ApplePodcastID
	}
	if dst.EpisodeNumber == nil {
		dst.EpisodeNumber = src.EpisodeNumber
	}
	if dst.GuestName == "" {
		dst.GuestName = src.GuestName
	}
	if dst.FileExtension == "" {
		dst.FileExtension = src.FileExtension
	}
}
