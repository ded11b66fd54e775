package episodes

import (
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/podcastindex"
	"github.com/podforge/digest-api/pkg/download"
	"github.com/podforge/digest-api/pkg/titles"
)

// episodeFromItem extracts one episode from a feed entry. Entries without
// a parseable publication date are dropped (nil return): without the
// identity triple nothing downstream can key on them.
func episodeFromItem(podcast string, item *gofeed.Item) *models.Episode {
	published := itemPublished(item)
	if published == nil {
		return nil
	}

	ep := &models.Episode{
		Podcast:       podcast,
		Title:         strings.TrimSpace(item.Title),
		Published:     published.UTC(),
		Description:   strings.TrimSpace(item.Description),
		Link:          item.Link,
		GUID:          item.GUID,
		AudioURL:      enclosureURL(item),
		TranscriptURL: transcriptURL(item),
	}
	if ep.Title == "" {
		return nil
	}

	if item.ITunesExt != nil {
		if secs, ok := parseDuration(item.ITunesExt.Duration); ok {
			ep.Duration = &secs
		}
		if n, err := strconv.Atoi(item.ITunesExt.Episode); err == nil && n > 0 {
			ep.EpisodeNumber = &n
		}
	}

	fillDerivedMetadata(ep)
	return ep
}

// itemPublished prefers the published date, falling back to updated.
func itemPublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// enclosureURL prefers audio/* enclosures, then any enclosure with a URL.
func enclosureURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// transcriptURL reads the first podcast:transcript extension element.
func transcriptURL(item *gofeed.Item) string {
	podcastExt, ok := item.Extensions["podcast"]
	if !ok {
		return ""
	}
	for _, ext := range podcastExt["transcript"] {
		if u := ext.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

// episodeFromApple converts an iTunes directory entry.
func episodeFromApple(podcast string, appleEp *itunes.Episode) *models.Episode {
	if appleEp.Title == "" || appleEp.ReleaseDate.IsZero() {
		return nil
	}
	ep := &models.Episode{
		Podcast:        podcast,
		Title:          strings.TrimSpace(appleEp.Title),
		Published:      appleEp.ReleaseDate.UTC(),
		Description:    appleEp.Description,
		AudioURL:       appleEp.AudioURL,
		GUID:           appleEp.GUID,
		ApplePodcastID: appleEp.ID,
		FileExtension:  appleEp.FileExtension,
	}
	if appleEp.DurationMillis > 0 {
		secs := appleEp.DurationMillis / 1000
		ep.Duration = &secs
	}
	fillDerivedMetadata(ep)
	return ep
}

// episodeFromDirectory converts a Podcast Index entry.
func episodeFromDirectory(podcast string, dirEp *podcastindex.Episode) *models.Episode {
	published := dirEp.PublishedTime()
	if dirEp.Title == "" || published.IsZero() {
		return nil
	}
	ep := &models.Episode{
		Podcast:       podcast,
		Title:         strings.TrimSpace(dirEp.Title),
		Published:     published.UTC(),
		Description:   dirEp.Description,
		Link:          dirEp.Link,
		GUID:          dirEp.GUID,
		AudioURL:      dirEp.EnclosureURL,
		TranscriptURL: dirEp.BestTranscriptURL(),
	}
	if dirEp.Duration != nil && *dirEp.Duration > 0 {
		secs := *dirEp.Duration
		ep.Duration = &secs
	}
	if dirEp.EpisodeNumber != nil && *dirEp.EpisodeNumber > 0 {
		n := *dirEp.EpisodeNumber
		ep.EpisodeNumber = &n
	}
	fillDerivedMetadata(ep)
	return ep
}

// fillDerivedMetadata populates the heuristic fields every source shares.
func fillDerivedMetadata(ep *models.Episode) {
	if ep.EpisodeNumber == nil {
		if n, ok := titles.ExtractEpisodeNumber(ep.Title); ok {
			ep.EpisodeNumber = &n
		}
	}
	if ep.GuestName == "" {
		if guest, ok := titles.ExtractGuestName(ep.Title); ok {
			ep.GuestName = guest
		}
	}
	if ep.FileExtension == "" && ep.AudioURL != "" {
		ep.FileExtension = download.ExtensionFromURL(ep.AudioURL)
	}
}

// parseDuration accepts "HH:MM:SS", "MM:SS" and bare-second forms.
func parseDuration(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if !strings.Contains(raw, ":") {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			return 0, false
		}
		return secs, true
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
