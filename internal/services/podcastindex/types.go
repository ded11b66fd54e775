package podcastindex

import "time"

// SearchResponse is the Podcast Index response for /search/byterm.
type SearchResponse struct {
	Status      string `json:"status"`
	Feeds       []Feed `json:"feeds"`
	Count       int    `json:"count"`
	Query       string `json:"query"`
	Description string `json:"description"`
}

// Feed is a podcast feed as the directory knows it.
type Feed struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	OriginalURL  string `json:"originalUrl"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	Image        string `json:"image"`
	Artwork      string `json:"artwork"`
	Language     string `json:"language"`
	EpisodeCount int    `json:"episodeCount"`
	ITunesID     int64  `json:"itunesId"`
}

// EpisodesResponse is the Podcast Index response for the /episodes endpoints.
type EpisodesResponse struct {
	Status      string    `json:"status"`
	Items       []Episode `json:"items"`
	Count       int       `json:"count"`
	Description string    `json:"description"`
}

// Episode is a single episode record from the directory. TranscriptURL and
// Transcripts are populated when the publisher exposes transcripts via the
// podcast namespace.
type Episode struct {
	ID              int64        `json:"id"`
	Title           string       `json:"title"`
	Link            string       `json:"link"`
	Description     string       `json:"description"`
	GUID            string       `json:"guid"`
	DatePublished   int64        `json:"datePublished"`
	EnclosureURL    string       `json:"enclosureUrl"`
	EnclosureType   string       `json:"enclosureType"`
	EnclosureLength int64        `json:"enclosureLength"`
	Duration        *int         `json:"duration"`
	EpisodeNumber   *int         `json:"episode"`
	FeedID          int64        `json:"feedId"`
	FeedTitle       string       `json:"feedTitle"`
	FeedURL         string       `json:"feedUrl"`
	TranscriptURL   string       `json:"transcriptUrl"`
	Transcripts     []Transcript `json:"transcripts"`
}

// Transcript is a transcript reference attached to an episode.
type Transcript struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Language string `json:"language"`
	Rel      string `json:"rel"`
}

// PublishedTime converts the episode's unix publish date to UTC.
func (e Episode) PublishedTime() time.Time {
	if e.DatePublished == 0 {
		return time.Time{}
	}
	return time.Unix(e.DatePublished, 0).UTC()
}

// BestTranscriptURL returns the most useful transcript reference for an
// episode. Plain text and subtitle formats are preferred over HTML or JSON
// because they need no scraping to turn into text.
func (e Episode) BestTranscriptURL() string {
	preferred := []string{"text/plain", "text/vtt", "application/srt", "text/srt"}
	for _, want := range preferred {
		for _, t := range e.Transcripts {
			if t.URL != "" && t.Type == want {
				return t.URL
			}
		}
	}
	for _, t := range e.Transcripts {
		if t.URL != "" {
			return t.URL
		}
	}
	return e.TranscriptURL
}
