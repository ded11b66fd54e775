package itunes

import (
	"time"
)

// lookupResponse is the top-level envelope of the iTunes Search API.
type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

// lookupResult carries the subset of iTunes result fields the digest
// pipeline reads. Podcasts arrive with kind "podcast", episodes with
// kind "podcast-episode".
type lookupResult struct {
	WrapperType string `json:"wrapperType"`
	Kind        string `json:"kind"`

	CollectionID      int64     `json:"collectionId"`
	TrackID           int64     `json:"trackId"`
	ArtistName        string    `json:"artistName"`
	CollectionName    string    `json:"collectionName"`
	TrackName         string    `json:"trackName"`
	CollectionViewURL string    `json:"collectionViewUrl"`
	FeedURL           string    `json:"feedUrl"`
	ArtworkURL100     string    `json:"artworkUrl100"`
	ArtworkURL600     string    `json:"artworkUrl600"`
	ReleaseDate       time.Time `json:"releaseDate"`
	TrackCount        int       `json:"trackCount"`
	TrackTimeMillis   int       `json:"trackTimeMillis"`
	Country           string    `json:"country"`

	EpisodeURL           string `json:"episodeUrl,omitempty"`
	PreviewURL           string `json:"previewUrl,omitempty"`
	EpisodeGUID          string `json:"episodeGuid,omitempty"`
	Description          string `json:"description,omitempty"`
	EpisodeFileExtension string `json:"episodeFileExtension,omitempty"`
	EpisodeContentType   string `json:"episodeContentType,omitempty"`
}

// Podcast is the directory view of a show.
type Podcast struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	FeedURL      string    `json:"feedUrl"`
	ArtworkURL   string    `json:"artworkUrl"`
	EpisodeCount int       `json:"episodeCount"`
	ReleaseDate  time.Time `json:"releaseDate"`
	Country      string    `json:"country"`
	ITunesURL    string    `json:"itunesUrl"`
}

// Episode is the directory view of one episode. AudioURL is the
// Apple-advertised media URL, which often survives CDN blocks that stop
// the RSS-advertised one.
type Episode struct {
	ID             int64     `json:"id"`
	PodcastID      int64     `json:"podcastId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	AudioURL       string    `json:"audioUrl"`
	DurationMillis int       `json:"durationMillis"`
	ReleaseDate    time.Time `json:"releaseDate"`
	GUID           string    `json:"guid"`
	FileExtension  string    `json:"fileExtension"`
	ContentType    string    `json:"contentType"`
}

// PodcastWithEpisodes pairs a podcast with its recent episodes.
type PodcastWithEpisodes struct {
	Podcast  *Podcast   `json:"podcast"`
	Episodes []*Episode `json:"episodes"`
}
