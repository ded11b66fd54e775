package spotify

import "time"

// searchResponse is the Spotify response for /v1/search?type=show.
type searchResponse struct {
	Shows struct {
		Items []showItem `json:"items"`
		Total int        `json:"total"`
	} `json:"shows"`
}

// episodesResponse is the Spotify response for /v1/shows/{id}/episodes.
type episodesResponse struct {
	Items []episodeItem `json:"items"`
	Total int           `json:"total"`
}

type showItem struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Publisher     string            `json:"publisher"`
	Description   string            `json:"description"`
	TotalEpisodes int               `json:"total_episodes"`
	ExternalURLs  map[string]string `json:"external_urls"`
}

type episodeItem struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	ReleaseDate          string            `json:"release_date"`
	ReleaseDatePrecision string            `json:"release_date_precision"`
	DurationMS           int               `json:"duration_ms"`
	ExternalURLs         map[string]string `json:"external_urls"`
	AudioPreviewURL      string            `json:"audio_preview_url"`
}

// Show is a podcast show as Spotify's catalog knows it.
type Show struct {
	ID            string
	Name          string
	Publisher     string
	Description   string
	TotalEpisodes int
	ExternalURL   string
}

// Episode is a Spotify episode record. Spotify never exposes full audio, so
// these are metadata-only: link, duration, description, release date.
type Episode struct {
	ID              string
	Name            string
	Description     string
	Released        time.Time
	DurationSeconds int
	ExternalURL     string
	PreviewURL      string
}

func (s showItem) toShow() Show {
	return Show{
		ID:            s.ID,
		Name:          s.Name,
		Publisher:     s.Publisher,
		Description:   s.Description,
		TotalEpisodes: s.TotalEpisodes,
		ExternalURL:   s.ExternalURLs["spotify"],
	}
}

func (e episodeItem) toEpisode() Episode {
	return Episode{
		ID:              e.ID,
		Name:            e.Name,
		Description:     e.Description,
		Released:        parseReleaseDate(e.ReleaseDate, e.ReleaseDatePrecision),
		DurationSeconds: e.DurationMS / 1000,
		ExternalURL:     e.ExternalURLs["spotify"],
		PreviewURL:      e.AudioPreviewURL,
	}
}

// parseReleaseDate handles Spotify's variable-precision release dates.
func parseReleaseDate(value, precision string) time.Time {
	if value == "" {
		return time.Time{}
	}

	layout := "2006-01-02"
	switch precision {
	case "month":
		layout = "2006-01"
	case "year":
		layout = "2006"
	}

	t, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
