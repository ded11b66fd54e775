package types

import "github.com/podforge/digest-api/internal/models"

// FetchEpisodesRequest selects podcasts for a catalog fetch. An empty body
// fetches the default window for every configured podcast.
type FetchEpisodesRequest struct {
	Podcasts []string `json:"podcasts,omitempty" example:"Acme Radio Hour"`
	DaysBack int      `json:"daysBack,omitempty" example:"7"`
}

// StartRunRequest selects the batch for a new processing run. Episodes
// picks stored episodes by identity; when empty, the run covers every
// episode fetched for the selected podcasts in the window.
type StartRunRequest struct {
	Mode     string              `json:"mode,omitempty" example:"full"`
	Podcasts []string            `json:"podcasts,omitempty" example:"Acme Radio Hour"`
	DaysBack int                 `json:"daysBack,omitempty" example:"7"`
	Episodes []models.EpisodeKey `json:"episodes,omitempty"`
}
