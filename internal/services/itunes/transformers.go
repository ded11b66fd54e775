package itunes

import (
	"fmt"
	"strings"
)

// transformToPodcast converts an iTunes API result to our Podcast model
func transformToPodcast(result *lookupResult) *Podcast {
	if result == nil {
		return nil
	}

	artworkURL := result.ArtworkURL600
	if artworkURL == "" {
		artworkURL = result.ArtworkURL100
	}

	return &Podcast{
		ID:           result.CollectionID,
		Title:        result.CollectionName,
		Author:       result.ArtistName,
		FeedURL:      result.FeedURL,
		ArtworkURL:   artworkURL,
		EpisodeCount: result.TrackCount,
		ReleaseDate:  result.ReleaseDate,
		Country:      result.Country,
		ITunesURL:    result.CollectionViewURL,
	}
}

// transformToEpisode converts an iTunes API result to our Episode model
func transformToEpisode(result *lookupResult, podcastID int64) *Episode {
	if result == nil || result.Kind != "podcast-episode" {
		return nil
	}

	audioURL := result.EpisodeURL
	if audioURL == "" {
		audioURL = result.PreviewURL
	}

	return &Episode{
		ID:             result.TrackID,
		PodcastID:      podcastID,
		Title:          result.TrackName,
		Description:    result.Description,
		AudioURL:       audioURL,
		DurationMillis: result.TrackTimeMillis,
		ReleaseDate:    result.ReleaseDate,
		GUID:           result.EpisodeGUID,
		FileExtension:  result.EpisodeFileExtension,
		ContentType:    result.EpisodeContentType,
	}
}

// transformToPodcastWithEpisodes converts a lookup response to PodcastWithEpisodes
func transformToPodcastWithEpisodes(resp *lookupResponse) *PodcastWithEpisodes {
	if resp == nil || resp.ResultCount == 0 || len(resp.Results) == 0 {
		return nil
	}

	result := &PodcastWithEpisodes{
		Episodes: make([]*Episode, 0),
	}

	// First result is typically the podcast metadata
	if resp.Results[0].Kind == "podcast" {
		result.Podcast = transformToPodcast(&resp.Results[0])

		for i := 1; i < len(resp.Results); i++ {
			if episode := transformToEpisode(&resp.Results[i], result.Podcast.ID); episode != nil {
				result.Episodes = append(result.Episodes, episode)
			}
		}
		return result
	}

	// Sometimes all results are episodes; recover podcast info from the first
	first := &resp.Results[0]
	result.Podcast = &Podcast{
		ID:        first.CollectionID,
		Title:     first.CollectionName,
		Author:    first.ArtistName,
		FeedURL:   first.FeedURL,
		Country:   first.Country,
		ITunesURL: first.CollectionViewURL,
	}
	for i := range resp.Results {
		if episode := transformToEpisode(&resp.Results[i], result.Podcast.ID); episode != nil {
			result.Episodes = append(result.Episodes, episode)
		}
	}
	return result
}

// transformToSearchResults extracts the podcasts from a search response
func transformToSearchResults(resp *lookupResponse) []*Podcast {
	if resp == nil {
		return []*Podcast{}
	}

	podcasts := make([]*Podcast, 0, resp.ResultCount)
	for i := range resp.Results {
		// Only include shows, not stray episode results
		if resp.Results[i].Kind == "podcast" || resp.Results[i].WrapperType == "track" {
			podcast := transformToPodcast(&resp.Results[i])
			if podcast != nil && podcast.ID > 0 {
				podcasts = append(podcasts, podcast)
			}
		}
	}
	return podcasts
}

// ExtractPodcastIDFromURL extracts the Apple podcast ID from an iTunes URL
// Example: https://podcasts.apple.com/us/podcast/the-daily/id1200361736 -> 1200361736
func ExtractPodcastIDFromURL(itunesURL string) (int64, bool) {
	if itunesURL == "" {
		return 0, false
	}

	parts := strings.Split(itunesURL, "/")
	for _, part := range parts {
		if strings.HasPrefix(part, "id") {
			idStr := strings.TrimPrefix(part, "id")
			if idx := strings.Index(idStr, "?"); idx > 0 {
				idStr = idStr[:idx]
			}

			var id int64
			if _, err := fmt.Sscanf(idStr, "%d", &id); err == nil && id > 0 {
				return id, true
			}
		}
	}

	return 0, false
}

// NormalizeFeedURL normalizes a feed URL for comparison
func NormalizeFeedURL(feedURL string) string {
	if feedURL == "" {
		return ""
	}

	feedURL = strings.TrimPrefix(feedURL, "https://")
	feedURL = strings.TrimPrefix(feedURL, "http://")
	feedURL = strings.TrimSuffix(feedURL, "/")

	return strings.ToLower(feedURL)
}
