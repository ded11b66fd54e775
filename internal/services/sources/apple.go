package sources

import (
	"context"
	"log"
	"time"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/models"
	"github.com/podforge/digest-api/pkg/titles"
)

const (
	appleLookupLimit = 50
	appleMinOverlap  = 0.6
	appleDateTol     = 24 * time.Hour
)

// appleCandidate resolves the Apple-advertised URL for the episode. Match
// is fuzzy: word overlap of the titles, or release dates within a day.
func (s *Service) appleCandidate(ctx context.Context, podcast *catalog.Podcast, episode *models.Episode) (Candidate, bool) {
	if s.apple == nil || podcast.AppleID == 0 {
		return Candidate{}, false
	}

	result, err := s.apple.LookupEpisodes(ctx, podcast.AppleID, appleLookupLimit)
	if err != nil {
		log.Printf("[WARN] Apple lookup for %s failed: %v", podcast.Name, err)
		return Candidate{}, false
	}

	bestRatio := -1.0
	bestURL := ""
	for _, appleEp := range result.Episodes {
		if appleEp == nil || appleEp.AudioURL == "" {
			continue
		}
		ratio := titles.OverlapRatio(episode.Title, appleEp.Title)
		dateMatch := !episode.Published.IsZero() && !appleEp.ReleaseDate.IsZero() &&
			absDuration(episode.Published.Sub(appleEp.ReleaseDate)) <= appleDateTol

		if ratio < appleMinOverlap && !dateMatch {
			continue
		}
		// Title overlap decides between several date-window matches.
		if ratio > bestRatio {
			bestRatio = ratio
			bestURL = appleEp.AudioURL
		}
	}

	if bestURL == "" {
		log.Printf("[DEBUG] No Apple match for %s - %s", podcast.Name, episode.Title)
		return Candidate{}, false
	}
	return Candidate{URL: bestURL, Origin: OriginApple}, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
