package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/podforge/digest-api/internal/services/cache"
)

// CachedClient wraps a Client with read-through caching. Directory
// lookups repeat across runs and across strategies within a run, so a
// one-hour TTL saves most of the Apple traffic.
type CachedClient struct {
	*Client
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedClient creates an iTunes client backed by the shared cache.
func NewCachedClient(cfg Config, store cache.Cache, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedClient{
		Client: NewClient(cfg),
		cache:  store,
		ttl:    ttl,
	}
}

// LookupPodcast fetches podcast metadata with caching
func (c *CachedClient) LookupPodcast(ctx context.Context, appleID int64) (*Podcast, error) {
	key := fmt.Sprintf("itunes:podcast:%d", appleID)

	if data, found := c.cache.Get(ctx, key); found {
		c.metrics.cacheHits.Add(1)
		var podcast Podcast
		if err := json.Unmarshal(data, &podcast); err == nil {
			return &podcast, nil
		}
	}
	c.metrics.cacheMisses.Add(1)

	podcast, err := c.Client.LookupPodcast(ctx, appleID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(podcast); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return podcast, nil
}

// LookupEpisodes fetches podcast episodes with caching
func (c *CachedClient) LookupEpisodes(ctx context.Context, appleID int64, limit int) (*PodcastWithEpisodes, error) {
	key := fmt.Sprintf("itunes:episodes:%d:%d", appleID, limit)

	if data, found := c.cache.Get(ctx, key); found {
		c.metrics.cacheHits.Add(1)
		var result PodcastWithEpisodes
		if err := json.Unmarshal(data, &result); err == nil {
			return &result, nil
		}
	}
	c.metrics.cacheMisses.Add(1)

	result, err := c.Client.LookupEpisodes(ctx, appleID, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return result, nil
}

// Search finds podcasts by term with caching
func (c *CachedClient) Search(ctx context.Context, term string, limit int) ([]*Podcast, error) {
	key := fmt.Sprintf("itunes:search:%s:%d", term, limit)

	if data, found := c.cache.Get(ctx, key); found {
		c.metrics.cacheHits.Add(1)
		var podcasts []*Podcast
		if err := json.Unmarshal(data, &podcasts); err == nil {
			return podcasts, nil
		}
	}
	c.metrics.cacheMisses.Add(1)

	podcasts, err := c.Client.Search(ctx, term, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(podcasts); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return podcasts, nil
}
