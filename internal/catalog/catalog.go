package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ErrUnknownPodcast reports a selection naming a podcast the catalog does
// not carry.
var ErrUnknownPodcast = errors.New("unknown podcast")

// Strategy names accepted in retry_strategy blocks. The same vocabulary
// is used by the source finder and the download router.
const (
	StrategyDirect  = "direct"
	StrategyApple   = "apple_podcasts"
	StrategyYouTube = "youtube_search"
	StrategyBrowser = "browser_automation"
	StrategyCDN     = "cdn_alternatives"
)

// Primary strategies attempt a download on their own; fallback-only
// strategies need the context of a failed chain to be useful.
var (
	primaryStrategies = map[string]bool{
		StrategyDirect:  true,
		StrategyApple:   true,
		StrategyYouTube: true,
	}
	fallbackStrategies = map[string]bool{
		StrategyDirect:  true,
		StrategyApple:   true,
		StrategyYouTube: true,
		StrategyBrowser: true,
		StrategyCDN:     true,
	}
)

// RetryStrategy is the per-podcast download policy.
type RetryStrategy struct {
	Primary            string `mapstructure:"primary"`
	Fallback           string `mapstructure:"fallback"`
	SkipRSS            bool   `mapstructure:"skip_rss"`
	ForceApple         bool   `mapstructure:"force_apple"`
	YouTubeChannel     string `mapstructure:"youtube_channel"`
	YouTubeChannelName string `mapstructure:"youtube_channel_name"`
}

// Podcast is one catalog entry from podcasts.yaml.
type Podcast struct {
	Name              string         `mapstructure:"name"`
	AppleID           int64          `mapstructure:"apple_id"`
	RSSFeeds          []string       `mapstructure:"rss_feeds"`
	SearchTerm        string         `mapstructure:"search_term"`
	RetryStrategy     RetryStrategy  `mapstructure:"retry_strategy"`
	YouTubeEpisodeMap map[int]string `mapstructure:"youtube_episode_map"`
	Incompatible      bool           `mapstructure:"incompatible"`
}

// SearchQuery returns the query used against external directories. Falls
// back to the podcast name when no explicit search_term is configured.
func (p *Podcast) SearchQuery() string {
	if p.SearchTerm != "" {
		return p.SearchTerm
	}
	return p.Name
}

// Catalog holds the immutable set of configured podcasts for a run.
type Catalog struct {
	podcasts []Podcast
	byName   map[string]*Podcast
}

// Load reads and validates the podcast catalog file. The catalog uses its
// own viper instance so it never collides with application config keys.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var podcasts []Podcast
	if err := v.UnmarshalKey("podcasts", &podcasts); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if len(podcasts) == 0 {
		return nil, fmt.Errorf("catalog %s contains no podcasts", path)
	}

	c := &Catalog{
		podcasts: podcasts,
		byName:   make(map[string]*Podcast, len(podcasts)),
	}
	for i := range c.podcasts {
		p := &c.podcasts[i]
		if err := validatePodcast(p); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		key := nameKey(p.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate podcast %q", path, p.Name)
		}
		c.byName[key] = p
	}
	return c, nil
}

func validatePodcast(p *Podcast) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("podcast entry missing name")
	}
	if p.RetryStrategy.Primary == "" {
		p.RetryStrategy.Primary = "direct"
	}
	if !primaryStrategies[p.RetryStrategy.Primary] {
		return fmt.Errorf("podcast %q: unknown primary strategy %q", p.Name, p.RetryStrategy.Primary)
	}
	if p.RetryStrategy.Fallback != "" && !fallbackStrategies[p.RetryStrategy.Fallback] {
		return fmt.Errorf("podcast %q: unknown fallback strategy %q", p.Name, p.RetryStrategy.Fallback)
	}
	if len(p.RSSFeeds) == 0 && p.AppleID == 0 && p.SearchTerm == "" {
		return fmt.Errorf("podcast %q has no feeds, apple_id, or search_term", p.Name)
	}
	return nil
}

// All returns every catalog entry in file order.
func (c *Catalog) All() []Podcast {
	out := make([]Podcast, len(c.podcasts))
	copy(out, c.podcasts)
	return out
}

// Get looks up a podcast by name (case-insensitive).
func (c *Catalog) Get(name string) (*Podcast, bool) {
	p, ok := c.byName[nameKey(name)]
	return p, ok
}

// Names returns the sorted display names of all podcasts.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.podcasts))
	for i := range c.podcasts {
		names = append(names, c.podcasts[i].Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.podcasts)
}

// Select resolves a list of podcast names to entries. An empty list selects
// the whole catalog. Unknown names fail the whole selection so a typo in a
// run request cannot silently shrink the run.
func (c *Catalog) Select(names []string) ([]Podcast, error) {
	if len(names) == 0 {
		return c.All(), nil
	}
	out := make([]Podcast, 0, len(names))
	for _, name := range names {
		p, ok := c.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownPodcast, name)
		}
		out = append(out, *p)
	}
	return out, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
