package downloads

import (
	"log"
	"net/url"
	"strings"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/services/youtube"
)

// defaultChains maps podcast name → ordered strategy names. The "default"
// row supplies the chain for podcasts without an explicit entry.
var defaultChains = map[string][]string{
	"default": {
		catalog.StrategyDirect,
		catalog.StrategyApple,
		catalog.StrategyYouTube,
		catalog.StrategyBrowser,
	},
	"American Optimist": {
		catalog.StrategyYouTube,
		catalog.StrategyBrowser,
	},
	"Dwarkesh Podcast": {
		catalog.StrategyYouTube,
		catalog.StrategyBrowser,
	},
}

// cloudflarePodcasts never get the direct strategy. Their hosting fronts
// every request with a bot check that plain HTTP clients cannot pass.
var cloudflarePodcasts = map[string]bool{
	"American Optimist": true,
	"Dwarkesh Podcast":  true,
}

// cloudflareHostSuffixes are domains behind the same kind of bot check.
var cloudflareHostSuffixes = []string{
	"substack.com",
	"substackcdn.com",
}

// chainNames computes the ordered strategy names for one episode before
// availability filtering. A video-page enclosure forces the video-host
// chain outright; otherwise static defaults get MRU history prepended and
// the direct strategy dropped where it cannot work.
func chainNames(podcast *catalog.Podcast, audioURL string, history []string) []string {
	// A feed that advertises a video page instead of an enclosure can
	// only be served by the video-host strategies. History and podcast
	// defaults never reorder this chain: a recorded apple_podcasts
	// success says nothing about a video page.
	if youtube.IsVideoURL(audioURL) {
		return []string{catalog.StrategyYouTube, catalog.StrategyBrowser}
	}

	base, ok := defaultChains[podcast.Name]
	if !ok {
		base = defaultChains["default"]
	}

	chain := prependHistory(base, history)

	if directBlocked(podcast, audioURL) {
		chain = dropStrategy(chain, catalog.StrategyDirect)
	}
	return chain
}

// prependHistory puts previously successful strategies first, most recent
// leading, without duplicating entries from the base chain.
func prependHistory(base, history []string) []string {
	out := make([]string, 0, len(base)+len(history))
	seen := make(map[string]bool, len(base)+len(history))
	for _, name := range history {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range base {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func dropStrategy(chain []string, name string) []string {
	out := make([]string, 0, len(chain))
	for _, s := range chain {
		if s != name {
			out = append(out, s)
		}
	}
	return out
}

// directBlocked reports whether plain HTTP downloads are pointless for
// this podcast or host.
func directBlocked(podcast *catalog.Podcast, audioURL string) bool {
	if cloudflarePodcasts[podcast.Name] || podcast.Incompatible {
		return true
	}
	return isCloudflareHost(audioURL)
}

func isCloudflareHost(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range cloudflareHostSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// resolveChain maps names to registered, applicable strategies. Unknown
// names and strategies that decline the episode drop out with a log line.
func resolveChain(registry *Registry, names []string, audioURL string, podcast *catalog.Podcast) []Strategy {
	chain := make([]Strategy, 0, len(names))
	for _, name := range names {
		st, ok := registry.Get(name)
		if !ok {
			log.Printf("[DEBUG] downloads: strategy %s not registered, skipping", name)
			continue
		}
		if !st.CanHandle(audioURL, podcast) {
			log.Printf("[DEBUG] downloads: strategy %s declined %s", name, podcast.Name)
			continue
		}
		chain = append(chain, st)
	}
	return chain
}
