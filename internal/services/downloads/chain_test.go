package downloads

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/podforge/digest-api/internal/catalog"
)

func TestChainNamesDefault(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour"}

	names := chainNames(podcast, "https://cdn.example.com/ep7.mp3", nil)

	assert.Equal(t, []string{
		catalog.StrategyDirect,
		catalog.StrategyApple,
		catalog.StrategyYouTube,
		catalog.StrategyBrowser,
	}, names)
}

func TestChainNamesVideoEnclosureOverride(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour"}

	names := chainNames(podcast, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", nil)

	assert.Equal(t, []string{catalog.StrategyYouTube, catalog.StrategyBrowser}, names)
}

func TestChainNamesVideoEnclosureIgnoresHistory(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour", AppleID: 12345}
	history := []string{catalog.StrategyApple, catalog.StrategyDirect}

	names := chainNames(podcast, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", history)

	assert.Equal(t, []string{catalog.StrategyYouTube, catalog.StrategyBrowser}, names)
}

func TestChainNamesVideoEnclosureIgnoresPodcastChain(t *testing.T) {
	// Dwarkesh has its own default chain; a video enclosure still forces
	// the fixed video-host order.
	podcast := &catalog.Podcast{Name: "Dwarkesh Podcast"}
	history := []string{catalog.StrategyBrowser}

	names := chainNames(podcast, "https://youtu.be/dQw4w9WgXcQ", history)

	assert.Equal(t, []string{catalog.StrategyYouTube, catalog.StrategyBrowser}, names)
}

func TestChainNamesHistoryPrepended(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour"}
	history := []string{catalog.StrategyBrowser, catalog.StrategyDirect}

	names := chainNames(podcast, "https://cdn.example.com/ep7.mp3", history)

	assert.Equal(t, []string{
		catalog.StrategyBrowser,
		catalog.StrategyDirect,
		catalog.StrategyApple,
		catalog.StrategyYouTube,
	}, names)
}

func TestChainNamesCloudflarePodcast(t *testing.T) {
	podcast := &catalog.Podcast{Name: "American Optimist"}

	names := chainNames(podcast, "https://api.substack.com/feed/podcast/1234.mp3", nil)

	assert.Equal(t, []string{catalog.StrategyYouTube, catalog.StrategyBrowser}, names)
	assert.NotContains(t, names, catalog.StrategyDirect)
}

func TestChainNamesSubstackHostDropsDirect(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour"}

	names := chainNames(podcast, "https://api.substack.com/feed/podcast/99.mp3", nil)

	assert.NotContains(t, names, catalog.StrategyDirect)
	assert.Equal(t, catalog.StrategyApple, names[0])
}

func TestChainNamesIncompatiblePodcastDropsDirect(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour", Incompatible: true}

	names := chainNames(podcast, "https://cdn.example.com/ep7.mp3", nil)

	assert.NotContains(t, names, catalog.StrategyDirect)
}

func TestChainNamesHistoryCannotResurrectDirect(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Dwarkesh Podcast"}
	history := []string{catalog.StrategyDirect}

	names := chainNames(podcast, "", history)

	assert.NotContains(t, names, catalog.StrategyDirect)
	assert.Equal(t, catalog.StrategyYouTube, names[0])
}

func TestDropStrategyLeavesInputIntact(t *testing.T) {
	chain := []string{catalog.StrategyDirect, catalog.StrategyApple, catalog.StrategyYouTube}

	got := dropStrategy(chain, catalog.StrategyDirect)

	assert.Equal(t, []string{catalog.StrategyApple, catalog.StrategyYouTube}, got)
	assert.Equal(t, []string{catalog.StrategyDirect, catalog.StrategyApple, catalog.StrategyYouTube}, chain)
}

func TestPrependHistoryDeduplicates(t *testing.T) {
	base := []string{"a", "b", "c"}
	history := []string{"c", "a", "c"}

	assert.Equal(t, []string{"c", "a", "b"}, prependHistory(base, history))
}

func TestPrependHistoryEmpty(t *testing.T) {
	base := []string{"a", "b"}

	assert.Equal(t, []string{"a", "b"}, prependHistory(base, nil))
}

func TestIsCloudflareHost(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://api.substack.com/feed/podcast/1.mp3", true},
		{"https://something.substackcdn.com/audio.mp3", true},
		{"https://substack.com/ep.mp3", true},
		{"https://cdn.example.com/ep.mp3", false},
		{"https://notsubstack.com/ep.mp3", false},
		{"", false},
		{"::not a url::", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isCloudflareHost(tt.url), tt.url)
	}
}

func TestResolveChainFiltersUnknownAndDeclining(t *testing.T) {
	podcast := &catalog.Podcast{Name: "Acme Radio Hour"}
	accepts := &fakeStrategy{name: "accepts", handles: true}
	declines := &fakeStrategy{name: "declines", handles: false}
	registry := NewRegistry(accepts, declines)

	chain := resolveChain(registry, []string{"accepts", "declines", "missing"}, "https://x/y.mp3", podcast)

	assert.Len(t, chain, 1)
	assert.Equal(t, "accepts", chain[0].Name())
}

func TestRegistryReplacesByName(t *testing.T) {
	first := &fakeStrategy{name: "direct", handles: true}
	second := &fakeStrategy{name: "direct", handles: false}
	registry := NewRegistry(first)

	registry.Register(second)

	got, ok := registry.Get("direct")
	assert.True(t, ok)
	assert.False(t, got.CanHandle("", &catalog.Podcast{}))
	assert.Equal(t, []string{"direct"}, registry.Names())
}
