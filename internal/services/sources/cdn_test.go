package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectChainCollectsHops(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer final.Close()

	mux := http.NewServeMux()
	var origin *httptest.Server
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, origin.URL+"/b", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/audio.mp3", http.StatusFound)
	})
	origin = httptest.NewServer(mux)
	defer origin.Close()

	svc := NewService(Config{}, nil, nil)
	chain := svc.redirectChain(context.Background(), origin.URL+"/a")
	require.Len(t, chain, 3)
	assert.Equal(t, origin.URL+"/a", chain[0])
	assert.Equal(t, origin.URL+"/b", chain[1])
	assert.Equal(t, final.URL+"/audio.mp3", chain[2])
}

func TestRedirectChainStopsAtNonRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	svc := NewService(Config{}, nil, nil)
	chain := svc.redirectChain(context.Background(), server.URL+"/ep.mp3")
	assert.Equal(t, []string{server.URL + "/ep.mp3"}, chain)
}

func TestCDNAlternatesCloudfront(t *testing.T) {
	alts := cdnAlternates("https://d2.cloudfront.net/shows/42/audio.mp3?tk=1")
	require.Len(t, alts, 3)
	assert.Contains(t, alts, "https://d1.cloudfront.net/shows/42/audio.mp3?tk=1")
	assert.Contains(t, alts, "https://d3.cloudfront.net/shows/42/audio.mp3?tk=1")
	assert.Contains(t, alts, "https://d4.cloudfront.net/shows/42/audio.mp3?tk=1")
	assert.NotContains(t, alts, "https://d2.cloudfront.net/shows/42/audio.mp3?tk=1")
}

func TestCDNAlternatesCloudfrontDistribution(t *testing.T) {
	// Real distribution hosts synthesize all four simple variants.
	alts := cdnAlternates("https://d1234abcd.cloudfront.net/audio.mp3")
	assert.Len(t, alts, 4)
}

func TestCDNAlternatesS3(t *testing.T) {
	alts := cdnAlternates("https://s3-us-west-2.amazonaws.com/bucket/ep.mp3")
	require.Len(t, alts, 3)
	assert.Contains(t, alts, "https://s3-us-east-1.amazonaws.com/bucket/ep.mp3")
	assert.Contains(t, alts, "https://s3-eu-west-1.amazonaws.com/bucket/ep.mp3")

	alts = cdnAlternates("https://s3.amazonaws.com/bucket/ep.mp3")
	assert.Len(t, alts, len(s3Regions))
}

func TestCDNAlternatesUnknownHost(t *testing.T) {
	assert.Empty(t, cdnAlternates("https://traffic.megaphone.fm/ep.mp3"))
	assert.Empty(t, cdnAlternates("://not-a-url"))
}

func TestCDNCandidatesEmptyInput(t *testing.T) {
	svc := NewService(Config{}, nil, nil)
	assert.Nil(t, svc.cdnCandidates(context.Background(), ""))
}
