package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeAcceptsHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	p := newProber(5*time.Second, "test-agent")
	finalURL, ok := p.probe(context.Background(), server.URL+"/ep.mp3", nil)
	require.True(t, ok)
	assert.Equal(t, server.URL+"/ep.mp3", finalURL)
}

func TestProbeFallsBackToRangedGet(t *testing.T) {
	var sawRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte{0xFF})
	}))
	defer server.Close()

	p := newProber(5*time.Second, "test-agent")
	_, ok := p.probe(context.Background(), server.URL, nil)
	require.True(t, ok)
	assert.Equal(t, "bytes=0-0", sawRange)
}

func TestProbeFollowsRedirectsToFinalURL(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer target.Close()

	hop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/direct.mp3", http.StatusFound)
	}))
	defer hop.Close()

	p := newProber(5*time.Second, "test-agent")
	finalURL, ok := p.probe(context.Background(), hop.URL, nil)
	require.True(t, ok)
	assert.Equal(t, target.URL+"/direct.mp3", finalURL)
}

func TestProbeRejectsHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>bot check</html>"))
	}))
	defer server.Close()

	p := newProber(5*time.Second, "test-agent")
	_, ok := p.probe(context.Background(), server.URL, nil)
	assert.False(t, ok)
}

func TestProbeSendsExtraHeaders(t *testing.T) {
	var referer, agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "audio/mpeg")
	}))
	defer server.Close()

	p := newProber(5*time.Second, "default-agent")
	_, ok := p.probe(context.Background(), server.URL, map[string]string{
		"Referer":    "https://play.libsyn.com/",
		"User-Agent": "special-agent",
	})
	require.True(t, ok)
	assert.Equal(t, "https://play.libsyn.com/", referer)
	assert.Equal(t, "special-agent", agent)
}
