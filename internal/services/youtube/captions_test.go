package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT

00:00:00.000 --> 00:00:02.000
Hello and welcome to the show.

00:00:02.000 --> 00:00:05.000
Today we talk about soil carbon.
`

func TestFetchCaptionsPrefersManualTrack(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			assert.Equal(t, "abc123def45", r.URL.Query().Get("v"))
			page := fmt.Sprintf(`<html>"captionTracks":[`+
				`{"baseUrl":"%s/timedtext?track=auto","languageCode":"en","kind":"asr","name":{"simpleText":"English (auto-generated)"}},`+
				`{"baseUrl":"%s/timedtext?track=manual","languageCode":"en","name":{"simpleText":"English"}}`+
				`],"other":true</html>`, server.URL, server.URL)
			fmt.Fprint(w, page)
		case "/timedtext":
			require.Equal(t, "manual", r.URL.Query().Get("track"))
			assert.Equal(t, "vtt", r.URL.Query().Get("fmt"))
			fmt.Fprint(w, sampleVTT)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	captions := NewCaptions(CaptionsConfig{BaseURL: server.URL})
	text, err := captions.FetchCaptions(context.Background(), "abc123def45")
	require.NoError(t, err)
	assert.Contains(t, text, "Hello and welcome to the show.")
	assert.Contains(t, text, "soil carbon")
}

func TestFetchCaptionsNoTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>no player config here</html>`)
	}))
	defer server.Close()

	captions := NewCaptions(CaptionsConfig{BaseURL: server.URL})
	_, err := captions.FetchCaptions(context.Background(), "abc123def45")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no caption tracks")
}

func TestPickTrackOrdering(t *testing.T) {
	manualFrench := captionTrack{BaseURL: "fr-manual", LanguageCode: "fr"}
	autoEnglish := captionTrack{BaseURL: "en-auto", LanguageCode: "en", Kind: "asr"}
	manualEnglish := captionTrack{BaseURL: "en-manual", LanguageCode: "en"}

	picked := pickTrack([]captionTrack{autoEnglish, manualFrench, manualEnglish})
	assert.Equal(t, "en-manual", picked.BaseURL)

	picked = pickTrack([]captionTrack{autoEnglish, manualFrench})
	assert.Equal(t, "fr-manual", picked.BaseURL)

	picked = pickTrack([]captionTrack{autoEnglish})
	assert.Equal(t, "en-auto", picked.BaseURL)
}

func TestWithVTTFormat(t *testing.T) {
	assert.Equal(t, "http://x/tt?fmt=vtt", withVTTFormat("http://x/tt"))
	assert.Equal(t, "http://x/tt?a=1&fmt=vtt", withVTTFormat("http://x/tt?a=1"))
	assert.Equal(t, "http://x/tt?fmt=json3", withVTTFormat("http://x/tt?fmt=json3"))
}
