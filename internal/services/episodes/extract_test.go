package episodes

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podforge/digest-api/internal/services/itunes"
	"github.com/podforge/digest-api/internal/services/podcastindex"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
     xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"
     xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>Hard Fork</title>
    <item>
      <title>Ep 12: Jane Doe on Model Training</title>
      <description>Jane Doe joins us to talk model training.</description>
      <link>https://example.com/hf/12</link>
      <guid>hf-ep-12</guid>
      <pubDate>Mon, 05 Aug 2024 10:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example.com/hf/12.mp3" type="audio/mpeg" length="1234"/>
      <itunes:duration>01:02:03</itunes:duration>
      <itunes:episode>12</itunes:episode>
      <podcast:transcript url="https://cdn.example.com/hf/12.vtt" type="text/vtt"/>
    </item>
    <item>
      <title>Trailer</title>
      <pubDate>Sun, 04 Aug 2024 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func parseSampleFeed(t *testing.T) *gofeed.Feed {
	t.Helper()
	feed, err := gofeed.NewParser().ParseString(sampleFeed)
	require.NoError(t, err)
	require.Len(t, feed.Items, 2)
	return feed
}

func TestEpisodeFromItem(t *testing.T) {
	feed := parseSampleFeed(t)

	ep := episodeFromItem("Hard Fork", feed.Items[0])
	require.NotNil(t, ep)

	assert.Equal(t, "Hard Fork", ep.Podcast)
	assert.Equal(t, "Ep 12: Jane Doe on Model Training", ep.Title)
	assert.Equal(t, time.Date(2024, 8, 5, 10, 0, 0, 0, time.UTC), ep.Published)
	assert.Equal(t, "https://cdn.example.com/hf/12.mp3", ep.AudioURL)
	assert.Equal(t, "https://cdn.example.com/hf/12.vtt", ep.TranscriptURL)
	assert.Equal(t, "hf-ep-12", ep.GUID)
	assert.Equal(t, "https://example.com/hf/12", ep.Link)

	require.NotNil(t, ep.Duration)
	assert.Equal(t, 3723, *ep.Duration)
	require.NotNil(t, ep.EpisodeNumber)
	assert.Equal(t, 12, *ep.EpisodeNumber)
	assert.Equal(t, "Jane Doe", ep.GuestName)
	assert.Equal(t, ".mp3", ep.FileExtension)
}

func TestEpisodeFromItemWithoutMedia(t *testing.T) {
	feed := parseSampleFeed(t)

	// Extraction keeps the entry; the media drop happens after merging so
	// a transcript-only duplicate from another source can still rescue it.
	ep := episodeFromItem("Hard Fork", feed.Items[1])
	require.NotNil(t, ep)
	assert.Empty(t, ep.AudioURL)
	assert.Empty(t, ep.TranscriptURL)
	assert.False(t, ep.HasMedia())
}

func TestEpisodeFromItemRequiresPublishedDate(t *testing.T) {
	item := &gofeed.Item{Title: "No date here"}
	assert.Nil(t, episodeFromItem("Hard Fork", item))

	updated := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	item.UpdatedParsed = &updated
	ep := episodeFromItem("Hard Fork", item)
	require.NotNil(t, ep)
	assert.Equal(t, updated, ep.Published)
}

func TestEpisodeFromItemRequiresTitle(t *testing.T) {
	published := time.Now()
	item := &gofeed.Item{Title: "   ", PublishedParsed: &published}
	assert.Nil(t, episodeFromItem("Hard Fork", item))
}

func TestEnclosureURLPrefersAudio(t *testing.T) {
	item := &gofeed.Item{
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://cdn.example.com/ep.jpg", Type: "image/jpeg"},
			{URL: "https://cdn.example.com/ep.mp3", Type: "audio/mpeg"},
		},
	}
	assert.Equal(t, "https://cdn.example.com/ep.mp3", enclosureURL(item))

	item.Enclosures = item.Enclosures[:1]
	assert.Equal(t, "https://cdn.example.com/ep.jpg", enclosureURL(item))

	assert.Empty(t, enclosureURL(&gofeed.Item{}))
}

func TestEpisodeFromApple(t *testing.T) {
	appleEp := &itunes.Episode{
		ID:             900123,
		Title:          "Ep 12: Jane Doe on Model Training",
		Description:    "From the Apple lookup.",
		AudioURL:       "https://apple.example.com/ep12.m4a",
		DurationMillis: 3723500,
		ReleaseDate:    time.Date(2024, 8, 5, 10, 0, 0, 0, time.UTC),
		GUID:           "hf-ep-12",
		FileExtension:  ".m4a",
	}

	ep := episodeFromApple("Hard Fork", appleEp)
	require.NotNil(t, ep)
	assert.Equal(t, int64(900123), ep.ApplePodcastID)
	assert.Equal(t, "https://apple.example.com/ep12.m4a", ep.AudioURL)
	require.NotNil(t, ep.Duration)
	assert.Equal(t, 3723, *ep.Duration)
	assert.Equal(t, ".m4a", ep.FileExtension)
}

func TestEpisodeFromAppleRejectsIncomplete(t *testing.T) {
	assert.Nil(t, episodeFromApple("Hard Fork", &itunes.Episode{Title: "No date"}))
	assert.Nil(t, episodeFromApple("Hard Fork", &itunes.Episode{ReleaseDate: time.Now()}))
}

func TestEpisodeFromDirectory(t *testing.T) {
	duration := 1800
	number := 12
	dirEp := &podcastindex.Episode{
		Title:         "Ep 12: Jane Doe on Model Training",
		GUID:          "hf-ep-12",
		DatePublished: time.Date(2024, 8, 5, 10, 0, 0, 0, time.UTC).Unix(),
		EnclosureURL:  "https://dir.example.com/12.mp3",
		Duration:      &duration,
		EpisodeNumber: &number,
	}

	ep := episodeFromDirectory("Hard Fork", dirEp)
	require.NotNil(t, ep)
	assert.Equal(t, time.Date(2024, 8, 5, 10, 0, 0, 0, time.UTC), ep.Published)
	require.NotNil(t, ep.Duration)
	assert.Equal(t, 1800, *ep.Duration)
	require.NotNil(t, ep.EpisodeNumber)
	assert.Equal(t, 12, *ep.EpisodeNumber)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"01:02:03", 3723, true},
		{"62:03", 3723, true},
		{"3723", 3723, true},
		{" 45 ", 45, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
		{"-5", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseDuration(tt.raw)
		assert.Equal(t, tt.ok, ok, "parseDuration(%q) ok", tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, "parseDuration(%q)", tt.raw)
		}
	}
}
