package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonAudioURLRe finds audio URLs embedded in inline JSON and scripts.
var jsonAudioURLRe = regexp.MustCompile(`https?://[^\s"'<>\\]+?\.(?:mp3|m4a|aac|ogg|opus|wav|flac)(?:\?[^\s"'<>\\]*)?`)

// embedHosts are players whose iframe pages carry the real audio URL.
var embedHosts = []string{
	"player.megaphone.fm",
	"playlist.megaphone.fm",
	"html5-player.libsyn.com",
	"play.libsyn.com",
	"omny.fm",
	"player.simplecast.com",
	"embed.acast.com",
	"share.transistor.fm",
	"www.buzzsprout.com",
}

// scrapeCandidates pulls audio URLs out of the episode webpage: <audio>
// and <source> elements, known player iframes (followed one level), and
// URLs buried in inline JSON.
func (s *Service) scrapeCandidates(ctx context.Context, pageURL string) []Candidate {
	if pageURL == "" {
		return nil
	}

	raw, base, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		log.Printf("[DEBUG] Page scrape of %s failed: %v", pageURL, err)
		return nil
	}

	var out []Candidate
	add := func(rawURL string) {
		if abs := absoluteURL(base, rawURL); abs != "" {
			out = append(out, Candidate{URL: abs, Origin: OriginScrape})
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err == nil {
		doc.Find("audio[src], audio source[src], video source[src]").Each(func(_ int, sel *goquery.Selection) {
			if src, ok := sel.Attr("src"); ok {
				add(src)
			}
		})

		doc.Find("iframe[src]").Each(func(_ int, sel *goquery.Selection) {
			src, ok := sel.Attr("src")
			if !ok {
				return
			}
			embedURL := absoluteURL(base, src)
			if embedURL == "" || !isEmbedHost(embedURL) {
				return
			}
			for _, u := range s.scrapeEmbed(ctx, embedURL) {
				add(u)
			}
		})
	}

	for _, match := range jsonAudioURLRe.FindAllString(unescapeJSONSlashes(string(raw)), -1) {
		add(match)
	}
	return out
}

// scrapeEmbed fetches a player iframe page and extracts its audio URLs.
func (s *Service) scrapeEmbed(ctx context.Context, embedURL string) []string {
	raw, _, err := s.fetchPage(ctx, embedURL)
	if err != nil {
		log.Printf("[DEBUG] Embed scrape of %s failed: %v", embedURL, err)
		return nil
	}
	return jsonAudioURLRe.FindAllString(unescapeJSONSlashes(string(raw)), -1)
}

func (s *Service) fetchPage(ctx context.Context, pageURL string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", s.prober.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.prober.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.maxScrapeBytes))
	if err != nil {
		return nil, nil, err
	}
	return raw, resp.Request.URL, nil
}

func isEmbedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range embedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func absoluteURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// unescapeJSONSlashes undoes the \/ escaping common in inline JSON blobs.
func unescapeJSONSlashes(s string) string {
	return strings.ReplaceAll(s, `\/`, `/`)
}
