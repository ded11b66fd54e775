package downloads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/services/spotify"
	"github.com/podforge/digest-api/pkg/download"
	"github.com/podforge/digest-api/pkg/titles"
)

// BrowserConfig tunes the headless-browser strategy. Zero values get
// defaults.
type BrowserConfig struct {
	// Bin is an explicit Chromium binary. Empty means discover one on
	// the host; discovery failing makes the strategy unavailable.
	Bin string
	// SettleTime is how long to keep watching network traffic after the
	// page loads and play controls were clicked.
	SettleTime time.Duration
	// MinAudioSize filters out pings and preview blips.
	MinAudioSize int64
	// UserAgent masks the headless client on both the page visit and
	// the follow-up audio fetch.
	UserAgent string
}

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Play controls worth clicking, roughly ordered by how often podcast
// pages use them.
var playSelectors = []string{
	`button[aria-label*="play" i]`,
	`button[title*="play" i]`,
	`button.play`,
	`.play-button`,
	`[class*="playButton"]`,
	`[data-testid*="play"]`,
}

// PageLocator finds a public player page for an episode when the feed
// carries no link. Satisfied by *spotify.Client.
type PageLocator interface {
	Enabled() bool
	EpisodesByShowTitle(ctx context.Context, title string, limit int) ([]spotify.Episode, error)
}

// BrowserStrategy visits the episode page with a headless browser, nudges
// any player into starting, sniffs the network for sizable audio
// responses, and re-fetches the best one with the page's cookies. It is
// the last resort for hosts that fingerprint plain HTTP clients.
type BrowserStrategy struct {
	bin          string
	settleTime   time.Duration
	minAudioSize int64
	userAgent    string
	pages        PageLocator
}

func NewBrowserStrategy(cfg BrowserConfig) *BrowserStrategy {
	if cfg.SettleTime <= 0 {
		cfg.SettleTime = 8 * time.Second
	}
	if cfg.MinAudioSize <= 0 {
		cfg.MinAudioSize = 1 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = browserUserAgent
	}
	return &BrowserStrategy{
		bin:          cfg.Bin,
		settleTime:   cfg.SettleTime,
		minAudioSize: cfg.MinAudioSize,
		userAgent:    cfg.UserAgent,
	}
}

// WithPageFinder attaches a page locator used when the feed advertises no
// episode link, and returns b.
func (b *BrowserStrategy) WithPageFinder(pages PageLocator) *BrowserStrategy {
	b.pages = pages
	return b
}

func (b *BrowserStrategy) Name() string { return catalog.StrategyBrowser }

// CanHandle reports whether a Chromium binary exists on this host. The
// router drops the strategy from the chain when it does not.
func (b *BrowserStrategy) CanHandle(url string, podcast *catalog.Podcast) bool {
	if b.bin != "" {
		return true
	}
	_, found := launcher.LookPath()
	return found
}

func (b *BrowserStrategy) Download(ctx context.Context, req Request) error {
	pageURL := req.Episode.Link
	if pageURL == "" {
		pageURL = b.locatePage(ctx, req)
	}
	if pageURL == "" {
		return errors.New("episode has no page link to visit")
	}

	hit, cookies, err := b.sniffAudio(ctx, pageURL)
	if err != nil {
		return err
	}
	log.Printf("[INFO] downloads: browser sniffed %s (%d bytes declared) on %s", hit.url, hit.size, pageURL)

	return b.fetchWithCookies(ctx, hit.url, pageURL, cookies, req.OutputPath)
}

// locatePage asks the page locator for a public episode page matching the
// episode's title and date. Best effort; empty means nowhere to go.
func (b *BrowserStrategy) locatePage(ctx context.Context, req Request) string {
	if b.pages == nil || !b.pages.Enabled() {
		return ""
	}
	eps, err := b.pages.EpisodesByShowTitle(ctx, req.Podcast.SearchQuery(), 20)
	if err != nil {
		log.Printf("[DEBUG] downloads: page lookup for %q failed: %v", req.Podcast.Name, err)
		return ""
	}
	for _, ep := range eps {
		if ep.ExternalURL == "" {
			continue
		}
		if titles.SameEpisode(req.Episode.Title, req.Episode.Published, ep.Name, ep.Released) ||
			titles.Matches(req.Episode.Title, ep.Name) {
			log.Printf("[INFO] downloads: browser using located page %s for %q", ep.ExternalURL, req.Episode.Title)
			return ep.ExternalURL
		}
	}
	return ""
}

type audioHit struct {
	url   string
	size  int64
	score int
}

// sniffAudio loads the page, clicks play controls, and collects audio
// responses observed on the wire.
func (b *BrowserStrategy) sniffAudio(ctx context.Context, pageURL string) (audioHit, []*proto.NetworkCookie, error) {
	controlURL, kill, err := b.launch()
	if err != nil {
		return audioHit{}, nil, fmt.Errorf("launching browser: %w", err)
	}
	defer kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return audioHit{}, nil, fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return audioHit{}, nil, fmt.Errorf("opening page: %w", err)
	}
	page = page.Context(ctx)

	var (
		mu   sync.Mutex
		hits []audioHit
	)
	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		hit, ok := b.classifyResponse(e)
		if !ok {
			return
		}
		mu.Lock()
		hits = append(hits, hit)
		mu.Unlock()
	})()

	if err := page.Navigate(pageURL); err != nil {
		return audioHit{}, nil, fmt.Errorf("navigating to %s: %w", pageURL, err)
	}
	// Load failures are soft: uncooperative pages often still stream.
	if err := page.Timeout(30 * time.Second).WaitLoad(); err != nil {
		log.Printf("[DEBUG] downloads: browser load of %s incomplete: %v", pageURL, err)
	}

	b.pressPlay(page)

	select {
	case <-ctx.Done():
		return audioHit{}, nil, ctx.Err()
	case <-time.After(b.settleTime):
	}

	mu.Lock()
	best, found := bestHit(hits)
	mu.Unlock()
	if !found {
		return audioHit{}, nil, fmt.Errorf("no audio traffic observed on %s", pageURL)
	}

	cookies, err := browser.GetCookies()
	if err != nil {
		log.Printf("[WARN] downloads: reading browser cookies: %v", err)
	}
	return best, cookies, nil
}

func (b *BrowserStrategy) launch() (string, func(), error) {
	l := launcher.New().
		NoSandbox(true).
		Headless(true).
		Set("disable-gpu", "").
		Set("disable-dev-shm-usage", "").
		Set("disable-blink-features", "AutomationControlled").
		Set("user-agent", b.userAgent)
	if b.bin != "" {
		l = l.Bin(b.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return "", nil, err
	}
	return controlURL, l.Kill, nil
}

// pressPlay clicks anything that looks like a play control and kicks
// native audio elements directly. All failures are ignored; the page may
// simply autoplay.
func (b *BrowserStrategy) pressPlay(page *rod.Page) {
	for _, sel := range playSelectors {
		els, err := page.Elements(sel)
		if err != nil {
			continue
		}
		for i, el := range els {
			if i >= 3 {
				break
			}
			if err := el.Timeout(2 * time.Second).Click(proto.InputMouseButtonLeft, 1); err == nil {
				log.Printf("[DEBUG] downloads: clicked %s", sel)
			}
		}
	}
	_, _ = page.Eval(`() => { document.querySelectorAll("audio, video").forEach(m => { try { m.play() } catch (e) {} }) }`)
}

// classifyResponse keeps audio-typed responses big enough to be an
// episode. Unknown sizes are kept when the MIME type is unambiguous; the
// validator catches lies after download.
func (b *BrowserStrategy) classifyResponse(e *proto.NetworkResponseReceived) (audioHit, bool) {
	r := e.Response
	if r == nil || r.URL == "" || strings.HasPrefix(r.URL, "data:") {
		return audioHit{}, false
	}

	mime := strings.ToLower(r.MIMEType)
	isAudioMime := strings.HasPrefix(mime, "audio/")
	isMedia := e.Type == proto.NetworkResourceTypeMedia
	hasAudioPath := isAudioPath(r.URL)
	if !isAudioMime && !(isMedia && hasAudioPath) {
		return audioHit{}, false
	}

	size := headerInt64(r.Headers, "content-length")
	if size > 0 && size < b.minAudioSize {
		return audioHit{}, false
	}
	if size == 0 && !isAudioMime {
		return audioHit{}, false
	}

	score := 0
	if isAudioMime {
		score += 2
	}
	if hasAudioPath {
		score++
	}
	if isMedia {
		score++
	}
	if size >= b.minAudioSize {
		score += 2
	}
	return audioHit{url: r.URL, size: size, score: score}, true
}

func bestHit(hits []audioHit) (audioHit, bool) {
	var best audioHit
	found := false
	for _, h := range hits {
		if !found || h.score > best.score || (h.score == best.score && h.size > best.size) {
			best = h
			found = true
		}
	}
	return best, found
}

// fetchWithCookies re-downloads the sniffed URL outside the browser,
// presenting the session's cookies and the page as referer.
func (b *BrowserStrategy) fetchWithCookies(ctx context.Context, audioURL, pageURL string, cookies []*proto.NetworkCookie, outputPath string) error {
	target, err := url.Parse(audioURL)
	if err != nil {
		return fmt.Errorf("parsing sniffed URL: %w", err)
	}

	opts := download.DefaultOptions()
	opts.UserAgent = b.userAgent
	opts.Headers = map[string]string{"Referer": pageURL}
	if header := cookieHeader(cookies, target); header != "" {
		opts.Headers["Cookie"] = header
	}

	_, err = download.NewDownloader(opts).Fetch(ctx, audioURL, outputPath)
	return err
}

// cookieHeader serializes the cookies that apply to the target host.
func cookieHeader(cookies []*proto.NetworkCookie, target *url.URL) string {
	host := strings.ToLower(target.Hostname())
	var sb strings.Builder
	for _, c := range cookies {
		if c == nil {
			continue
		}
		domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
		if domain == "" || (host != domain && !strings.HasSuffix(host, "."+domain)) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(c.Name)
		sb.WriteByte('=')
		sb.WriteString(c.Value)
	}
	return sb.String()
}

var audioPathExts = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true,
	".opus": true, ".wav": true, ".flac": true, ".mp4": true,
}

func isAudioPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return audioPathExts[strings.ToLower(path.Ext(u.Path))]
}

func headerInt64(headers proto.NetworkHeaders, key string) int64 {
	for k, v := range headers {
		if !strings.EqualFold(k, key) {
			continue
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v.Str()), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
