package sources

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// prober validates candidate URLs without downloading audio. HEAD first;
// hosts that reject HEAD get a 1-byte ranged GET. The returned URL is the
// final one after redirects, which is what exposes direct CDN addresses.
type prober struct {
	client    *http.Client
	userAgent string
}

func newProber(timeout time.Duration, userAgent string) *prober {
	return &prober{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (p *prober) probe(ctx context.Context, rawURL string, headers map[string]string) (string, bool) {
	if resp, err := p.request(ctx, http.MethodHead, rawURL, headers); err == nil {
		finalURL := resp.Request.URL.String()
		resp.Body.Close()
		if probeAcceptable(resp) {
			return finalURL, true
		}
		// Fall through: some CDNs answer HEAD with 403/405 but serve GET.
	}

	resp, err := p.request(ctx, http.MethodGet, rawURL, headers)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	io.CopyN(io.Discard, resp.Body, 1)

	if !probeAcceptable(resp) {
		return "", false
	}
	return resp.Request.URL.String(), true
}

// request relies on the client timeout for the per-probe bound; ctx only
// carries caller cancellation so the body stays readable after return.
func (p *prober) request(ctx context.Context, method, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return p.client.Do(req)
}

// probeAcceptable accepts 2xx (206 included) that does not look like an
// HTML error or consent page.
func probeAcceptable(resp *http.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return !strings.HasPrefix(ct, "text/html")
}
