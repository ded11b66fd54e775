package sources

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const maxRedirectHops = 10

var s3RegionHostRe = regexp.MustCompile(`^s3[.-]([a-z0-9-]+)\.amazonaws\.com$`)

// s3Regions are the regions tried when synthesizing bucket alternates.
var s3Regions = []string{"us-east-1", "us-west-1", "us-west-2", "eu-west-1"}

// cdnCandidates resolves the redirect chain of the advertised URL and
// synthesizes sibling CDN hostnames from every hop. Only alternates that
// answer a probe are emitted.
func (s *Service) cdnCandidates(ctx context.Context, audioURL string) []Candidate {
	if audioURL == "" {
		return nil
	}

	chain := s.redirectChain(ctx, audioURL)
	seen := map[string]bool{}
	for _, hop := range chain {
		seen[hop] = true
	}

	var out []Candidate
	for _, hop := range chain {
		for _, alt := range cdnAlternates(hop) {
			if seen[alt] {
				continue
			}
			seen[alt] = true
			finalURL, ok := s.prober.probe(ctx, alt, nil)
			if !ok {
				continue
			}
			log.Printf("[INFO] CDN alternate answered: %s", alt)
			out = append(out, Candidate{URL: finalURL, Origin: OriginCDN})
		}
	}
	return out
}

// redirectChain returns the URL of every hop, original and final included.
// Redirects are followed manually so intermediate hosts are visible.
func (s *Service) redirectChain(ctx context.Context, rawURL string) []string {
	chain := []string{rawURL}
	current := rawURL

	noFollow := &http.Client{
		Timeout: s.prober.client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for hop := 0; hop < maxRedirectHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			break
		}
		req.Header.Set("User-Agent", s.prober.userAgent)

		resp, err := noFollow.Do(req)
		if err != nil {
			break
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			break
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			break
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			break
		}
		current = next.String()
		chain = append(chain, current)
	}
	return chain
}

// cdnAlternates synthesizes sibling hostnames for hops already on a known
// CDN: d1..d4.cloudfront.net and regional S3 endpoints.
func cdnAlternates(hop string) []string {
	u, err := url.Parse(hop)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())

	var hosts []string
	switch {
	case strings.HasSuffix(host, ".cloudfront.net"):
		for i := 1; i <= 4; i++ {
			alt := fmt.Sprintf("d%d.cloudfront.net", i)
			if alt != host {
				hosts = append(hosts, alt)
			}
		}
	case s3RegionHostRe.MatchString(host) || host == "s3.amazonaws.com":
		for _, region := range s3Regions {
			alt := "s3-" + region + ".amazonaws.com"
			if alt != host {
				hosts = append(hosts, alt)
			}
		}
	}

	alts := make([]string, 0, len(hosts))
	for _, h := range hosts {
		alt := *u
		alt.Host = h
		alts = append(alts, alt.String())
	}
	return alts
}
