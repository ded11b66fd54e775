// Package middleware holds route-group middleware that needs service
// dependencies, currently the response cache over the TTL memory cache.
package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/internal/services/cache"
)

// CacheConfig configures the response cache middleware.
type CacheConfig struct {
	Cache      cache.Cache
	DefaultTTL time.Duration
	// TTLByPath overrides DefaultTTL per path; entries match by prefix.
	TTLByPath map[string]time.Duration
	Enabled   bool
}

// cachedResponse is the stored envelope for one 200 response.
type cachedResponse struct {
	Status      int         `json:"status"`
	ContentType string      `json:"content_type"`
	Headers     http.Header `json:"headers"`
	Body        []byte      `json:"body"`
	CachedAt    time.Time   `json:"cached_at"`
	ETag        string      `json:"etag"`
}

// captureWriter tees the response body so a 200 can be stored after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// CacheMiddleware serves GET responses from the cache and stores fresh
// 200s under a path+query key. Clients sending no-cache get a BYPASS and
// a fresh handler run.
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		if clientDeclinesCache(c.Request.Header) {
			c.Header("X-Cache", "BYPASS")
			c.Next()
			return
		}

		key := cacheKey(c.Request.URL)
		if raw, ok := cfg.Cache.Get(c.Request.Context(), key); ok {
			var stored cachedResponse
			if err := json.Unmarshal(raw, &stored); err == nil {
				serveCached(c, &stored)
				return
			}
		}
		c.Header("X-Cache", "MISS")

		w := &captureWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = w
		c.Next()

		if w.status != http.StatusOK || w.buf.Len() == 0 {
			return
		}
		sum := sha256.Sum256(w.buf.Bytes())
		stored := cachedResponse{
			Status:      w.status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Headers:     c.Writer.Header().Clone(),
			Body:        w.buf.Bytes(),
			CachedAt:    time.Now(),
			ETag:        `"` + hex.EncodeToString(sum[:]) + `"`,
		}
		c.Header("ETag", stored.ETag)
		if raw, err := json.Marshal(stored); err == nil {
			_ = cfg.Cache.Set(c.Request.Context(), key, raw, ttlFor(cfg, c.Request.URL.Path))
		}
	}
}

func serveCached(c *gin.Context, stored *cachedResponse) {
	c.Header("X-Cache", "HIT")
	c.Header("Age", strconv.Itoa(int(time.Since(stored.CachedAt).Seconds())))
	for name, values := range stored.Headers {
		for _, v := range values {
			c.Header(name, v)
		}
	}
	c.Data(stored.Status, stored.ContentType, stored.Body)
	c.Abort()
}

func ttlFor(cfg CacheConfig, path string) time.Duration {
	if ttl, ok := cfg.TTLByPath[path]; ok {
		return ttl
	}
	for prefix, ttl := range cfg.TTLByPath {
		if strings.HasPrefix(path, prefix) {
			return ttl
		}
	}
	return cfg.DefaultTTL
}

// cacheKey is the path plus the query string in sorted-key order, so
// equivalent requests with reordered parameters share an entry.
func cacheKey(u *url.URL) string {
	if u.RawQuery == "" {
		return "http:" + u.Path
	}
	params := u.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("http:")
	b.WriteString(u.Path)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteByte(':')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

func clientDeclinesCache(h http.Header) bool {
	cc := strings.ToLower(h.Get("Cache-Control"))
	for _, directive := range strings.Split(cc, ",") {
		switch strings.TrimSpace(directive) {
		case "no-cache", "no-store", "max-age=0":
			return true
		}
	}
	return h.Get("Pragma") == "no-cache"
}
