package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitor tracks one client's limiter and when it last made a request,
// so idle entries can be swept.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CORS allows the local operator UI to call the API from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control")
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestSizeLimit caps mutating request bodies at 1 MB.
func RequestSizeLimit() gin.HandlerFunc {
	return RequestSizeLimitWithSize(1 << 20)
}

func RequestSizeLimitWithSize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// PerClientRateLimit applies a per-IP token bucket. The limiter map and
// sweeper lifetime are owned by the caller so route groups can share one
// map while using different rates.
func PerClientRateLimit(visitors *sync.Map, sweepStop chan struct{}, sweepOnce *sync.Once, rps, burst int) gin.HandlerFunc {
	sweepOnce.Do(func() {
		go sweepIdleVisitors(visitors, sweepStop)
	})

	return func(c *gin.Context) {
		v, _ := visitors.LoadOrStore(c.ClientIP(), &visitor{
			limiter:  rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), burst),
			lastSeen: time.Now(),
		})
		vis := v.(*visitor)
		vis.lastSeen = time.Now()

		if !vis.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please slow down your requests.",
			})
			return
		}
		c.Next()
	}
}

// sweepIdleVisitors drops limiter entries idle for over ten minutes.
func sweepIdleVisitors(visitors *sync.Map, stop chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			visitors.Range(func(key, value any) bool {
				if now.Sub(value.(*visitor).lastSeen) > 10*time.Minute {
					visitors.Delete(key)
				}
				return true
			})
		}
	}
}
