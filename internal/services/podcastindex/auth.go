package podcastindex

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

// signRequest attaches the Podcast Index auth headers. The API expects
// SHA1(key + secret + unix-time) in Authorization alongside the raw key
// and timestamp, and rejects requests without a User-Agent.
func signRequest(req *http.Request, apiKey, apiSecret, userAgent string) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	h := sha1.New()
	h.Write([]byte(apiKey + apiSecret + ts))

	req.Header.Set("X-Auth-Date", ts)
	req.Header.Set("X-Auth-Key", apiKey)
	req.Header.Set("Authorization", hex.EncodeToString(h.Sum(nil)))
	req.Header.Set("User-Agent", userAgent)
}
