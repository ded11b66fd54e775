// Package cookies reads Netscape-format cookie files used to authenticate
// video-host downloads. The files are provisioned out of band; this package
// only locates and validates them.
package cookies

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoCookieFile = errors.New("cookie file not found")
	ErrAllExpired   = errors.New("all cookies in file are expired")
)

// Cookie is one entry of a Netscape HTTP Cookie file.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           time.Time // zero for session cookies
	Name              string
	Value             string
}

// IsSession reports whether the cookie has no expiry.
func (c Cookie) IsSession() bool {
	return c.Expires.IsZero()
}

// IsExpired reports whether the cookie has expired. Session cookies never
// expire for this check.
func (c Cookie) IsExpired(now time.Time) bool {
	return !c.IsSession() && c.Expires.Before(now)
}

// DefaultDir returns the conventional cookie directory,
// ~/.config/digest-api/cookies.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "digest-api", "cookies"), nil
}

// PathFor returns the cookie file path for a platform, e.g.
// <dir>/youtube_cookies.txt.
func PathFor(dir, platform string) string {
	return filepath.Join(dir, platform+"_cookies.txt")
}

// Parse reads cookies in Netscape format: seven tab-separated fields per
// line, with # comments. Malformed lines are skipped.
func Parse(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}

		cookie := Cookie{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			Name:              fields[5],
			Value:             fields[6],
		}
		if epoch, err := strconv.ParseInt(fields[4], 10, 64); err == nil && epoch > 0 {
			cookie.Expires = time.Unix(epoch, 0)
		}

		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	return cookies, nil
}

// Validate checks that path holds a usable cookie file: it must exist, parse,
// and contain at least one session cookie or future-expiring cookie.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoCookieFile, path)
		}
		return err
	}
	defer f.Close()

	cookies, err := Parse(f)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return fmt.Errorf("%w: %s", ErrNoCookieFile, path)
	}

	now := time.Now()
	for _, c := range cookies {
		if !c.IsExpired(now) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAllExpired, path)
}

// FindValid returns the cookie file path for platform if one exists under
// dir and passes validation, or "" when none is usable.
func FindValid(dir, platform string) string {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return ""
		}
	}
	path := PathFor(dir, platform)
	if err := Validate(path); err != nil {
		return ""
	}
	return path
}
