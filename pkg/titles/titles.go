// Package titles provides title normalization and matching heuristics used
// for episode deduplication, directory lookups and video-host search.
package titles

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// stopwords are too common to carry matching signal. "ep"/"episode" are
// structural markers; numbers are handled by the episode-number bonus.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {},
	"is": {}, "are": {}, "by": {}, "from": {}, "how": {}, "what": {},
	"why": {}, "vs": {}, "ep": {}, "episode": {},
}

// slugSeparators collapses every non-alphanumeric run into one hyphen.
var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a title into a filesystem-safe name: lowercased,
// non-alphanumeric runs collapsed to hyphens, capped at 80 characters.
func Slug(title string) string {
	s := slugSeparators.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// Normalize lowercases a title and reduces it to space-separated
// alphanumeric words. Used as the equality key for deduplication.
func Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Words returns the significant normalized words of a title. Stopwords and
// pure-number tokens are removed; matching on numbers goes through the
// episode-number bonus instead.
func Words(title string) []string {
	fields := strings.Fields(Normalize(title))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if _, skip := stopwords[w]; skip {
			continue
		}
		if isAllDigits(w) {
			continue
		}
		words = append(words, w)
	}
	return words
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// Overlap counts the words of title that also appear in candidate, and the
// floor a candidate must reach to qualify: half the title's significant
// words rounded up, capped at 3.
func Overlap(title, candidate string) (shared, required int) {
	titleWords := Words(title)
	candidateWords := Words(candidate)

	set := make(map[string]struct{}, len(candidateWords))
	for _, w := range candidateWords {
		set[w] = struct{}{}
	}
	for _, w := range titleWords {
		if _, ok := set[w]; ok {
			shared++
		}
	}

	required = (len(titleWords) + 1) / 2
	if required > 3 {
		required = 3
	}
	if required < 1 {
		required = 1
	}
	return shared, required
}

// Matches reports whether candidate shares enough words with title to count
// as the same episode.
func Matches(title, candidate string) bool {
	shared, required := Overlap(title, candidate)
	return shared >= required
}

// OverlapRatio returns the fraction of the title's significant words present
// in candidate. Directory lookups accept candidates at ratio >= 0.6.
func OverlapRatio(title, candidate string) float64 {
	titleWords := Words(title)
	if len(titleWords) == 0 {
		return 0
	}
	shared, _ := Overlap(title, candidate)
	return float64(shared) / float64(len(titleWords))
}

// Score rates candidate as a match for the episode title. ok is false when
// the shared-word floor is not met. Qualified candidates earn the shared
// word count plus 2 for a matching episode number and 1 when publication
// dates fall within seven days.
func Score(title string, published time.Time, candidate string, candidatePublished time.Time) (int, bool) {
	shared, required := Overlap(title, candidate)
	if shared < required {
		return 0, false
	}

	score := shared
	if titleNum, ok := ExtractEpisodeNumber(title); ok {
		if candNum, ok := ExtractEpisodeNumber(candidate); ok && titleNum == candNum {
			score += 2
		}
	}
	if !published.IsZero() && !candidatePublished.IsZero() {
		if absDuration(published.Sub(candidatePublished)) <= 7*24*time.Hour {
			score++
		}
	}

	return score, true
}

// SameEpisode reports whether two feed entries describe the same episode:
// identical normalized titles with publication dates within one day.
func SameEpisode(titleA string, dateA time.Time, titleB string, dateB time.Time) bool {
	if Normalize(titleA) != Normalize(titleB) {
		return false
	}
	return absDuration(dateA.Sub(dateB)) <= 24*time.Hour
}

var episodeNumberRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bep(?:isode)?\.?\s*#?\s*(\d{1,5})\b`),
	regexp.MustCompile(`^\s*#?(\d{1,5})\s*[:.\-–—|]`),
	regexp.MustCompile(`#(\d{1,5})\b`),
}

// ExtractEpisodeNumber pulls an episode number out of a title, recognizing
// "Ep 42", "Episode 42", leading "42:" and "#42" forms.
func ExtractEpisodeNumber(title string) (int, bool) {
	for _, re := range episodeNumberRegexes {
		if m := re.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// nameWord matches one capitalized name token.
const nameWord = `\p{Lu}[\p{L}'.\-]*`

var guestRegexes = []*regexp.Regexp{
	// "Ep 42: Jane Doe on the future of farming"
	regexp.MustCompile(`^(?:(?i:ep(?:isode)?\.?)\s*)?#?\d+\s*[:\-–—]\s*(` + nameWord + `(?:\s+` + nameWord + `){0,3})\s+(?i:on|about)\b`),
	// "A conversation with Jane Doe"
	regexp.MustCompile(`(?i:\bwith\s+)(` + nameWord + `(?:\s+` + nameWord + `){1,3})`),
	// "Jane Doe: farming's future"
	regexp.MustCompile(`^(` + nameWord + `(?:\s+` + nameWord + `){1,3})\s*:\s`),
}

// ExtractGuestName applies small heuristics to pull a guest name from an
// episode title. Returns false when no pattern matches.
func ExtractGuestName(title string) (string, bool) {
	for _, re := range guestRegexes {
		if m := re.FindStringSubmatch(title); m != nil {
			name := strings.TrimRight(strings.TrimSpace(m[1]), ".,:;-")
			if name != "" {
				return name, true
			}
		}
	}
	return "", false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
