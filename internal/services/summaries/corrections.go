package summaries

import (
	"encoding/json"
	"regexp"
	"strings"
)

// correction is one curated transcription mishearing and its fix. Patterns
// stay word-bounded and case-sensitive so they only fire on exact forms.
type correction struct {
	pattern *regexp.Regexp
	right   string
}

// knownCorrections lists recurring name mishearings from past runs.
var knownCorrections = []correction{
	{regexp.MustCompile(`\bLex Friedman\b`), "Lex Fridman"},
	{regexp.MustCompile(`\b(?:Dworkesh|Dwarkish)\b`), "Dwarkesh"},
	{regexp.MustCompile(`\bJoe Lawnsdale\b`), "Joe Lonsdale"},
	{regexp.MustCompile(`\bSam Ultman\b`), "Sam Altman"},
	{regexp.MustCompile(`\bSatya Nadela\b`), "Satya Nadella"},
	{regexp.MustCompile(`\bJensen Wang\b`), "Jensen Huang"},
	{regexp.MustCompile(`\bAndreesen\b`), "Andreessen"},
	{regexp.MustCompile(`\bpalantir\b`), "Palantir"},
}

// applyCorrections rewrites known mishearings and reports how many rules
// fired.
func applyCorrections(text string) (string, int) {
	applied := 0
	for _, c := range knownCorrections {
		if c.pattern.MatchString(text) {
			text = c.pattern.ReplaceAllString(text, c.right)
			applied++
		}
	}
	return text, applied
}

// staleEntities reports whether the summary still carries a mishearing the
// transcript no longer has, meaning it predates the correction rule.
func staleEntities(transcript, summary string) bool {
	if summary == "" {
		return false
	}
	for _, c := range knownCorrections {
		if c.pattern.MatchString(summary) && !c.pattern.MatchString(transcript) {
			return true
		}
	}
	return false
}

// proposedCorrection is one fix suggested by the LLM validator.
type proposedCorrection struct {
	Wrong      string  `json:"wrong"`
	Right      string  `json:"right"`
	Confidence float64 `json:"confidence"`
}

// minProposalConfidence gates which validator suggestions get applied.
const minProposalConfidence = 0.8

// parseProposals decodes the validator's JSON array, tolerating markdown
// fences the model sometimes adds anyway.
func parseProposals(raw string) ([]proposedCorrection, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var out []proposedCorrection
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// applyProposals rewrites confident suggestions as word-bounded literal
// replacements and reports how many applied.
func applyProposals(text string, proposals []proposedCorrection) (string, int) {
	applied := 0
	for _, p := range proposals {
		if p.Confidence < minProposalConfidence || p.Wrong == "" || p.Right == "" || p.Wrong == p.Right {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(p.Wrong) + `\b`)
		if err != nil || !re.MatchString(text) {
			continue
		}
		text = re.ReplaceAllString(text, p.Right)
		applied++
	}
	return text, applied
}
