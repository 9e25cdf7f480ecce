// Package guardrail enforces size and content-safety limits on text crossing
// a workflow boundary. Apply is a pure function: no network or storage
// access, and the same input always produces the same verdict. Workflow
// determinism depends on that, since guardrails run inside the orchestration
// path.
package guardrail

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// minBudget is the floor on the character budget so that tiny token
	// limits cannot truncate text into uselessness.
	minBudget = 256

	// charsPerToken is the fixed token to character conversion ratio. It is
	// a heuristic carried from the source system, not a tokenizer.
	charsPerToken = 4

	// redactionMarker replaces every denylist match.
	redactionMarker = "[REDACTED]"

	// IssueContentBlocked is appended exactly once when the content filter
	// redacted anything, regardless of match count.
	IssueContentBlocked = "content-filter:blocked"
)

// defaultDenylist holds substrings that are never allowed through the filter:
// destructive shell and SQL fragments, private key headers, and
// credential-shaped tokens.
var defaultDenylist = []string{
	"DROP TABLE",
	"rm -rf",
	"BEGIN RSA PRIVATE KEY",
	"AKIA",
}

// Policy configures the guardrail. The zero value disables the content
// filter and applies only the minimum size budget.
type Policy struct {
	// TokenLimit is the size budget in tokens; the byte budget is
	// max(256, TokenLimit*4). Truncation never splits a multi-byte rune,
	// so truncated text can be up to three bytes under the budget.
	TokenLimit int

	// ContentFilter enables denylist screening.
	ContentFilter bool

	// Denylist overrides the default banned substrings when non-empty.
	Denylist []string
}

// Verdict is the outcome of applying a guardrail. Text is always the
// transformed text, even when no transformation occurred, so callers can
// audit what was altered via Issues.
type Verdict struct {
	Text   string   `json:"text"`
	Issues []string `json:"issues,omitempty"`
}

// Clean reports whether the text passed through unaltered.
func (v Verdict) Clean() bool {
	return len(v.Issues) == 0
}

// Apply enforces the policy on text and returns the transformed text with an
// ordered list of issue tags describing what was altered.
func Apply(text string, policy Policy) Verdict {
	var issues []string

	budget := policy.TokenLimit * charsPerToken
	if budget < minBudget {
		budget = minBudget
	}

	if len(text) > budget {
		issues = append(issues, fmt.Sprintf("truncated:%d->%d", len(text), budget))

		// Back off to a rune boundary so a multi-byte rune straddling
		// the cut is dropped whole rather than split into invalid UTF-8.
		cut := budget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	if policy.ContentFilter {
		denylist := policy.Denylist
		if len(denylist) == 0 {
			denylist = defaultDenylist
		}

		text, blocked := redact(text, denylist)
		if blocked {
			issues = append(issues, IssueContentBlocked)
		}

		return Verdict{Text: text, Issues: issues}
	}

	return Verdict{Text: text, Issues: issues}
}

// redact replaces every case-insensitive occurrence of each banned substring
// with the redaction marker. Matching case-insensitively is what makes Apply
// idempotent: a second pass finds nothing left to redact.
func redact(text string, denylist []string) (string, bool) {
	var blocked bool
	for _, banned := range denylist {
		if banned == "" {
			continue
		}

		lower := strings.ToLower(text)
		needle := strings.ToLower(banned)

		for {
			i := strings.Index(lower, needle)
			if i < 0 {
				break
			}

			blocked = true
			text = text[:i] + redactionMarker + text[i+len(banned):]
			lower = strings.ToLower(text)
		}
	}

	return text, blocked
}
