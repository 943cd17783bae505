// Package sanitize is the single text sanitizer every emitted string in a
// PageMap passes through — interactable names, chunk text, metadata values,
// titles. Sanitization is an invariant, not a policy: every caller in this
// module routes text through Text() before it leaves the pipeline.
//
// The secret-scrubbing pattern table is adapted from an MCP tool-response
// redaction engine (compile-once regex table, optional post-match
// validator hook) and repurposed here to scrub secrets from error details
// and extraction warnings via ScrubSecretDetail; Text() itself does not
// scrub secrets.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// rolePrefixPattern strips a leading "system:", "assistant:", "user:" (or
// similar) role prefix — the most common prompt-injection vector for text
// lifted verbatim from a page.
var rolePrefixPattern = regexp.MustCompile(`(?i)^\s*(system|assistant|user|developer|tool)\s*:\s*`)

// controlCharPattern matches Unicode C0 and C1 control characters other
// than tab, newline and carriage return.
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x9F]`)

// trailingWSPattern collapses runs of trailing whitespace so sanitized
// output is stable under whitespace-only diffs.
var trailingWSPattern = regexp.MustCompile(`[ \t]+\n`)

var multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)

// secretPattern is one compiled secret-scrubbing rule: a regex plus an
// optional validator hook for patterns that need more than a shape match
// (e.g. a Luhn check before treating a 16-digit run as a credit card).
type secretPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
	validate    func(match string) bool
}

// builtinSecretPatterns is the always-active scrub table.
var builtinSecretPatterns = []secretPattern{
	{name: "aws-key", regex: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{name: "bearer-token", regex: regexp.MustCompile(`Bearer [A-Za-z0-9\-._~+/]+=*`)},
	{name: "jwt", regex: regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`)},
	{name: "github-pat", regex: regexp.MustCompile(`(ghp_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{36,})`)},
	{name: "private-key", regex: regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{name: "credit-card", regex: regexp.MustCompile(`\b([0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4})\b`), validate: luhnValid},
	{name: "ssn", regex: regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)},
	{name: "api-key", regex: regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`)},
}

func init() {
	for i := range builtinSecretPatterns {
		builtinSecretPatterns[i].replacement = "[redacted:" + builtinSecretPatterns[i].name + "]"
	}
}

// scrubSecrets removes secret-shaped substrings from text before it is
// logged or otherwise surfaced outside the PageMap proper (error details).
func scrubSecrets(s string) string {
	for _, p := range builtinSecretPatterns {
		if p.validate != nil {
			s = p.regex.ReplaceAllStringFunc(s, func(m string) string {
				if p.validate(m) {
					return p.replacement
				}
				return m
			})
			continue
		}
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// luhnValid reports whether a numeric string passes the Luhn checksum,
// used to avoid false-positiving on arbitrary 16-digit numbers.
func luhnValid(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if alt {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alt = !alt
	}
	return sum%10 == 0
}

// Text is the canonical sanitizer: HTML entity unescape, NBSP→space,
// control-char stripping, role-prefix stripping, trailing-whitespace
// collapse. Every string a pipeline stage emits into the PageMap must pass
// through this function.
func Text(s string) string {
	if s == "" {
		return s
	}
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = controlCharPattern.ReplaceAllString(s, "")
	s = rolePrefixPattern.ReplaceAllString(s, "")
	s = trailingWSPattern.ReplaceAllString(s, "\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ScrubSecretDetail sanitizes an error detail string before it is surfaced
// to a caller.
func ScrubSecretDetail(s string) string {
	return scrubSecrets(Text(s))
}

// NonceBoundary returns a fresh nonce string used to bracket untrusted page
// content before it is embedded in an agent-facing prompt, so injected
// text cannot forge a boundary marker. Grounded on goadesign-goa-ai's use of uuid.New() to mint
// per-run identifiers (runtime/agent/runtime/run_id.go).
func NonceBoundary() string {
	return "pm-" + uuid.NewString()[:8]
}

// Wrap brackets untrusted text with a nonce boundary comment pair. No
// pipeline stage calls it: the agent prompt, including the MCG cascade's
// raw-HTML fallback, is emitted without nonce boundaries.
func Wrap(nonce, text string) string {
	return "<!--pm:" + nonce + "-->" + text + "<!--/pm:" + nonce + "-->"
}

// IsControlOrFormatting reports whether r is a control/format character
// that should never survive into sanitized output. Exposed for callers
// that sanitize rune-by-rune during streaming traversal.
func IsControlOrFormatting(r rune) bool {
	return unicode.Is(unicode.Cf, r) || (r < 0x20 && r != '\n' && r != '\t') || (r >= 0x7f && r <= 0x9f)
}
