// Package textutil implements the engine's text-normalisation primitives:
// subject canonicalisation, body fingerprinting, Dice similarity,
// message-id and participant normalisation, mojibake repair, and
// historical-subject mining. Every function here is pure — no shared
// state, no I/O — generalised from the string-transform helpers the
// teacher scatters across internal/storage/threading.go (subject
// normalisation) and internal/email/parser.go (charset repair, HTML
// stripping).
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// replyForwardPrefixes lists every reply/forward marker stripped from the
// front of a subject, repeatedly, before the remainder is treated as the
// canonical subject. The localised variants (转发/回复/回覆/轉寄, and the
// bracketed [External]/[EXT]/[Pre-Alert] tags some mail gateways prepend)
// are assumed identical to their literal documented form; see DESIGN.md
// for why no resource-lookup indirection is modeled.
var replyForwardPrefixes = []string{
	"RE", "FWD", "FW", "AW", "SV", "VS", "REF",
	"转发", "回复", "回覆", "轉寄",
}

var bracketedPrefixes = []string{
	"[External]", "[EXT]", "[Pre-Alert]",
}

var (
	prefixPattern    = buildPrefixPattern()
	bracketPattern   = buildBracketPattern()
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

func buildPrefixPattern() *regexp.Regexp {
	// Alternatives keep list order; every one must be followed by a colon,
	// so "FW" cannot shadow "FWD".
	escaped := make([]string, len(replyForwardPrefixes))
	for i, p := range replyForwardPrefixes {
		escaped[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)^\s*(` + strings.Join(escaped, "|") + `)\s*:\s*`)
}

func buildBracketPattern() *regexp.Regexp {
	escaped := make([]string, len(bracketedPrefixes))
	for i, p := range bracketedPrefixes {
		escaped[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)^\s*(` + strings.Join(escaped, "|") + `)\s*`)
}

// NormalizeSubject applies NFKC, collapses whitespace, and repeatedly
// strips reply/forward prefixes. If nothing was stripped, it attempts a
// mojibake repair and retries stripping against the repaired text, using
// "a prefix was found" as the repair validator. The result's case is
// preserved for display; all comparisons elsewhere are case-insensitive
// (use strings.EqualFold or strings.ToUpper at the call site).
func NormalizeSubject(subject string) string {
	normalized := norm.NFKC.String(subject)
	normalized = collapseWhitespace(normalized)

	stripped, didStrip := stripPrefixesOnce(normalized)
	if didStrip {
		return strings.TrimSpace(stripped)
	}

	repaired := RepairMojibake(normalized, hasReplyForwardPrefix)
	if repaired != normalized {
		stripped, _ = stripPrefixesOnce(collapseWhitespace(repaired))
		return strings.TrimSpace(stripped)
	}

	return strings.TrimSpace(normalized)
}

// stripPrefixesOnce removes every layer of reply/forward/bracketed prefix
// from the front of s, reporting whether anything was removed.
func stripPrefixesOnce(s string) (string, bool) {
	didStrip := false
	for {
		if m := prefixPattern.FindStringIndex(s); m != nil {
			s = s[m[1]:]
			didStrip = true
			continue
		}
		if m := bracketPattern.FindStringIndex(s); m != nil {
			s = s[m[1]:]
			didStrip = true
			continue
		}
		break
	}
	return strings.TrimSpace(s), didStrip
}

func hasReplyForwardPrefix(candidate string) bool {
	return prefixPattern.MatchString(candidate) || bracketPattern.MatchString(candidate)
}

func collapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// EqualFoldSubject reports whether two subjects are equal case-insensitively,
// the equality rule used throughout the matching engine's "standard match".
func EqualFoldSubject(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// StandardSubjectMatch reports whether candidate standard-matches stored:
// equal case-insensitively after normalisation, or candidate is a
// case-insensitive prefix of stored.
func StandardSubjectMatch(candidate, stored string) bool {
	c := strings.ToUpper(strings.TrimSpace(candidate))
	s := strings.ToUpper(strings.TrimSpace(stored))
	if c == s {
		return true
	}
	return strings.HasPrefix(s, c) && c != ""
}

// TruncatedSubjectMatch reports whether candidate is a ≥4-char prefix of
// stored — the "header value is a truncated prefix of the stored form"
// rule used by the truncated-subject signal.
func TruncatedSubjectMatch(candidate, stored string) bool {
	c := strings.ToUpper(strings.TrimSpace(candidate))
	s := strings.ToUpper(strings.TrimSpace(stored))
	if utf8.RuneCountInString(c) < 4 {
		return false
	}
	return strings.HasPrefix(s, c)
}
