package textutil

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const fingerprintMaxLen = 512

var quotedLine = regexp.MustCompile(`(?m)^\s*>.*$`)

// BodyFingerprint removes quoted reply lines, strips HTML tags when the
// body looks like markup, collapses whitespace, upper-cases, and
// truncates to 512 characters.
func BodyFingerprint(body string) string {
	withoutQuotes := quotedLine.ReplaceAllString(body, "")

	text := withoutQuotes
	if looksLikeHTML(withoutQuotes) {
		text = stripHTMLTags(withoutQuotes)
	}

	text = collapseWhitespace(text)
	text = strings.ToUpper(text)

	runes := []rune(text)
	if len(runes) > fingerprintMaxLen {
		runes = runes[:fingerprintMaxLen]
	}
	return string(runes)
}

func looksLikeHTML(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.Contains(trimmed, "<") && strings.Contains(trimmed, ">")
}

// stripHTMLTags walks the parsed document tree and concatenates text
// nodes, adapted from the teacher's HTMLToText (internal/email/parser.go)
// trimmed down to plain extraction — no block-level newline/tab shaping,
// since the fingerprint only needs the bare text content.
func stripHTMLTags(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return buf.String()
}

// bigrams returns the set of two-character substrings of s.
func bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) < 2 {
		if len(runes) == 1 {
			set[string(runes)] = struct{}{}
		}
		return set
	}
	for i := 0; i < len(runes)-1; i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// DiceSimilarity computes the Dice coefficient over character bigrams:
// sim = 2*|B(a) ∩ B(b)| / (|B(a)| + |B(b)|). Symmetric, bounded in [0,1].
func DiceSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 && len(bb) == 0 {
		return 1
	}
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	intersection := 0
	for k := range ba {
		if _, ok := bb[k]; ok {
			intersection++
		}
	}
	return 2 * float64(intersection) / float64(len(ba)+len(bb))
}

// FingerprintSimilarityThreshold is the Dice-similarity cutoff at or
// above which two fingerprints are considered similar.
const FingerprintSimilarityThreshold = 0.7

// FingerprintsSimilar reports whether two fingerprints are similar: Dice
// similarity ≥ 0.7, or equal under the 256-char prefix baseline check.
func FingerprintsSimilar(a, b string) bool {
	if MatchesBaseline(a, b) {
		return true
	}
	return DiceSimilarity(a, b) >= FingerprintSimilarityThreshold
}

const baselinePrefixLen = 256

// MatchesBaseline reports whether either fingerprint is a prefix of the
// other, or their common prefix of length min(len(a), len(b)) (capped at
// 256 chars) is equal.
func MatchesBaseline(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return true
	}
	n := min(len([]rune(a)), len([]rune(b)), baselinePrefixLen)
	ra, rb := []rune(a), []rune(b)
	return string(ra[:n]) == string(rb[:n])
}
