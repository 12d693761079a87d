package textutil

import (
	"regexp"
	"strings"
)

// historicalSubjectLine matches "Subject:" and its localised equivalents
// (主题/主旨/標題/제목/件名) at the start of a line, optionally followed by
// folded continuation lines (lines beginning with space or tab).
var historicalSubjectLine = regexp.MustCompile(`(?m)^(?:Subject|主题|主旨|標題|제목|件名)\s*[:：]\s*(.+(?:\n[ \t]+.+)*)`)

// ExtractHistoricalSubjects mines subject lines out of a quoted section
// of a message body (a previous reply header). If nothing matches, it
// retries once on a mojibake-repaired copy of the body, with "the regex
// matches" as the repair validator.
func ExtractHistoricalSubjects(body string) []string {
	if subjects := findHistoricalSubjects(body); len(subjects) > 0 {
		return subjects
	}

	repaired := RepairMojibake(body, func(candidate string) bool {
		return historicalSubjectLine.MatchString(candidate)
	})
	if repaired == body {
		return nil
	}
	return findHistoricalSubjects(repaired)
}

func findHistoricalSubjects(body string) []string {
	matches := historicalSubjectLine.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		captured := joinFoldedLines(m[1])
		captured = strings.TrimSpace(captured)
		if captured == "" {
			continue
		}
		key := strings.ToUpper(captured)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, captured)
	}
	return out
}

// joinFoldedLines collapses a header value folded across continuation
// lines (each starting with a space or tab) back into one line.
func joinFoldedLines(captured string) string {
	lines := strings.Split(captured, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, " ")
}
