package textutil

import "strings"

// NormalizeMessageID strips enclosing angle brackets and surrounding
// whitespace. Equality on the result is case-insensitive — callers
// compare with strings.EqualFold.
func NormalizeMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// ExtractMessageIDs pulls Message-Id tokens out of a raw header value
// (In-Reply-To or References): prefer <id> captures; if none are
// bracketed, split on whitespace/comma/semicolon. Every token is
// normalised (angle brackets stripped, trimmed).
func ExtractMessageIDs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var ids []string
	if strings.Contains(raw, "<") {
		start := -1
		for i, r := range raw {
			switch r {
			case '<':
				start = i
			case '>':
				if start >= 0 {
					ids = append(ids, NormalizeMessageID(raw[start:i+1]))
					start = -1
				}
			}
		}
		if len(ids) > 0 {
			return dedupeNonEmpty(ids)
		}
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == ';'
	})
	for _, f := range fields {
		if n := NormalizeMessageID(f); n != "" {
			ids = append(ids, n)
		}
	}
	return dedupeNonEmpty(ids)
}

func dedupeNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		key := strings.ToUpper(id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}
