package textutil

import "strings"

var participantPrefixes = []string{"SMTP:", "EX:", "MAILTO:"}

// NormalizeParticipant trims whitespace and the quote/bracket characters
// mail headers accumulate around addresses, strips a leading transport
// prefix (SMTP:, EX:, MAILTO:, case-insensitive), and upper-cases the
// result. An empty result after normalisation means "discard" — callers
// should skip it rather than add it to a participant set.
func NormalizeParticipant(raw string) string {
	s := strings.Trim(raw, " \t\r\n\"'<>;")

	for {
		stripped := false
		for _, prefix := range participantPrefixes {
			if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
				s = s[len(prefix):]
				stripped = true
			}
		}
		if !stripped {
			break
		}
		s = strings.Trim(s, " \t\r\n\"'<>;")
	}

	return strings.ToUpper(s)
}

// NormalizeParticipants normalises each entry, dropping any that become
// empty.
func NormalizeParticipants(raw []string) map[string]struct{} {
	out := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if n := NormalizeParticipant(r); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// ParticipantsIntersect reports whether a and b share at least one
// normalised participant.
func ParticipantsIntersect(a, b map[string]struct{}) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}
