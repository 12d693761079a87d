// Package match selects, for one MailSnapshot, at most one Open event to
// fold it into. The scoring ladder is additive and ordered the same way
// the teacher's internal/storage/threading.go GenerateThreadID tries a
// sequence of identification strategies until one sticks, generalised
// here from "pick a thread ID" to "pick a candidate event".
package match

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/textutil"
)

const (
	weightSubjectParticipant   = 70
	weightTruncatedHistorical  = 70
	weightHistoricalSubject    = 70
	weightPreferredBias        = 40
	acceptThreshold            = 25
	minTruncatedPrefixRunes    = 4
)

// Config tunes which secondary signals the engine computes. The
// production ruleset leaves them disabled for acceptance scoring. The
// catch-up engine does not use them: its searches filter by
// conversation id and subject tokens directly (see internal/catchup).
type Config struct {
	EnableSecondarySignals bool
}

// DefaultConfig matches the production ruleset: secondary signals
// computed but never scored.
func DefaultConfig() Config {
	return Config{EnableSecondarySignals: false}
}

// Engine scores a MailSnapshot against a set of Open events.
type Engine struct {
	cfg Config
}

// New constructs an Engine with cfg.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Select runs the scoring ladder against candidates (which must already
// be filtered to Open events) and returns the winning Candidate, or nil
// if nothing clears acceptThreshold.
func (e *Engine) Select(mail ports.MailSnapshot, candidates []*ports.Event, preferredEventID string) *ports.Candidate {
	scored := make([]*ports.Candidate, 0, len(candidates))
	for _, ev := range candidates {
		c := e.score(mail, ev)
		if preferredEventID != "" && ev.EventID == preferredEventID && c.Score > 0 {
			c.Score += weightPreferredBias
			c.PreferredApplied = true
			c.Reasons = append(c.Reasons, "preferred_event_bias")
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if diff := a.Score - b.Score; diff < 0 {
			return false
		} else if diff > 0 {
			return true
		}
		if a.PreferredApplied != b.PreferredApplied {
			return a.PreferredApplied
		}
		if len(a.Reasons) != len(b.Reasons) {
			return len(a.Reasons) > len(b.Reasons)
		}
		return a.Event.UpdatedAt.After(b.Event.UpdatedAt)
	})

	if len(scored) == 0 || scored[0].Score < acceptThreshold {
		return nil
	}
	return scored[0]
}

// score evaluates every primary signal against one event, returning a
// Candidate carrying every reason considered — including reasons for a
// candidate that ultimately scores below threshold, for diagnostics.
func (e *Engine) score(mail ports.MailSnapshot, ev *ports.Event) *ports.Candidate {
	c := &ports.Candidate{
		Event:   ev,
		Details: make(map[string]string),
	}

	snapshotSubject := textutil.NormalizeSubject(mail.Subject)
	candidateSubjects := candidateSubjectSet(ev)
	participantsIntersect := textutil.ParticipantsIntersect(
		textutil.NormalizeParticipants(mail.Participants), ev.Participants)

	if snapshotSubject != "" && participantsIntersect && subjectMatchesAny(snapshotSubject, candidateSubjects) {
		c.Score += weightSubjectParticipant
		c.Reasons = append(c.Reasons, "subject_participant_match")
	}

	if participantsIntersect && utf8.RuneCountInString(snapshotSubject) >= minTruncatedPrefixRunes {
		truncated := truncatedMatchesAny(snapshotSubject, candidateSubjects)
		historicalConfirms := false
		for _, hs := range mail.HistoricalSubjects {
			n := textutil.NormalizeSubject(hs)
			if n != "" && subjectMatchesAny(n, candidateSubjects) {
				historicalConfirms = true
				break
			}
		}
		if truncated && historicalConfirms {
			c.Score += weightTruncatedHistorical
			c.Reasons = append(c.Reasons, "truncated_subject_historical_confirmation")
		}
	}

	if participantsIntersect {
		for _, hs := range mail.HistoricalSubjects {
			n := textutil.NormalizeSubject(hs)
			if n != "" && subjectMatchesAny(n, candidateSubjects) {
				c.Score += weightHistoricalSubject
				c.Reasons = append(c.Reasons, "historical_subject_match")
				break
			}
		}
	}

	if e.cfg.EnableSecondarySignals {
		e.scoreSecondary(mail, ev, c)
	} else {
		e.diagnoseSecondary(mail, ev, c)
	}

	c.Details["normalized_subject"] = snapshotSubject
	c.Details["diagnostic"] = fmt.Sprintf("score=%d reasons=%v", c.Score, c.Reasons)
	return c
}

// scoreSecondary runs when Config.EnableSecondarySignals is set (it
// defaults to false). It appends the first conversation-id /
// reference-message-id / thread-index / fingerprint signal that fires to
// the candidate's reasons, where it counts in the "more reasons wins"
// tie-break; it adds no weight to the score.
func (e *Engine) scoreSecondary(mail ports.MailSnapshot, ev *ports.Event, c *ports.Candidate) {
	if sig := secondarySignals(mail, ev); sig != "" {
		c.Reasons = append(c.Reasons, sig)
	}
}

// diagnoseSecondary records which secondary signals would have fired,
// without affecting score, so rejected candidates still carry a useful
// diagnostic trail.
func (e *Engine) diagnoseSecondary(mail ports.MailSnapshot, ev *ports.Event, c *ports.Candidate) {
	if sig := secondarySignals(mail, ev); sig != "" {
		c.Details["secondary_signal_available"] = sig
	}
}

func secondarySignals(mail ports.MailSnapshot, ev *ports.Event) string {
	for _, cid := range ev.ConversationIDs {
		if cid != "" && cid == mail.ConversationID {
			return "conversation_id_match"
		}
	}
	snapshotRefs := make(map[string]struct{}, len(mail.ReferenceMessageIDs))
	for _, id := range mail.ReferenceMessageIDs {
		if n := textutil.NormalizeMessageID(id); n != "" {
			snapshotRefs[strings.ToUpper(n)] = struct{}{}
		}
	}
	for _, m := range ev.Emails {
		if _, ok := snapshotRefs[strings.ToUpper(m.InternetMessageID)]; ok {
			return "reference_message_id_match"
		}
		for ref := range m.ReferenceMessageIDs {
			if _, ok := snapshotRefs[ref]; ok {
				return "reference_message_id_match"
			}
		}
		root := textutil.ThreadRoot(m.ThreadIndex)
		if root != "" && root == textutil.ThreadRoot(mail.ThreadIndex) {
			return "thread_root_match"
		}
		if textutil.FingerprintsSimilar(m.BodyFingerprint, mail.BodyFingerprint) {
			return "body_fingerprint_similar"
		}
	}
	return ""
}

func candidateSubjectSet(ev *ports.Event) []string {
	out := make([]string, 0, len(ev.RelatedSubjects)+2)
	if ev.Title != "" {
		out = append(out, textutil.NormalizeSubject(ev.Title))
	}
	if len(ev.Emails) > 0 {
		out = append(out, textutil.NormalizeSubject(ev.Emails[0].Subject))
	}
	for s := range ev.RelatedSubjects {
		out = append(out, s)
	}
	return out
}

func subjectMatchesAny(subject string, candidates []string) bool {
	for _, c := range candidates {
		if textutil.StandardSubjectMatch(subject, c) {
			return true
		}
	}
	return false
}

func truncatedMatchesAny(subject string, candidates []string) bool {
	for _, c := range candidates {
		if textutil.TruncatedSubjectMatch(subject, c) {
			return true
		}
	}
	return false
}
