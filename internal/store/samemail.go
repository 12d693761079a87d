package store

import (
	"strings"
	"time"

	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/textutil"
)

const sameMailReceivedTolerance = 30 * time.Second

// findSameMail applies IsSameMail's ordered rules against every member of
// emails, returning the index and pointer to the first match, or (-1,
// nil) if none matches.
func findSameMail(emails []ports.Email, mail ports.MailSnapshot) (int, *ports.Email) {
	for i := range emails {
		if isSameMail(&emails[i], mail) {
			return i, &emails[i]
		}
	}
	return -1, nil
}

// isSameMail implements the spec's ordered IsSameMail(existing, candidate)
// rules.
func isSameMail(existing *ports.Email, candidate ports.MailSnapshot) bool {
	// Rule 1: non-empty entry_id equal (case-insensitive).
	if existing.EntryID != "" && candidate.EntryID != "" &&
		strings.EqualFold(existing.EntryID, candidate.EntryID) {
		return true
	}

	// Rule 2: non-empty normalised internet_message_id equal.
	existingMID := textutil.NormalizeMessageID(existing.InternetMessageID)
	candidateMID := textutil.NormalizeMessageID(candidate.InternetMessageID)
	if existingMID != "" && candidateMID != "" && strings.EqualFold(existingMID, candidateMID) {
		return true
	}

	// Rule 3: same non-empty conversation_id, both sides missing
	// entry_id and message_id, same sender, same subject, received
	// within 30s of each other.
	if existing.ConversationID != "" && candidate.ConversationID != "" &&
		strings.EqualFold(existing.ConversationID, candidate.ConversationID) &&
		existing.EntryID == "" && candidate.EntryID == "" &&
		existingMID == "" && candidateMID == "" &&
		strings.EqualFold(existing.Sender, candidate.Sender) &&
		strings.EqualFold(existing.Subject, candidate.Subject) {
		delta := existing.ReceivedOn.Sub(candidate.ReceivedOn)
		if delta < 0 {
			delta = -delta
		}
		if delta <= sameMailReceivedTolerance {
			return true
		}
	}

	// Rule 4: same non-empty thread_root and similar body fingerprint.
	existingRoot := textutil.ThreadRoot(existing.ThreadIndex)
	candidateRoot := textutil.ThreadRoot(candidate.ThreadIndex)
	if existingRoot != "" && candidateRoot != "" && existingRoot == candidateRoot &&
		textutil.FingerprintsSimilar(existing.BodyFingerprint, candidate.BodyFingerprint) {
		return true
	}

	return false
}

// mergeMailFields merges candidate's fields into existing, reporting
// whether the merge constitutes a content change. Fields that flag
// content change: sender, subject, body_fingerprint, participants (as
// sets). The is_removed transition is handled by upsertMail, which
// treats a restore as a content change. Reference-message-id set is
// union-merged regardless. IsNewOrUpdated is set only when content
// changed and the email is not already in processedMessageIDs.
func mergeMailFields(existing *ports.Email, candidate ports.MailSnapshot, now time.Time, processedMessageIDs map[string]struct{}) bool {
	contentChanged := false

	if candidate.Sender != "" && candidate.Sender != existing.Sender {
		existing.Sender = candidate.Sender
		contentChanged = true
	}
	if candidate.Subject != "" && candidate.Subject != existing.Subject {
		existing.Subject = candidate.Subject
		contentChanged = true
	}
	if candidate.BodyFingerprint != "" && candidate.BodyFingerprint != existing.BodyFingerprint {
		existing.BodyFingerprint = candidate.BodyFingerprint
		contentChanged = true
	}
	if candidate.To != "" && candidate.To != existing.To {
		existing.To = candidate.To
	}
	if candidate.EntryID != "" && candidate.EntryID != existing.EntryID {
		existing.EntryID = candidate.EntryID
	}
	if candidate.StoreID != "" && candidate.StoreID != existing.StoreID {
		existing.StoreID = candidate.StoreID
	}
	if mid := textutil.NormalizeMessageID(candidate.InternetMessageID); mid != "" && mid != existing.InternetMessageID {
		existing.InternetMessageID = mid
	}
	if candidate.ThreadIndex != "" && candidate.ThreadIndex != existing.ThreadIndex {
		existing.ThreadIndex = candidate.ThreadIndex
		existing.ThreadIndexPrefix = textutil.ThreadIndexPrefix(candidate.ThreadIndex)
	}

	newParticipants := textutil.NormalizeParticipants(candidate.Participants)
	if len(newParticipants) > 0 && !sameSet(existing.Participants, newParticipants) {
		if existing.Participants == nil {
			existing.Participants = make(map[string]struct{})
		}
		for p := range newParticipants {
			existing.Participants[p] = struct{}{}
		}
		contentChanged = true
	}

	if existing.ReferenceMessageIDs == nil {
		existing.ReferenceMessageIDs = make(map[string]struct{})
	}
	for _, id := range candidate.ReferenceMessageIDs {
		if n := textutil.NormalizeMessageID(id); n != "" {
			existing.ReferenceMessageIDs[strings.ToUpper(n)] = struct{}{}
		}
	}

	_, processed := processedMessageIDs[strings.ToUpper(existing.InternetMessageID)]
	existing.IsNewOrUpdated = contentChanged && !processed

	return contentChanged
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
