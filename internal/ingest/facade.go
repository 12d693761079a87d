// Package ingest is the thin, stateless façade over the Event Store, the
// Matching Engine, and the Catch-up Engine — the one surface a mail
// source or host UI calls into. Grounded on the teacher's service-layer
// convention (internal/services/email.go, sync.go): a struct holding
// its collaborators, one method per public operation, each validating
// preconditions and translating to lower-level calls. The façade itself
// publishes nothing; change notifications come from the store.
package ingest

import (
	"context"
	"time"

	"github.com/opik/osem/internal/catchup"
	"github.com/opik/osem/internal/ports"
)

// Store is the subset of internal/store.Store the façade drives directly.
type Store interface {
	ListAll() []*ports.Event
	GetByID(id string) *ports.Event
	CreateFromMail(mail ports.MailSnapshot, templateID string, knownParticipants []string) (*ports.Event, error)
	TryAddMail(eventID string, mail ports.MailSnapshot) (*ports.Event, error)
	AddMailToEvent(eventID string, mail ports.MailSnapshot) (*ports.Event, error)
	RemoveMail(eventID, entryID, messageID string) error
	MarkMessageIDsNotFound(eventID string, ids []string) error
}

// Matcher is the subset of internal/match.Engine the façade drives.
type Matcher interface {
	Select(mail ports.MailSnapshot, candidates []*ports.Event, preferredEventID string) *ports.Candidate
}

// Catchup is the subset of internal/catchup.Engine the façade drives.
type Catchup interface {
	Enqueue(eventID, conversationID string, fullHistory, preferFront bool) bool
	DrainNow(ctx context.Context, n int) int
}

// Facade wires the store, matcher, and catch-up engine into the
// operations named by the ingestion contract.
type Facade struct {
	store   Store
	matcher Matcher
	catchup Catchup
	logger  ports.Logger
}

// New constructs a Facade. catchup may be nil when the host does not
// wire a catch-up engine (e.g. tests exercising the hot path only).
func New(store Store, matcher Matcher, catchup Catchup, logger ports.Logger) *Facade {
	return &Facade{store: store, matcher: matcher, catchup: catchup, logger: logger}
}

// TryAddMail is the hot path: a conversation-id-less snapshot is
// dropped; otherwise the matching engine picks at most one Open event
// and the mail is upserted into it with allow_restore=false.
func (f *Facade) TryAddMail(mail ports.MailSnapshot, preferredEventID string) *ports.Event {
	if mail.ConversationID == "" {
		f.logger.Debugf("try_add_mail dropped: missing conversation_id")
		return nil
	}

	var open []*ports.Event
	for _, e := range f.store.ListAll() {
		if e.Status == ports.EventStatusOpen {
			open = append(open, e)
		}
	}

	candidate := f.matcher.Select(mail, open, preferredEventID)
	if candidate == nil {
		f.logger.Debugf("try_add_mail: no candidate cleared threshold for subject %q", mail.Subject)
		return nil
	}

	f.logger.Infof("try_add_mail: selected event %s score=%d reasons=%v", candidate.Event.EventID, candidate.Score, candidate.Reasons)

	event, err := f.store.TryAddMail(candidate.Event.EventID, mail)
	if err != nil {
		f.logger.Errorf("try_add_mail: upsert into %s failed: %v", candidate.Event.EventID, err)
		return nil
	}
	return event
}

// AddMailToEvent bypasses matching and upserts directly into eventID,
// allowed to restore a soft-deleted member.
func (f *Facade) AddMailToEvent(eventID string, mail ports.MailSnapshot) *ports.Event {
	event, err := f.store.AddMailToEvent(eventID, mail)
	if err != nil {
		f.logger.Errorf("add_mail_to_event: upsert into %s failed: %v", eventID, err)
		return nil
	}
	return event
}

// CreateEventFromMail allocates a fresh event from one mail snapshot.
func (f *Facade) CreateEventFromMail(mail ports.MailSnapshot, templateID string, knownParticipants []string) (*ports.Event, error) {
	return f.store.CreateFromMail(mail, templateID, knownParticipants)
}

// RemoveMail soft-deletes a member by entryID or messageID.
func (f *Facade) RemoveMail(eventID, entryID, messageID string) error {
	return f.store.RemoveMail(eventID, entryID, messageID)
}

// MarkMessageIDsNotFound records that ids could not be resolved for eventID.
func (f *Facade) MarkMessageIDsNotFound(eventID string, ids []string) error {
	return f.store.MarkMessageIDsNotFound(eventID, ids)
}

// TriggerCatchup enqueues a catch-up scan for each conversation id not
// already tracked, always preferring eventID when rotating the queue.
// When immediate is true, it blocks the caller until either enqueued
// work drains or timeout elapses; remaining items stay queued for the
// regular tick.
func (f *Facade) TriggerCatchup(eventID string, conversationIDs []string, immediate bool, timeout time.Duration, fullHistory bool) int {
	if f.catchup == nil {
		return 0
	}

	enqueued := 0
	for _, cid := range conversationIDs {
		if f.catchup.Enqueue(eventID, cid, fullHistory, true) {
			enqueued++
		}
	}

	if !immediate || enqueued == 0 {
		return enqueued
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return f.catchup.DrainNow(ctx, enqueued)
}
