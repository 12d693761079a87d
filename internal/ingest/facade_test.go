package ingest

import (
	"testing"

	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/testutil/mocks"
)

type fakeStore struct {
	events map[string]*ports.Event
}

func newFakeStore() *fakeStore { return &fakeStore{events: map[string]*ports.Event{}} }

func (f *fakeStore) ListAll() []*ports.Event {
	out := make([]*ports.Event, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	return out
}

func (f *fakeStore) GetByID(id string) *ports.Event { return f.events[id] }

func (f *fakeStore) CreateFromMail(mail ports.MailSnapshot, templateID string, knownParticipants []string) (*ports.Event, error) {
	e := &ports.Event{EventID: "EVT-NEW", Title: mail.Subject, Status: ports.EventStatusOpen}
	f.events[e.EventID] = e
	return e, nil
}

func (f *fakeStore) TryAddMail(eventID string, mail ports.MailSnapshot) (*ports.Event, error) {
	e := f.events[eventID]
	e.Emails = append(e.Emails, ports.Email{EntryID: mail.EntryID})
	return e, nil
}

func (f *fakeStore) AddMailToEvent(eventID string, mail ports.MailSnapshot) (*ports.Event, error) {
	return f.TryAddMail(eventID, mail)
}

func (f *fakeStore) RemoveMail(eventID, entryID, messageID string) error { return nil }

func (f *fakeStore) MarkMessageIDsNotFound(eventID string, ids []string) error { return nil }

type fakeMatcher struct {
	winner *ports.Candidate
}

func (m *fakeMatcher) Select(mail ports.MailSnapshot, candidates []*ports.Event, preferredEventID string) *ports.Candidate {
	return m.winner
}

func TestTryAddMailDropsSnapshotMissingConversationID(t *testing.T) {
	store := newFakeStore()
	f := New(store, &fakeMatcher{}, nil, mocks.Logger{})

	got := f.TryAddMail(ports.MailSnapshot{}, "")
	if got != nil {
		t.Error("expected nil for a snapshot with no conversation_id")
	}
}

func TestTryAddMailReturnsNilWhenNoCandidateMatches(t *testing.T) {
	store := newFakeStore()
	f := New(store, &fakeMatcher{winner: nil}, nil, mocks.Logger{})

	got := f.TryAddMail(ports.MailSnapshot{ConversationID: "conv-1"}, "")
	if got != nil {
		t.Error("expected nil when the matcher selects nothing")
	}
}

func TestTryAddMailUpsertsIntoSelectedEvent(t *testing.T) {
	store := newFakeStore()
	target := &ports.Event{EventID: "EVT-1", Status: ports.EventStatusOpen}
	store.events[target.EventID] = target

	f := New(store, &fakeMatcher{winner: &ports.Candidate{Event: target, Score: 70}}, nil, mocks.Logger{})

	got := f.TryAddMail(ports.MailSnapshot{ConversationID: "conv-1", EntryID: "entry-1"}, "")
	if got == nil || got.EventID != "EVT-1" {
		t.Fatalf("expected upsert into EVT-1, got %+v", got)
	}
	if len(got.Emails) != 1 {
		t.Errorf("expected 1 email, got %d", len(got.Emails))
	}
}

func TestCreateEventFromMail(t *testing.T) {
	store := newFakeStore()
	f := New(store, &fakeMatcher{}, nil, mocks.Logger{})

	event, err := f.CreateEventFromMail(ports.MailSnapshot{ConversationID: "conv-1", Subject: "Quote"}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Title != "Quote" {
		t.Errorf("expected title to carry subject, got %q", event.Title)
	}
}

func TestTriggerCatchupReturnsZeroWithoutCatchupEngine(t *testing.T) {
	store := newFakeStore()
	f := New(store, &fakeMatcher{}, nil, mocks.Logger{})

	n := f.TriggerCatchup("EVT-1", []string{"conv-1"}, false, 0, false)
	if n != 0 {
		t.Errorf("expected 0 with no catch-up engine wired, got %d", n)
	}
}
