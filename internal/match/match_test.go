package match

import (
	"testing"
	"time"

	"github.com/opik/osem/internal/ports"
)

func openEvent(title string, updatedAt time.Time) *ports.Event {
	return &ports.Event{
		EventID:         "EVT-1",
		Title:           title,
		Status:          ports.EventStatusOpen,
		UpdatedAt:       updatedAt,
		RelatedSubjects: map[string]struct{}{},
		Participants: map[string]struct{}{
			"ALICE@ACME.COM": {},
			"BOB@ACME.COM":   {},
		},
		Emails: []ports.Email{{Subject: title}},
	}
}

func TestSelectAcceptsSubjectParticipantMatch(t *testing.T) {
	e := New(DefaultConfig())
	ev := openEvent("Quote for PO-123", time.Now())

	mail := ports.MailSnapshot{
		Subject:      "RE: Quote for PO-123",
		Participants: []string{"alice@acme.com"},
	}
	c := e.Select(mail, []*ports.Event{ev}, "")
	if c == nil {
		t.Fatal("expected a match")
	}
	if c.Score < acceptThreshold {
		t.Errorf("score %d below threshold", c.Score)
	}
}

func TestSelectRejectsBelowThreshold(t *testing.T) {
	e := New(DefaultConfig())
	ev := openEvent("Completely unrelated subject line", time.Now())

	mail := ports.MailSnapshot{
		Subject:      "Quote for PO-999",
		Participants: []string{"stranger@example.com"},
	}
	c := e.Select(mail, []*ports.Event{ev}, "")
	if c != nil {
		t.Errorf("expected no match, got score %d", c.Score)
	}
}

func TestSelectRequiresParticipantIntersection(t *testing.T) {
	e := New(DefaultConfig())
	ev := openEvent("Quote for PO-123", time.Now())

	mail := ports.MailSnapshot{
		Subject:      "Quote for PO-123",
		Participants: []string{"stranger@example.com"},
	}
	c := e.Select(mail, []*ports.Event{ev}, "")
	if c != nil {
		t.Error("subject match alone, without participant overlap, must not accept")
	}
}

func TestSelectPreferredBiasBreaksTie(t *testing.T) {
	e := New(DefaultConfig())
	now := time.Now()
	evA := openEvent("Quote for PO-123", now)
	evA.EventID = "EVT-A"
	evB := openEvent("Quote for PO-123", now)
	evB.EventID = "EVT-B"

	mail := ports.MailSnapshot{
		Subject:      "Quote for PO-123",
		Participants: []string{"alice@acme.com"},
	}
	c := e.Select(mail, []*ports.Event{evA, evB}, "EVT-B")
	if c == nil || c.Event.EventID != "EVT-B" {
		t.Fatalf("expected preferred EVT-B to win, got %+v", c)
	}
	if !c.PreferredApplied {
		t.Error("expected PreferredApplied to be set")
	}
}

func TestSelectTruncatedSubjectHistoricalConfirmationAddsScore(t *testing.T) {
	e := New(DefaultConfig())
	ev := openEvent("Quote for PO-123 renewal terms", time.Now())

	mail := ports.MailSnapshot{
		Subject:      "Quote",
		Participants: []string{"alice@acme.com"},
	}
	without := e.Select(mail, []*ports.Event{ev}, "")
	if without == nil {
		t.Fatal("expected a match from the standard-match row alone")
	}

	mail.HistoricalSubjects = []string{"Quote for PO-123 renewal terms"}
	with := e.Select(mail, []*ports.Event{ev}, "")
	if with == nil {
		t.Fatal("expected a match")
	}
	if with.Score <= without.Score {
		t.Errorf("historical confirmation should add score: without=%d with=%d", without.Score, with.Score)
	}
}
