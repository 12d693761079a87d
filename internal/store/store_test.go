package store

import (
	"testing"
	"time"

	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestStore(now time.Time) (*Store, *mocks.EventBus) {
	bus := new(mocks.EventBus)
	bus.On("Publish", mock.Anything).Return()
	clk := mocks.Clock{Fixed: now}
	return New(bus, clk, nil, mocks.Logger{}), bus
}

func baseSnapshot(now time.Time) ports.MailSnapshot {
	return ports.MailSnapshot{
		EntryID:           "entry-1",
		ConversationID:    "conv-1",
		InternetMessageID: "<msg-1@acme.com>",
		Sender:            "alice@acme.com",
		Subject:           "Quote for PO-123",
		Participants:      []string{"alice@acme.com", "bob@acme.com"},
		BodyFingerprint:   "QUOTE FOR PO 123 PLEASE SEND PRICING",
		ReceivedOn:        now,
	}
}

func TestCreateFromMailThenTryAddMailIsIdempotent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, bus := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)
	assert.Len(t, event.Emails, 1)

	again, err := st.TryAddMail(event.EventID, mail)
	assert.NoError(t, err)
	assert.Len(t, again.Emails, 1, "re-ingesting the identical mail must not add a second member")

	bus.AssertExpectations(t)
}

func TestTryAddMailAppendsReplyAsSecondMember(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	reply := mail
	reply.EntryID = "entry-2"
	reply.InternetMessageID = "<msg-2@acme.com>"
	reply.Subject = "RE: Quote for PO-123"
	reply.ReceivedOn = now.Add(time.Hour)
	reply.ReferenceMessageIDs = []string{"<msg-1@acme.com>"}

	updated, err := st.TryAddMail(event.EventID, reply)
	assert.NoError(t, err)
	assert.Len(t, updated.Emails, 2)
}

func TestRemoveMailThenAddMailToEventRestores(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	err = st.RemoveMail(event.EventID, mail.EntryID, "")
	assert.NoError(t, err)

	removed := st.GetByID(event.EventID)
	assert.True(t, removed.Emails[0].IsRemoved)

	restored, err := st.AddMailToEvent(event.EventID, mail)
	assert.NoError(t, err)
	assert.False(t, restored.Emails[0].IsRemoved, "add_mail_to_event must restore a soft-deleted member")
}

func TestRemoveMailThenTryAddMailRefusesRestore(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	err = st.RemoveMail(event.EventID, mail.EntryID, "")
	assert.NoError(t, err)

	still, err := st.TryAddMail(event.EventID, mail)
	assert.NoError(t, err)
	assert.True(t, still.Emails[0].IsRemoved, "try_add_mail must not resurrect a soft-deleted member")
}

func TestRemoveMailDropsSubjectOnlyWhenNoActiveMemberUsesIt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	reply := mail
	reply.EntryID = "entry-2"
	reply.InternetMessageID = "<msg-2@acme.com>"
	reply.ReceivedOn = now.Add(time.Hour)
	_, err = st.TryAddMail(event.EventID, reply)
	assert.NoError(t, err)

	err = st.RemoveMail(event.EventID, mail.EntryID, "")
	assert.NoError(t, err)

	after := st.GetByID(event.EventID)
	_, stillPresent := after.RelatedSubjects["QUOTE FOR PO-123"]
	assert.True(t, stillPresent, "subject must survive while the second member still carries it")
}

func TestMarkMessageIDsNotFoundIsIdempotent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	err = st.MarkMessageIDsNotFound(event.EventID, []string{"<missing@acme.com>"})
	assert.NoError(t, err)
	err = st.MarkMessageIDsNotFound(event.EventID, []string{"<missing@acme.com>"})
	assert.NoError(t, err)

	got := st.GetByID(event.EventID)
	assert.Len(t, got.NotFoundMessageIDs, 1)
}

func TestCreateFromMailRejectsMissingConversationID(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	mail.ConversationID = ""
	_, err := st.CreateFromMail(mail, "", nil)
	assert.ErrorIs(t, err, ports.ErrInvalidSnapshot)
}

func TestListAllAndGetByIDReturnDeepCopies(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	got := st.GetByID(event.EventID)
	got.Title = "mutated by caller"
	got.RelatedSubjects["INJECTED"] = struct{}{}

	again := st.GetByID(event.EventID)
	assert.NotEqual(t, "mutated by caller", again.Title)
	_, leaked := again.RelatedSubjects["INJECTED"]
	assert.False(t, leaked, "mutating a returned clone must not affect the store")

	listed := st.ListAll()
	listed[0].Title = "mutated via list"
	assert.NotEqual(t, "mutated via list", st.GetByID(event.EventID).Title)
}

func TestArchiveThenReopen(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st, _ := newTestStore(now)

	mail := baseSnapshot(now)
	event, err := st.CreateFromMail(mail, "", nil)
	assert.NoError(t, err)

	assert.NoError(t, st.Archive([]string{event.EventID}))
	assert.Equal(t, ports.EventStatusArchived, st.GetByID(event.EventID).Status)

	assert.NoError(t, st.Reopen(event.EventID))
	assert.Equal(t, ports.EventStatusOpen, st.GetByID(event.EventID).Status)
}
