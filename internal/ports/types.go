// Package ports defines the types and interfaces the engine depends on:
// the domain records it owns (Event, Email, Attachment), the immutable
// snapshot handed in by a mail source, and the collaborator interfaces
// (MailSource, EventBus, Clock, Logger) implemented elsewhere in the
// module or by a host embedding the engine.
package ports

import "time"

// EventStatus is the lifecycle state of an Event.
type EventStatus string

const (
	EventStatusOpen     EventStatus = "open"
	EventStatusArchived EventStatus = "archived"
)

// Event is the aggregate business object grouping related mails.
type Event struct {
	EventID    string
	Title      string
	TemplateID string
	Status     EventStatus
	Priority   int
	CreatedAt  time.Time
	UpdatedAt  time.Time

	ConversationIDs     []string
	RelatedSubjects     map[string]struct{}
	Participants        map[string]struct{}
	NotFoundMessageIDs  map[string]struct{}
	ProcessedMessageIDs map[string]struct{}

	Emails      []Email
	Attachments []Attachment

	DashboardItems      []KeyValue
	DisplayColumnSource string
	DisplayColumnCustom string
	AdditionalFiles     []string
}

// Clone returns a deep copy so callers of Store.ListAll/GetByID never hold
// a live reference into the store's internal state.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.ConversationIDs = append([]string(nil), e.ConversationIDs...)
	out.RelatedSubjects = cloneSet(e.RelatedSubjects)
	out.Participants = cloneSet(e.Participants)
	out.NotFoundMessageIDs = cloneSet(e.NotFoundMessageIDs)
	out.ProcessedMessageIDs = cloneSet(e.ProcessedMessageIDs)
	out.Emails = make([]Email, len(e.Emails))
	for i, m := range e.Emails {
		out.Emails[i] = m.Clone()
	}
	out.Attachments = append([]Attachment(nil), e.Attachments...)
	out.DashboardItems = append([]KeyValue(nil), e.DashboardItems...)
	out.AdditionalFiles = append([]string(nil), e.AdditionalFiles...)
	return &out
}

func cloneSet(s map[string]struct{}) map[string]struct{} {
	if s == nil {
		return nil
	}
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// KeyValue is an opaque (key, value) pair populated by external extraction;
// the engine never interprets it.
type KeyValue struct {
	Key   string
	Value string
}

// Email is a mail message currently (or previously) associated with an event.
type Email struct {
	EntryID             string
	StoreID             string
	ConversationID      string
	InternetMessageID   string
	Sender              string
	To                  string
	Subject             string
	Participants        map[string]struct{}
	BodyFingerprint     string
	ThreadIndex         string
	ThreadIndexPrefix   string
	ReferenceMessageIDs map[string]struct{}
	ReceivedOn          time.Time
	IsNewOrUpdated      bool
	IsRemoved           bool
}

// Clone returns a deep copy of the Email.
func (m Email) Clone() Email {
	out := m
	out.Participants = cloneSet(m.Participants)
	out.ReferenceMessageIDs = cloneSet(m.ReferenceMessageIDs)
	return out
}

// Attachment belongs to exactly one Email at a time; it is dropped when its
// source email is removed or its EntryID changes.
type Attachment struct {
	ID                string // entry_id:position:filename
	Filename          string
	Extension         string
	SizeBytes         int64
	SourceMailEntryID string
}

// MailSnapshot is the immutable value object a mail source hands to the
// engine. It carries everything Email does except the mutable bookkeeping
// flags, plus the historical subjects mined out of the body.
type MailSnapshot struct {
	EntryID             string
	StoreID             string
	ConversationID      string
	InternetMessageID   string
	Sender              string
	To                  string
	Subject             string
	Participants        []string
	Body                string
	BodyFingerprint     string
	ThreadIndex         string
	ReferenceMessageIDs []string
	ReceivedOn          time.Time
	HistoricalSubjects  []string
	Attachments         []Attachment
}

// Candidate is the Matching Engine's verdict for one MailSnapshot scored
// against one Open event.
type Candidate struct {
	Event            *Event
	Score            int
	Reasons          []string
	Details          map[string]string
	PreferredApplied bool
}
