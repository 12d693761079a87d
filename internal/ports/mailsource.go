package ports

import (
	"context"
	"time"
)

// FolderKind names one of the well-known folders the catch-up engine
// restricts per-store searches to.
type FolderKind string

const (
	FolderInbox   FolderKind = "inbox"
	FolderSent    FolderKind = "sent"
	FolderDeleted FolderKind = "deleted"
)

// Filter is a DASL-style predicate over a mail source's native search
// fields. A reimplementation over IMAP maps this to SEARCH criteria; over
// JMAP, to filter objects (see internal/adapter/imap for the IMAP mapping).
type Filter struct {
	ReceivedSince  time.Time
	ConversationID string
	// SubjectPhrase is matched case-insensitively as a phrase; Wildcard
	// allows a trailing '*' to tolerate header truncation.
	SubjectPhrase string
	Wildcard      bool
}

// MailHandle is the capability set the engine needs out of whatever
// host-specific mail-handle type a concrete adapter wraps.
type MailHandle struct {
	EntryID             string
	StoreID             string
	ConversationID      string
	MessageID           string
	ThreadIndex         string
	Subject             string
	BodyText            string
	Participants        []string
	Attachments         []Attachment
	ReceivedOn          time.Time
	ReferenceMessageIDs []string
}

// ConversationSize reports how many entries a mail source believes a
// conversation has, used by the catch-up engine to declare completeness
// without materialising every entry.
type ConversationSize struct {
	Total    int
	EntryIDs []string
}

// MailSource is the external collaborator the engine consumes: it
// enumerates folders, resolves messages by identifier, and delivers
// new-mail notifications. Implementing it (e.g. over IMAP or JMAP) is
// outside the engine's own scope; the engine depends only on this
// interface.
type MailSource interface {
	// ResolveByID fetches one message by its source identifiers.
	ResolveByID(ctx context.Context, entryID, storeID string) (*MailHandle, error)

	// EnumerateConversation returns every entry the source tracks for a
	// conversation, seeded from one known entry, received on or after
	// sinceUTC. It also reports the conversation's believed total size.
	EnumerateConversation(ctx context.Context, seedEntryID, conversationID string, sinceUTC time.Time) (ConversationSize, []MailHandle, error)

	// RestrictFolder scans one well-known folder (Inbox includes child
	// folders) applying filter, returning matching handles.
	RestrictFolder(ctx context.Context, folder FolderKind, filter Filter) ([]MailHandle, error)

	// Search performs an asynchronous, source-wide search; results are
	// delivered via the returned channel, which is closed when the
	// search completes. tag identifies the request to the caller.
	Search(ctx context.Context, filter Filter, tag string) (<-chan MailHandle, error)
}

// MailSourceEvents is the notification half of the mail-source contract:
// callbacks the adapter drives and the catch-up engine subscribes to.
type MailSourceEvents interface {
	OnNewMail(handler func(entryIDs []string))
	OnFolderItemAdded(handler func(folder FolderKind, handle MailHandle))
	OnSyncStart(handler func())
	OnSyncEnd(handler func())
}
