package imap

import (
	"context"
	"fmt"
	"strings"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/opik/osem/internal/ports"
)

// RestrictFolder scans one well-known folder, applying filter's
// predicate as IMAP SEARCH criteria. Only that one mailbox is searched;
// child folders of the inbox are not included.
func (a *Adapter) RestrictFolder(ctx context.Context, folder ports.FolderKind, filter ports.Filter) ([]ports.MailHandle, error) {
	client, err := a.clientLocked()
	if err != nil {
		return nil, err
	}

	mailbox := a.folderName(folder)
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap: select %s: %w", mailbox, err)
	}

	return runSearch(client, mailbox, filter)
}

// Search performs a one-shot search across the inbox, streaming results
// on the returned channel as they are fetched. tag is echoed back to the
// caller only through its closure over the request; this reference
// adapter has no async search protocol to correlate against, so it
// simply runs the search synchronously and feeds the channel.
func (a *Adapter) Search(ctx context.Context, filter ports.Filter, tag string) (<-chan ports.MailHandle, error) {
	client, err := a.clientLocked()
	if err != nil {
		return nil, err
	}

	mailbox := a.folderName(ports.FolderInbox)
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap: select %s: %w", mailbox, err)
	}

	out := make(chan ports.MailHandle)
	go func() {
		defer close(out)
		handles, err := runSearch(client, mailbox, filter)
		if err != nil {
			return
		}
		for _, h := range handles {
			select {
			case out <- h:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// EnumerateConversation gathers every message the source holds for a
// conversation. IMAP has no native conversation identifier, so this
// searches by the thread-root Message-ID derived in convert.go, both as
// the message's own id and as a reference header, across inbox and sent.
func (a *Adapter) EnumerateConversation(ctx context.Context, seedEntryID, conversationID string, sinceUTC time.Time) (ports.ConversationSize, []ports.MailHandle, error) {
	client, err := a.clientLocked()
	if err != nil {
		return ports.ConversationSize{}, nil, err
	}

	seen := make(map[string]ports.MailHandle)
	for _, folder := range []ports.FolderKind{ports.FolderInbox, ports.FolderSent} {
		mailbox := a.folderName(folder)
		if _, err := client.Select(mailbox, nil).Wait(); err != nil {
			continue
		}

		for _, header := range []string{"Message-Id", "References", "In-Reply-To"} {
			criteria := &imapv2.SearchCriteria{
				Header: []imapv2.SearchCriteriaHeaderField{{Key: header, Value: conversationID}},
			}
			if !sinceUTC.IsZero() {
				criteria.Since = sinceUTC
			}
			handles, err := searchAndFetch(client, mailbox, criteria)
			if err != nil {
				continue
			}
			for _, h := range handles {
				seen[h.EntryID+"::"+h.StoreID] = h
			}
		}
	}

	out := make([]ports.MailHandle, 0, len(seen))
	entryIDs := make([]string, 0, len(seen))
	for _, h := range seen {
		out = append(out, h)
		entryIDs = append(entryIDs, h.EntryID)
	}

	return ports.ConversationSize{Total: len(out), EntryIDs: entryIDs}, out, nil
}

func runSearch(client *imapclient.Client, mailbox string, filter ports.Filter) ([]ports.MailHandle, error) {
	criteria := toSearchCriteria(filter)
	return searchAndFetch(client, mailbox, criteria)
}

func searchAndFetch(client *imapclient.Client, mailbox string, criteria *imapv2.SearchCriteria) ([]ports.MailHandle, error) {
	searchCmd := client.UIDSearch(criteria, nil)
	data, err := searchCmd.Wait()
	if err != nil {
		return nil, fmt.Errorf("imap: search %s: %w", mailbox, err)
	}

	uids := data.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	var uidSet imapv2.UIDSet
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}

	fetchOptions := &imapv2.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{{}},
	}
	fetchCmd := client.Fetch(uidSet, fetchOptions)
	messages, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("imap: fetch %s: %w", mailbox, err)
	}

	handles := make([]ports.MailHandle, 0, len(messages))
	for _, msg := range messages {
		handles = append(handles, toMailHandle(mailbox, msg))
	}
	return handles, nil
}

// toSearchCriteria maps the engine's DASL-style predicate onto IMAP
// SEARCH criteria. SubjectPhrase maps to a SUBJECT substring search;
// Wildcard only affects how the caller built the phrase (a trailing '*'
// is stripped here since IMAP SUBJECT is already a substring match).
func toSearchCriteria(filter ports.Filter) *imapv2.SearchCriteria {
	criteria := &imapv2.SearchCriteria{}

	if !filter.ReceivedSince.IsZero() {
		criteria.Since = filter.ReceivedSince
	}

	if filter.ConversationID != "" {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{
			Key: "References", Value: filter.ConversationID,
		})
	}

	if filter.SubjectPhrase != "" {
		phrase := strings.TrimSuffix(filter.SubjectPhrase, "*")
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{
			Key: "Subject", Value: phrase,
		})
	}

	return criteria
}
