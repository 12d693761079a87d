package imap

import (
	"fmt"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/opik/osem/internal/ports"
)

func parseUID(entryID string) (imapv2.UID, error) {
	n, err := strconv.ParseUint(entryID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imap: invalid uid %q: %w", entryID, err)
	}
	return imapv2.UID(n), nil
}

// fetchByUID fetches every message in [lo, hi] of the currently-selected
// mailbox and converts it to a MailHandle.
func fetchByUID(client *imapclient.Client, storeID string, lo, hi imapv2.UID) ([]ports.MailHandle, error) {
	var uidSet imapv2.UIDSet
	uidSet.AddRange(lo, hi)

	fetchOptions := &imapv2.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{{}},
	}

	fetchCmd := client.Fetch(uidSet, fetchOptions)
	messages, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("imap: fetch: %w", err)
	}

	handles := make([]ports.MailHandle, 0, len(messages))
	for _, msg := range messages {
		handles = append(handles, toMailHandle(storeID, msg))
	}
	return handles, nil
}

func toMailHandle(storeID string, msg *imapclient.FetchMessageBuffer) ports.MailHandle {
	h := ports.MailHandle{
		EntryID: strconv.FormatUint(uint64(msg.UID), 10),
		StoreID: storeID,
	}

	if env := msg.Envelope; env != nil {
		h.Subject = env.Subject
		h.ReceivedOn = env.Date
		h.MessageID = stripAngleBrackets(env.MessageID)

		for _, ref := range env.References {
			h.ReferenceMessageIDs = append(h.ReferenceMessageIDs, stripAngleBrackets(ref))
		}
		if env.InReplyTo != "" {
			h.ReferenceMessageIDs = append(h.ReferenceMessageIDs, stripAngleBrackets(env.InReplyTo))
		}

		h.Participants = participantsOf(env)
		h.ConversationID = conversationIDOf(h.MessageID, h.ReferenceMessageIDs)
	}

	for _, buf := range msg.BodySection {
		h.BodyText = string(buf.Bytes)
		break
	}

	return h
}

func participantsOf(env *imapv2.Envelope) []string {
	var out []string
	add := func(addrs []imapv2.Address) {
		for _, a := range addrs {
			out = append(out, strings.ToLower(fmt.Sprintf("%s@%s", a.Mailbox, a.Host)))
		}
	}
	add(env.From)
	add(env.To)
	add(env.Cc)
	return out
}

// conversationIDOf derives a stable conversation identifier from a
// message's thread-root reference, falling back to its own Message-ID
// when it starts a thread.
func conversationIDOf(messageID string, references []string) string {
	if len(references) > 0 {
		return references[0]
	}
	return messageID
}

func stripAngleBrackets(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}
