package imap

import (
	"context"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"

	"github.com/opik/osem/internal/ports"
)

// Watch polls the inbox every interval for UIDs beyond the last observed
// UIDNEXT, firing the registered OnSyncStart/OnNewMail/OnSyncEnd
// callbacks around each pass. It blocks until ctx is cancelled, mirroring
// the ticker/worker shape the engine's own background loops use.
func (a *Adapter) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastUIDNext imapv2.UID

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastUIDNext = a.pollOnce(lastUIDNext)
		}
	}
}

func (a *Adapter) pollOnce(lastUIDNext imapv2.UID) imapv2.UID {
	client, err := a.clientLocked()
	if err != nil {
		return lastUIDNext
	}

	a.fireSyncStart()
	defer a.fireSyncEnd()

	mailbox := a.folderName(ports.FolderInbox)
	selectData, err := client.Select(mailbox, nil).Wait()
	if err != nil {
		return lastUIDNext
	}

	if lastUIDNext == 0 {
		return selectData.UIDNext
	}
	if selectData.UIDNext <= lastUIDNext {
		return lastUIDNext
	}

	handles, err := fetchByUID(client, mailbox, lastUIDNext, selectData.UIDNext-1)
	if err != nil {
		return lastUIDNext
	}

	entryIDs := make([]string, 0, len(handles))
	for _, h := range handles {
		entryIDs = append(entryIDs, h.EntryID)
		a.fireFolderItemAdded(ports.FolderInbox, h)
	}
	a.fireNewMail(entryIDs)

	return selectData.UIDNext
}

func (a *Adapter) fireSyncStart() {
	a.mu.RLock()
	h := a.onSyncStart
	a.mu.RUnlock()
	if h != nil {
		h()
	}
}

func (a *Adapter) fireSyncEnd() {
	a.mu.RLock()
	h := a.onSyncEnd
	a.mu.RUnlock()
	if h != nil {
		h()
	}
}

func (a *Adapter) fireNewMail(entryIDs []string) {
	if len(entryIDs) == 0 {
		return
	}
	a.mu.RLock()
	h := a.onNewMail
	a.mu.RUnlock()
	if h != nil {
		h(entryIDs)
	}
}

func (a *Adapter) fireFolderItemAdded(folder ports.FolderKind, handle ports.MailHandle) {
	a.mu.RLock()
	h := a.onFolderItemAdded
	a.mu.RUnlock()
	if h != nil {
		h(folder, handle)
	}
}
