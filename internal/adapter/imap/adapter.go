// Package imap is a reference ports.MailSource implementation over IMAP,
// using emersion/go-imap/v2 and emersion/go-sasl. It is adapted from the
// teacher's internal/imap/client.go and internal/adapters/imap.go: the
// same thin, mutex-guarded wrapper around one *imapclient.Client,
// trimmed to password (SASL PLAIN) authentication only — the OAuth2
// token flow the teacher carried for Gmail accounts has no home here,
// since the engine treats mail-source authentication as the adapter's
// concern, not the engine's.
//
// How a mail source maps onto the engine's port is entirely this
// package's business: conversation identity, which the engine treats as
// an opaque string, is derived here from the thread-root Message-ID
// (the first References entry, or the message's own Message-ID when it
// starts a thread).
package imap

import (
	"context"
	"fmt"
	"sync"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/opik/osem/internal/config"
	"github.com/opik/osem/internal/ports"
)

var errNotConnected = fmt.Errorf("imap: not connected")

// Adapter implements ports.MailSource and ports.MailSourceEvents over one
// IMAP connection.
type Adapter struct {
	mu      sync.RWMutex
	client  *imapclient.Client
	cfg     config.MailSourceConfig
	folders map[ports.FolderKind]string

	onNewMail         func(entryIDs []string)
	onFolderItemAdded func(folder ports.FolderKind, handle ports.MailHandle)
	onSyncStart       func()
	onSyncEnd         func()
}

// defaultFolders names the well-known IMAP mailboxes a generic provider
// exposes. A host wanting provider-specific names (e.g. Gmail's
// "[Gmail]/Sent Mail") can override via SetFolder.
var defaultFolders = map[ports.FolderKind]string{
	ports.FolderInbox:   "INBOX",
	ports.FolderSent:    "Sent",
	ports.FolderDeleted: "Trash",
}

// Connect dials cfg.Host:cfg.Port and authenticates.
func Connect(cfg config.MailSourceConfig) (*Adapter, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var client *imapclient.Client
	var err error
	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap: dial %s: %w", addr, err)
	}

	if err := authenticate(client, cfg); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap: authenticate: %w", err)
	}

	folders := make(map[ports.FolderKind]string, len(defaultFolders))
	for k, v := range defaultFolders {
		folders[k] = v
	}

	return &Adapter{client: client, cfg: cfg, folders: folders}, nil
}

func authenticate(client *imapclient.Client, cfg config.MailSourceConfig) error {
	switch cfg.AuthType {
	case config.MailSourceAuthPassword, "":
		return client.Authenticate(sasl.NewPlainClient("", cfg.Username, cfg.Password))
	default:
		return fmt.Errorf("unsupported auth_type %q", cfg.AuthType)
	}
}

// SetFolder overrides the mailbox name used for a well-known folder kind.
func (a *Adapter) SetFolder(kind ports.FolderKind, mailbox string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.folders[kind] = mailbox
}

// Close closes the underlying connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func (a *Adapter) folderName(kind ports.FolderKind) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if name, ok := a.folders[kind]; ok {
		return name
	}
	return defaultFolders[kind]
}

// OnNewMail registers the callback fired when polling (see Watch) finds
// entries beyond the mailbox's last known UIDNEXT.
func (a *Adapter) OnNewMail(handler func(entryIDs []string)) {
	a.mu.Lock()
	a.onNewMail = handler
	a.mu.Unlock()
}

// OnFolderItemAdded registers the callback fired for each new inbox
// entry a Watch polling pass fetches.
func (a *Adapter) OnFolderItemAdded(handler func(folder ports.FolderKind, handle ports.MailHandle)) {
	a.mu.Lock()
	a.onFolderItemAdded = handler
	a.mu.Unlock()
}

// OnSyncStart registers the callback fired when Watch begins a polling pass.
func (a *Adapter) OnSyncStart(handler func()) {
	a.mu.Lock()
	a.onSyncStart = handler
	a.mu.Unlock()
}

// OnSyncEnd registers the callback fired when a polling pass completes.
func (a *Adapter) OnSyncEnd(handler func()) {
	a.mu.Lock()
	a.onSyncEnd = handler
	a.mu.Unlock()
}

var _ ports.MailSource = (*Adapter)(nil)
var _ ports.MailSourceEvents = (*Adapter)(nil)

func (a *Adapter) clientLocked() (*imapclient.Client, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, errNotConnected
	}
	return a.client, nil
}

// ResolveByID fetches one message by its IMAP UID (entryID) out of
// mailbox storeID.
func (a *Adapter) ResolveByID(ctx context.Context, entryID, storeID string) (*ports.MailHandle, error) {
	client, err := a.clientLocked()
	if err != nil {
		return nil, err
	}

	if _, err := client.Select(storeID, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap: select %s: %w", storeID, err)
	}

	uid, err := parseUID(entryID)
	if err != nil {
		return nil, err
	}

	handles, err := fetchByUID(client, storeID, uid, uid)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("imap: uid %s not found in %s", entryID, storeID)
	}
	return &handles[0], nil
}
