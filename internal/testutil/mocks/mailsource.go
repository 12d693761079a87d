package mocks

import (
	"context"
	"time"

	"github.com/opik/osem/internal/ports"
	"github.com/stretchr/testify/mock"
)

// MailSource is a mock implementation of ports.MailSource.
type MailSource struct {
	mock.Mock
}

func (m *MailSource) ResolveByID(ctx context.Context, entryID, storeID string) (*ports.MailHandle, error) {
	var args = m.Called(ctx, entryID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.MailHandle), args.Error(1)
}

func (m *MailSource) EnumerateConversation(ctx context.Context, seedEntryID, conversationID string, sinceUTC time.Time) (ports.ConversationSize, []ports.MailHandle, error) {
	var args = m.Called(ctx, seedEntryID, conversationID, sinceUTC)
	var size, _ = args.Get(0).(ports.ConversationSize)
	var handles, _ = args.Get(1).([]ports.MailHandle)
	return size, handles, args.Error(2)
}

func (m *MailSource) RestrictFolder(ctx context.Context, folder ports.FolderKind, filter ports.Filter) ([]ports.MailHandle, error) {
	var args = m.Called(ctx, folder, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.MailHandle), args.Error(1)
}

func (m *MailSource) Search(ctx context.Context, filter ports.Filter, tag string) (<-chan ports.MailHandle, error) {
	var args = m.Called(ctx, filter, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan ports.MailHandle), args.Error(1)
}

var _ ports.MailSource = (*MailSource)(nil)
