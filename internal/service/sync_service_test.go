package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/domain"
)

func TestSyncMessagesSince_MarksReturnedRead(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	first := f.send(t, "alice", "bob", "one")
	f.send(t, "bob", "alice", "mine")
	f.send(t, "alice", "bob", "two")

	msgs, err := f.sync.MessagesSince(ctx, "bob", "alice", first.SentAt)
	require.NoError(t, err)
	require.Equal(t, []string{"two"}, contents(msgs))
	assert.True(t, msgs[0].Read)

	inbox, err := f.conv.ActiveConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.True(t, inbox[0].HasUnread, "message before the cursor stays unread")
}

func TestSyncMessagesSince_RespectsWatermark(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	f.send(t, "alice", "bob", "old")
	require.NoError(t, f.conv.ClearConversation(ctx, "bob", "alice"))
	f.send(t, "alice", "bob", "new")

	msgs, err := f.sync.MessagesSince(ctx, "bob", "alice", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, contents(msgs))
}

func TestSyncMessagesSince_BadPeer(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	_, err := f.sync.MessagesSince(ctx, "bob", "bob", time.Time{})
	assert.ErrorIs(t, err, ErrSelfReference)

	_, err = f.sync.MessagesSince(ctx, "bob", "nobody", time.Time{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangesSince(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	changes, err := f.sync.ChangesSince(ctx, "bob", time.Time{})
	require.NoError(t, err)
	assert.False(t, changes.Any())

	hi := f.send(t, "alice", "bob", "hi")
	cursor := hi.SentAt

	changes, err = f.sync.ChangesSince(ctx, "bob", cursor)
	require.NoError(t, err)
	assert.Equal(t, domain.Changes{}, changes)

	_, err = f.conv.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)

	changes, err = f.sync.ChangesSince(ctx, "bob", cursor)
	require.NoError(t, err)
	assert.Equal(t, domain.Changes{ReadStateChanged: true}, changes)

	require.NoError(t, f.conv.ClearConversation(ctx, "bob", "alice"))

	changes, err = f.sync.ChangesSince(ctx, "bob", cursor)
	require.NoError(t, err)
	assert.True(t, changes.DeletionExists)
	assert.False(t, changes.NewMessageExists)
}
