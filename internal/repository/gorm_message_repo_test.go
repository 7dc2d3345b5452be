package repository

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/dbtest"
	"github.com/poornimax/crushline/internal/domain"
)

func seedMessage(t *testing.T, repo *GormMessageRepository, id, from, to string, sentAt int64) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.MessageModel{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		PairKey:    domain.PairKey(from, to),
		Content:    "msg " + id,
		SentAt:     sentAt,
	}))
}

func TestActiveConversations_AggregatesPerPeer(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(dbtest.New(t))

	seedMessage(t, repo, "m1", "bob", "alice", 100)
	seedMessage(t, repo, "m2", "alice", "bob", 200)
	seedMessage(t, repo, "m3", "alice", "carol", 150)
	seedMessage(t, repo, "m4", "dave", "alice", 50)
	seedMessage(t, repo, "m5", "erin", "frank", 500)

	// alice cleared dave after his only message: hidden.
	require.NoError(t, repo.UpsertWatermark(ctx, "alice", "dave", 60))

	rows, err := repo.ActiveConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "bob", rows[0].PeerID)
	assert.EqualValues(t, 200, rows[0].LastMessageAt)
	assert.True(t, rows[0].HasUnread)

	assert.Equal(t, "carol", rows[1].PeerID)
	assert.False(t, rows[1].HasUnread, "own messages never count as unread")
}

func TestActiveConversations_WatermarkHidesOldUnread(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(dbtest.New(t))

	seedMessage(t, repo, "m1", "bob", "alice", 100)
	require.NoError(t, repo.UpsertWatermark(ctx, "alice", "bob", 150))
	seedMessage(t, repo, "m2", "alice", "bob", 200)

	rows, err := repo.ActiveConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasUnread)

	// bob's view is unaffected by alice's watermark.
	rows, err = repo.ActiveConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].HasUnread)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(dbtest.New(t))

	seedMessage(t, repo, "m1", "bob", "alice", 100)
	seedMessage(t, repo, "m2", "bob", "alice", 110)
	seedMessage(t, repo, "m3", "alice", "bob", 120)

	n, err := repo.MarkRead(ctx, "alice", "bob", 1000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.MarkRead(ctx, "alice", "bob", 2000)
	require.NoError(t, err)
	assert.Zero(t, n)

	changed, err := repo.HasReadSince(ctx, "alice", 999)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.HasReadSince(ctx, "alice", 1000)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestVisibleMessagesAndWatermark(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(dbtest.New(t))

	seedMessage(t, repo, "m1", "bob", "alice", 100)
	seedMessage(t, repo, "m2", "alice", "bob", 200)
	require.NoError(t, repo.UpsertWatermark(ctx, "alice", "bob", 150))

	msgs, err := repo.VisibleMessages(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)

	msgs, err = repo.VisibleMessages(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	require.NoError(t, repo.UpsertWatermark(ctx, "alice", "bob", 300))
	wm, ok, err := repo.Watermark(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 300, wm)

	msgs, err = repo.MessagesBetween(ctx, "alice", "bob", math.MinInt64, 150)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestReceiveSince_MarksOnlyReturnedRead(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(dbtest.New(t))

	seedMessage(t, repo, "m1", "bob", "alice", 100)
	seedMessage(t, repo, "m2", "bob", "alice", 200)
	seedMessage(t, repo, "m3", "bob", "alice", 300)
	require.NoError(t, repo.UpsertWatermark(ctx, "alice", "bob", 250))

	msgs, err := repo.ReceiveSince(ctx, "alice", "bob", 150, 999)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.True(t, msgs[0].IsRead)

	var unread int64
	require.NoError(t, repo.db.Model(&domain.MessageModel{}).Where("is_read = ?", false).Count(&unread).Error)
	assert.EqualValues(t, 2, unread)
}

func TestChangeDetection(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMessageRepository(dbtest.New(t))

	seedMessage(t, repo, "m1", "bob", "alice", 100)
	require.NoError(t, repo.UpsertWatermark(ctx, "alice", "carol", 120))

	ok, err := repo.HasMessageSince(ctx, "alice", 99)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasMessageSince(ctx, "alice", 100)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.HasDeletionSince(ctx, "alice", 110)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasDeletionSince(ctx, "carol", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
