package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/dbtest"
	"github.com/poornimax/crushline/internal/domain"
)

func TestExpressInterest_FlipsMutualAndCreatesFriendship(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := NewGormRelationshipRepository(db)
	now := time.Now().UTC()

	res, err := repo.ExpressInterest(ctx, "alice", "bob", now)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.BecameMutual)
	assert.Equal(t, domain.StatusSent, res.State.Status())
	assert.True(t, res.State.Consistent())

	res, err = repo.ExpressInterest(ctx, "bob", "alice", now)
	require.NoError(t, err)
	assert.True(t, res.BecameMutual)
	assert.Equal(t, domain.StatusMutual, res.State.Status())
	assert.True(t, res.State.Consistent())

	var count int64
	require.NoError(t, db.Model(&domain.FriendshipModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	ok, err := repo.FriendshipExists(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpressInterest_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRelationshipRepository(dbtest.New(t))

	_, err := repo.ExpressInterest(ctx, "alice", "bob", time.Now())
	require.NoError(t, err)

	res, err := repo.ExpressInterest(ctx, "alice", "bob", time.Now())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, domain.StatusSent, res.State.Status())
}

func TestExpressInterest_RepairsUnflippedPair(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := NewGormRelationshipRepository(db)

	// Both edges committed without a flip, as two racing transactions can leave them.
	require.NoError(t, db.Create(&domain.CrushModel{SenderID: "alice", ReceiverID: "bob"}).Error)
	require.NoError(t, db.Create(&domain.CrushModel{SenderID: "bob", ReceiverID: "alice"}).Error)

	res, err := repo.ExpressInterest(ctx, "alice", "bob", time.Now())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.BecameMutual)
	assert.True(t, res.State.Consistent())
}

func TestWithdrawInterest_AfterMutual(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := NewGormRelationshipRepository(db)

	_, err := repo.ExpressInterest(ctx, "alice", "bob", time.Now())
	require.NoError(t, err)
	_, err = repo.ExpressInterest(ctx, "bob", "alice", time.Now())
	require.NoError(t, err)

	res, err := repo.WithdrawInterest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.True(t, res.BrokeMutual)

	fromAlice, err := repo.PairState(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, fromAlice.Status())
	assert.True(t, fromAlice.Consistent())

	fromBob, err := repo.PairState(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, fromBob.Status())
	assert.False(t, fromBob.Outgoing.IsMutual)

	ok, err := repo.FriendshipExists(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithdrawInterest_NoEdge(t *testing.T) {
	repo := NewGormRelationshipRepository(dbtest.New(t))

	res, err := repo.WithdrawInterest(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.False(t, res.BrokeMutual)
}

func TestStatsAndLists(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRelationshipRepository(dbtest.New(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// alice -> bob, alice -> carol pending; dave -> alice pending; alice <-> erin mutual.
	for i, pair := range [][2]string{{"alice", "bob"}, {"alice", "carol"}, {"dave", "alice"}, {"alice", "erin"}, {"erin", "alice"}} {
		_, err := repo.ExpressInterest(ctx, pair[0], pair[1], base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	stats, err := repo.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RelationshipStats{HeartsSent: 2, HeartsReceived: 1, Friends: 1}, stats)

	sent, err := repo.PendingSent(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "carol", sent[0].ReceiverID)
	assert.Equal(t, "bob", sent[1].ReceiverID)

	received, err := repo.PendingReceived(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "dave", received[0].SenderID)

	friends, err := repo.FriendIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"erin"}, friends)
}
