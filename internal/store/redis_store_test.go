package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/domain"
)

func newTestStore(t *testing.T) (*RedisStatsStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	s := NewRedisStatsStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStats_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, found, err := s.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	want := domain.RelationshipStats{HeartsSent: 2, HeartsReceived: 1, Friends: 3}
	require.NoError(t, s.SetStats(ctx, "alice", want))
	assert.Equal(t, time.Minute, mr.TTL("crush:stats:alice"))

	got, found, err := s.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, s.InvalidateStats(ctx, "alice", "bob"))
	_, found, err = s.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStats_PartialHashIsMiss(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	mr.HSet("crush:stats:alice", "hearts_sent", "1")
	_, found, err := s.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHotKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, id := range []string{"alice", "bob", "alice", "carol", "alice", "bob"} {
		require.NoError(t, s.RecordAccess(ctx, id))
	}

	top, err := s.GetTopHotKeys(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, top)

	require.NoError(t, s.ResetHotKeyScores(ctx))
	top, err = s.GetTopHotKeys(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, top)
}
