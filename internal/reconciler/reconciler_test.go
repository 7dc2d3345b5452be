package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/config"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/store"
)

type fakeSource map[string]domain.RelationshipStats

func (f fakeSource) Stats(_ context.Context, userID string) (domain.RelationshipStats, error) {
	s, ok := f[userID]
	if !ok {
		return domain.RelationshipStats{}, errors.New("boom")
	}
	return s, nil
}

func TestReconcile_RefreshesHotUsers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	st := store.NewRedisStatsStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	defer st.Close()

	// Stale cache entry for alice.
	require.NoError(t, st.SetStats(ctx, "alice", domain.RelationshipStats{HeartsSent: 9}))
	require.NoError(t, st.RecordAccess(ctx, "alice"))
	require.NoError(t, st.RecordAccess(ctx, "broken"))

	source := fakeSource{"alice": {HeartsSent: 1, Friends: 2}}
	r := New(st, source, config.ReconcilerConfig{TopN: 10})

	assert.Equal(t, 1, r.Reconcile(ctx))

	got, found, err := st.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, source["alice"], got)

	top, err := st.GetTopHotKeys(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestStartStop(t *testing.T) {
	r := New(store.NoopStatsStore{}, fakeSource{}, config.ReconcilerConfig{Interval: time.Millisecond})
	r.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	r.Stop()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
