package store

import (
	"context"

	"github.com/poornimax/crushline/internal/domain"
)

// NoopStatsStore never caches. It is used when Redis is not configured.
type NoopStatsStore struct{}

func (NoopStatsStore) GetStats(context.Context, string) (domain.RelationshipStats, bool, error) {
	return domain.RelationshipStats{}, false, nil
}

func (NoopStatsStore) SetStats(context.Context, string, domain.RelationshipStats) error { return nil }

func (NoopStatsStore) InvalidateStats(context.Context, ...string) error { return nil }

func (NoopStatsStore) RecordAccess(context.Context, string) error { return nil }

func (NoopStatsStore) GetTopHotKeys(context.Context, int64) ([]string, error) { return nil, nil }

func (NoopStatsStore) ResetHotKeyScores(context.Context) error { return nil }

func (NoopStatsStore) Close() error { return nil }

var _ StatsStore = NoopStatsStore{}
