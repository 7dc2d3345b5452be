package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poornimax/crushline/internal/domain"
)

const (
	statsKeyPrefix  = "crush:stats:"
	hotKeyScoresKey = "crush:hotkey:scores"

	fieldHeartsSent     = "hearts_sent"
	fieldHeartsReceived = "hearts_received"
	fieldFriends        = "friends"
)

// StatsStore caches per-user relationship counters and tracks which users
// are read most often.
type StatsStore interface {
	GetStats(ctx context.Context, userID string) (domain.RelationshipStats, bool, error)
	SetStats(ctx context.Context, userID string, stats domain.RelationshipStats) error
	InvalidateStats(ctx context.Context, userIDs ...string) error
	RecordAccess(ctx context.Context, userID string) error
	GetTopHotKeys(ctx context.Context, n int64) ([]string, error)
	ResetHotKeyScores(ctx context.Context) error
	Close() error
}

// RedisStatsStore implements StatsStore as one hash per user.
type RedisStatsStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsStore dials Redis and verifies the connection.
func NewRedisStatsStore(address, password string, db int, ttl time.Duration) (*RedisStatsStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStatsStoreFromClient(client, ttl), nil
}

// NewRedisStatsStoreFromClient wraps an existing client.
func NewRedisStatsStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStatsStore {
	return &RedisStatsStore{client: client, ttl: ttl}
}

func statsKey(userID string) string {
	return statsKeyPrefix + userID
}

// GetStats returns (stats, true, nil) on hit and (zero, false, nil) on miss.
func (s *RedisStatsStore) GetStats(ctx context.Context, userID string) (domain.RelationshipStats, bool, error) {
	vals, err := s.client.HGetAll(ctx, statsKey(userID)).Result()
	if err != nil {
		return domain.RelationshipStats{}, false, fmt.Errorf("redis get stats: %w", err)
	}
	if len(vals) == 0 {
		return domain.RelationshipStats{}, false, nil
	}

	var stats domain.RelationshipStats
	for field, dst := range map[string]*int64{
		fieldHeartsSent:     &stats.HeartsSent,
		fieldHeartsReceived: &stats.HeartsReceived,
		fieldFriends:        &stats.Friends,
	} {
		raw, ok := vals[field]
		if !ok {
			return domain.RelationshipStats{}, false, nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.RelationshipStats{}, false, fmt.Errorf("parse %s: %w", field, err)
		}
		*dst = n
	}
	return stats, true, nil
}

// SetStats writes all counters and refreshes the TTL atomically.
func (s *RedisStatsStore) SetStats(ctx context.Context, userID string, stats domain.RelationshipStats) error {
	key := statsKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldHeartsSent, stats.HeartsSent,
			fieldHeartsReceived, stats.HeartsReceived,
			fieldFriends, stats.Friends,
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set stats: %w", err)
	}
	return nil
}

// InvalidateStats drops the cached counters of every given user.
func (s *RedisStatsStore) InvalidateStats(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = statsKey(id)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate stats: %w", err)
	}
	return nil
}

// RecordAccess increments the access score for a user in the hot key sorted set.
func (s *RedisStatsStore) RecordAccess(ctx context.Context, userID string) error {
	err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, userID).Err()
	if err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the top-n most accessed user IDs.
func (s *RedisStatsStore) GetTopHotKeys(ctx context.Context, n int64) ([]string, error) {
	keys, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}
	return keys, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisStatsStore) ResetHotKeyScores(ctx context.Context) error {
	err := s.client.Del(ctx, hotKeyScoresKey).Err()
	if err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStatsStore) Close() error {
	return s.client.Close()
}

var _ StatsStore = (*RedisStatsStore)(nil)
