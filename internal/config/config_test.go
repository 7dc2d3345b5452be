package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RELATIONSHIP_LOCK_BACKEND", "redis")
	t.Setenv("ARCHIVE_S3_BUCKET", "chats")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "", cfg.Redis.Address)
	assert.Equal(t, 10*time.Minute, cfg.Redis.StatsTTL)
	assert.Equal(t, "memory", cfg.PubSub.Driver)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(8192), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 3, cfg.Relationship.MaxRetries)
	assert.Equal(t, "redis", cfg.Relationship.LockBackend)
	assert.Equal(t, "local", cfg.Archive.Driver)
	assert.Equal(t, "chats", cfg.Archive.S3.Bucket)
	assert.Equal(t, time.Minute, cfg.Reconciler.Interval)
	assert.Equal(t, "crushline", cfg.Log.ServiceName)
}
