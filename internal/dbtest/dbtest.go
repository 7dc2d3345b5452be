// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/pkg/database"
)

var (
	seq      atomic.Int64
	nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// New returns an isolated database for t with every table migrated. The
// pool is capped at one connection so the shared in-memory database stays
// alive and writers serialize.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("%s_%d", nonAlnum.ReplaceAllString(t.Name(), "_"), seq.Add(1))
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: "file:" + name + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db, domain.Models()...))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedUsers inserts users with the given ids, using the id as username.
func SeedUsers(t testing.TB, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&domain.UserModel{ID: id, Username: id}).Error)
	}
}
