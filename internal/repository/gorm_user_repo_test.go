package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/dbtest"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/pkg/database"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := NewGormUserRepository(db)

	dbtest.SeedUsers(t, db, "alice", "bob", "carol")
	require.NoError(t, db.Create(&domain.QuestionnaireModel{UserID: "alice", Hobbies: database.StringArray{"music"}}).Error)
	require.NoError(t, db.Create(&domain.QuestionnaireModel{UserID: "bob", Hobbies: database.StringArray{"chess", "music"}}).Error)

	ok, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "zoe")
	require.NoError(t, err)
	assert.False(t, ok)

	q, err := repo.GetQuestionnaire(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, database.StringArray{"chess", "music"}, q.Hobbies)

	q, err = repo.GetQuestionnaire(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, q)

	profiles, err := repo.ListProfiles(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "bob", profiles[0].User.ID)
}
