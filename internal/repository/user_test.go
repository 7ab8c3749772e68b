package repository

import (
	"context"
	"testing"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usernames(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func TestUserRepository_Integration(t *testing.T) {
	db := testutil.NewTestDB(t)
	f := testutil.NewSwapFixture(t, db)
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice2", Email: f.A.Email, Password: "x"})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("GetByEmail ignores case", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, f.A.ID, got.ID)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("GetByIDs", func(t *testing.T) {
		got, err := repo.GetByIDs(ctx, []uint{f.A.ID, f.C.ID, 9999})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "carol", got[f.C.ID].Username)
	})

	t.Run("Browse by skill excludes the caller", func(t *testing.T) {
		users, err := repo.Browse(ctx, models.BrowseFilter{Skill: "pyth", ExcludeID: f.A.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, usernames(users))

		users, err = repo.Browse(ctx, models.BrowseFilter{Skill: "python", ExcludeID: f.B.ID})
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("Browse by availability matches any tag", func(t *testing.T) {
		users, err := repo.Browse(ctx, models.BrowseFilter{Availability: []string{"weekends", "mornings"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, usernames(users))
	})

	t.Run("Browse by location and hidden profiles", func(t *testing.T) {
		f.B.Location = "Berlin, Germany"
		require.NoError(t, repo.Update(ctx, f.B))

		users, err := repo.Browse(ctx, models.BrowseFilter{Location: "berlin"})
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, usernames(users))

		f.B.IsPublic = false
		require.NoError(t, repo.Update(ctx, f.B))
		users, err = repo.Browse(ctx, models.BrowseFilter{Location: "berlin"})
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("List pages with total", func(t *testing.T) {
		users, total, err := repo.List(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, users, 2)
	})

	t.Run("SetAdmin", func(t *testing.T) {
		got, err := repo.SetAdmin(ctx, f.C.ID, true)
		require.NoError(t, err)
		assert.True(t, got.IsAdmin)

		_, err = repo.SetAdmin(ctx, 9999, true)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("activity windows", func(t *testing.T) {
		old := time.Now().Add(-200 * 24 * time.Hour)
		require.NoError(t, db.Model(&models.User{}).Where("id IN ?", []uint{f.B.ID, f.C.ID}).
			UpdateColumn("created_at", old).Error)
		require.NoError(t, repo.TouchLastSeen(ctx, f.B.ID, time.Now()))

		cutoff := time.Now().Add(-90 * 24 * time.Hour)
		inactive, err := repo.CountInactive(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(1), inactive)

		active, err := repo.ListActive(ctx, cutoff)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, usernames(active))
	})
}
