package profiles_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/internal/profiles"
	"profilehub/internal/testsupport"
)

func TestRepositoryFindAndCreate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()
	repo := profiles.NewRepository(db, profiles.NewMemoryCache(time.Minute), logger)

	t.Run("missing profile returns not found", func(t *testing.T) {
		_, err := repo.FindByUserID(ctx, 999)
		assert.ErrorIs(t, err, profiles.ErrProfileNotFound)
	})

	t.Run("ensure creates once", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "first@example.com", "password123")

		p, created, err := repo.EnsureForUser(ctx, user.ID, user.Email, "FR")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 1, p.Version)
		assert.Equal(t, "FR", p.Country)
		assert.Equal(t, profiles.DefaultPrivacySettings(), p.Privacy())

		again, created, err := repo.EnsureForUser(ctx, user.ID, user.Email, "FR")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, p.ID, again.ID)
	})

	t.Run("serves repeated reads from cache", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "cached@example.com", "password123")
		p := testsupport.CreateTestProfile(t, db, user.ID, nil)

		first, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)

		// Change the row behind the repository's back.
		require.NoError(t, db.Model(&profiles.Profile{}).Where("id = ?", p.ID).Update("bio", "direct write").Error)

		second, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Bio, second.Bio)

		repo.Purge(ctx)
		third, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "direct write", third.Bio)
	})

	t.Run("find by username", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "named@example.com", "password123")
		testsupport.CreateTestProfile(t, db, user.ID, func(p *profiles.Profile) {
			name := "named.user"
			p.Username = &name
		})

		p, err := repo.FindByUsername(ctx, "Named.User")
		require.NoError(t, err)
		assert.Equal(t, user.ID, p.UserID)

		_, err = repo.FindByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, profiles.ErrProfileNotFound)
	})
}

func TestRepositoryUpdate(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()
	repo := profiles.NewRepository(db, nil, logger)

	t.Run("bumps version and invalidates cache", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "update@example.com", "password123")
		testsupport.CreateTestProfile(t, db, user.ID, nil)

		p, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)
		p.Bio = "Updated bio"
		p.SetCustomFields([]profiles.CustomField{{Key: "team", Value: "core"}})

		require.NoError(t, repo.Update(ctx, p))
		assert.Equal(t, 2, p.Version)

		stored, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Updated bio", stored.Bio)
		assert.Equal(t, 2, stored.Version)
		require.Len(t, stored.Fields(), 1)
		assert.Equal(t, profiles.VisibilityPublic, stored.Fields()[0].Visibility)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "stale@example.com", "password123")
		testsupport.CreateTestProfile(t, db, user.ID, nil)

		a, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)
		b, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)

		a.Bio = "first"
		require.NoError(t, repo.Update(ctx, a))

		b.Bio = "second"
		assert.ErrorIs(t, repo.Update(ctx, b), profiles.ErrVersionConflict)
	})

	t.Run("missing profile is not found", func(t *testing.T) {
		p := profiles.NewProfile(4242, "")
		assert.ErrorIs(t, repo.Update(ctx, p), profiles.ErrProfileNotFound)
	})

	t.Run("username must be unique", func(t *testing.T) {
		owner := testsupport.CreateTestUser(t, db, "owner@example.com", "password123")
		testsupport.CreateTestProfile(t, db, owner.ID, func(p *profiles.Profile) {
			name := "taken"
			p.Username = &name
		})
		other := testsupport.CreateTestUser(t, db, "other@example.com", "password123")
		testsupport.CreateTestProfile(t, db, other.ID, nil)

		p, err := repo.FindByUserID(ctx, other.ID)
		require.NoError(t, err)
		name := "taken"
		p.Username = &name
		assert.ErrorIs(t, repo.Update(ctx, p), profiles.ErrUsernameTaken)
	})

	t.Run("update avatar", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "avatar@example.com", "password123")
		testsupport.CreateTestProfile(t, db, user.ID, nil)

		p, err := repo.UpdateAvatar(ctx, user.ID, "/avatars/x.jpg", "x.jpg")
		require.NoError(t, err)
		assert.Equal(t, "/avatars/x.jpg", p.AvatarURL)

		stored, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "x.jpg", stored.AvatarKey)

		keys, err := repo.ReferencedAvatarKeys(ctx)
		require.NoError(t, err)
		assert.True(t, keys["x.jpg"])
	})

	t.Run("delete", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "delete@example.com", "password123")
		testsupport.CreateTestProfile(t, db, user.ID, nil)
		_, err := repo.FindByUserID(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, user.ID))
		_, err = repo.FindByUserID(ctx, user.ID)
		assert.ErrorIs(t, err, profiles.ErrProfileNotFound)

		assert.NoError(t, repo.Delete(ctx, user.ID))
	})
}

func TestRepositorySearch(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()
	repo := profiles.NewRepository(db, nil, logger)

	mk := func(email, first string, mutate func(s *profiles.PrivacySettings)) {
		user := testsupport.CreateTestUser(t, db, email, "password123")
		testsupport.CreateTestProfile(t, db, user.ID, func(p *profiles.Profile) {
			p.FirstName = first
			s := profiles.DefaultPrivacySettings()
			if mutate != nil {
				mutate(&s)
			}
			p.SetPrivacySettings(s)
		})
	}
	mk("alice@example.com", "Alice", nil)
	mk("alicia@example.com", "Alicia", func(s *profiles.PrivacySettings) { s.Searchable = false })
	mk("alina@example.com", "Alina", func(s *profiles.PrivacySettings) { s.ProfileVisibility = profiles.VisibilityFriends })
	mk("bob@example.com", "Bob", nil)

	t.Run("matches public searchable profiles", func(t *testing.T) {
		found, err := repo.Search(ctx, "ali", 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Alice", found[0].FirstName)
	})

	t.Run("is case insensitive", func(t *testing.T) {
		found, err := repo.Search(ctx, "BOB", 10)
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("treats wildcards literally", func(t *testing.T) {
		found, err := repo.Search(ctx, "%", 10)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("empty query returns nothing", func(t *testing.T) {
		found, err := repo.Search(ctx, "  ", 10)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}
