package jobs_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/internal/audit"
	"profilehub/internal/avatars"
	"profilehub/internal/config"
	"profilehub/internal/jobs"
	"profilehub/internal/profiles"
	"profilehub/internal/testsupport"
)

func TestAuditCleanupJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	old := audit.Event{UserID: 1, Action: audit.ActionProfileUpdated, CreatedAt: time.Now().UTC().AddDate(0, 0, -400)}
	recent := audit.Event{UserID: 1, Action: audit.ActionProfileUpdated, CreatedAt: time.Now().UTC().AddDate(0, 0, -10)}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	t.Run("keeps everything when retention is disabled", func(t *testing.T) {
		require.NoError(t, jobs.NewAuditCleanupJob(db, logger, 0).Run())
		var count int64
		require.NoError(t, db.Model(&audit.Event{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("removes events past retention", func(t *testing.T) {
		require.NoError(t, jobs.NewAuditCleanupJob(db, logger, 365).Run())
		events, err := audit.ListForUser(db, 1, 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, recent.ID, events[0].ID)
	})
}

func TestOrphanAvatarJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	fx := testsupport.NewTestService(t, db)
	ctx := context.Background()

	user := testsupport.CreateTestUser(t, db, "sweep@example.com", "password123")

	save := func(age time.Duration) string {
		key := avatars.NewKey(user.ID)
		_, err := fx.Avatars.Save(ctx, key, bytes.NewReader([]byte("jpeg bytes")))
		require.NoError(t, err)
		path, err := fx.Avatars.Path(key)
		require.NoError(t, err)
		stamp := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
		return key
	}

	referenced := save(2 * time.Hour)
	orphaned := save(2 * time.Hour)
	fresh := save(0)

	testsupport.CreateTestProfile(t, db, user.ID, func(p *profiles.Profile) {
		p.AvatarKey = referenced
		p.AvatarURL = fx.Avatars.URL(referenced)
	})

	require.NoError(t, jobs.NewOrphanAvatarJob(ctx, fx.Profiles, fx.Avatars, logger).Run())

	keys, err := fx.Avatars.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{referenced, fresh}, keys)
	assert.NotContains(t, keys, orphaned)
}

func TestGeoLiteUpdaterSkipsWithoutCredentials(t *testing.T) {
	cfg := &config.Config{GeoDBPath: t.TempDir() + "/GeoLite2-Country.mmdb"}
	job := jobs.NewGeoLiteUpdaterJob(cfg, nil, testsupport.GetLogger())
	assert.NoError(t, job.Run())
}

func TestSchedulerLifecycle(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	fx := testsupport.NewTestService(t, db)

	cfg := &config.Config{
		AuditRetentionDays: 30,
		OrphanAvatarSweep:  true,
		JobIntervalSeconds: 3600,
	}
	s := jobs.NewScheduler(cfg, jobs.Deps{
		DB:       db,
		Profiles: fx.Profiles,
		Avatars:  fx.Avatars,
	}, logger)

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	s.Stop()
	assert.False(t, s.IsRunning())
}
