package jobs

import (
	"context"
	"log/slog"
	"time"

	"profilehub/internal/profiles"
)

// orphanGracePeriod protects files written by uploads that have not updated their profile yet.
const orphanGracePeriod = time.Hour

// AvatarFiles is the part of the avatar store the sweep needs.
type AvatarFiles interface {
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
	ModTime(key string) (time.Time, error)
}

// OrphanAvatarJob deletes stored avatars that no profile references.
type OrphanAvatarJob struct {
	ctx      context.Context
	profiles *profiles.Repository
	files    AvatarFiles
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrphanAvatarJob(ctx context.Context, repo *profiles.Repository, files AvatarFiles, logger *slog.Logger) *OrphanAvatarJob {
	return &OrphanAvatarJob{
		ctx:      ctx,
		profiles: repo,
		files:    files,
		logger:   logger,
		now:      time.Now,
	}
}

func (j *OrphanAvatarJob) Run() error {
	keys, err := j.files.Keys(j.ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		j.logger.Debug("No stored avatars to check")
		return nil
	}

	referenced, err := j.profiles.ReferencedAvatarKeys(j.ctx)
	if err != nil {
		return err
	}

	cutoff := j.now().Add(-orphanGracePeriod)
	removed := 0
	for _, key := range keys {
		if referenced[key] {
			continue
		}
		modTime, err := j.files.ModTime(key)
		if err != nil || modTime.After(cutoff) {
			continue
		}
		if err := j.files.Delete(j.ctx, key); err != nil {
			j.logger.Warn("Failed to delete orphaned avatar", slog.String("key", key), slog.Any("error", err))
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("Removed orphaned avatars",
			slog.Int("removed", removed),
			slog.Int("stored", len(keys)))
	}
	return nil
}
