package usecases

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"profilehub/internal/audit"
	"profilehub/internal/avatars"
	"profilehub/internal/profiles"
)

// UploadAvatar normalizes the uploaded image, stores it and points the
// caller's profile at it. The previous avatar file is removed afterwards.
func (s *Service) UploadAvatar(ctx context.Context, userID uint, upload io.Reader) (*profiles.Profile, error) {
	s.logger.Debug("Uploading avatar", slog.Uint64("userID", uint64(userID)))

	p, err := s.ownProfile(ctx, userID)
	if err != nil {
		s.logOutcome("upload_avatar", userID, err)
		return nil, err
	}

	data, err := avatars.Process(upload, s.avatar)
	if err != nil {
		s.logOutcome("upload_avatar", userID, err)
		return nil, err
	}

	key := avatars.NewKey(userID)
	url, err := s.store.Save(ctx, key, bytes.NewReader(data))
	if err != nil {
		s.logOutcome("upload_avatar", userID, err)
		return nil, err
	}

	oldKey := p.AvatarKey
	updated, err := s.repo.UpdateAvatar(ctx, userID, url, key)
	if err != nil {
		s.removeAvatarFile(ctx, userID, key)
		s.logOutcome("upload_avatar", userID, err)
		return nil, err
	}
	if oldKey != "" && oldKey != key {
		s.removeAvatarFile(ctx, userID, oldKey)
	}

	s.record(ctx, userID, audit.ActionAvatarUploaded, map[string]any{"key": key, "bytes": len(data)})
	s.logOutcome("upload_avatar", userID, nil, slog.String("key", key), slog.Int("bytes", len(data)))
	return updated, nil
}

// DeleteAvatar clears the caller's avatar. Having no avatar is not an error.
func (s *Service) DeleteAvatar(ctx context.Context, userID uint) (*profiles.Profile, error) {
	p, err := s.ownProfile(ctx, userID)
	if err != nil {
		s.logOutcome("delete_avatar", userID, err)
		return nil, err
	}
	if p.AvatarURL == "" && p.AvatarKey == "" {
		return p, nil
	}

	oldKey := p.AvatarKey
	updated, err := s.repo.UpdateAvatar(ctx, userID, "", "")
	if err != nil {
		s.logOutcome("delete_avatar", userID, err)
		return nil, err
	}
	if oldKey != "" {
		s.removeAvatarFile(ctx, userID, oldKey)
	}

	s.record(ctx, userID, audit.ActionAvatarDeleted, map[string]any{"key": oldKey})
	s.logOutcome("delete_avatar", userID, nil)
	return updated, nil
}

// removeAvatarFile deletes a stored avatar. Leftovers are collected by the orphan sweep.
func (s *Service) removeAvatarFile(ctx context.Context, userID uint, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to remove avatar file",
			slog.Uint64("userID", uint64(userID)),
			slog.String("key", key),
			slog.Any("error", err))
	}
}
