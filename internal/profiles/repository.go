package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrUsernameTaken is returned when another profile already uses the username.
var ErrUsernameTaken = errors.New("username is already taken")

// publicLookupTTL bounds how stale a username lookup may be between writes.
const publicLookupTTL = 5 * time.Minute

// Repository reads and writes profiles. Lookups by user ID go through the
// cache, lookups by username go through a separate short-lived cache, and
// every write invalidates both.
type Repository struct {
	db         *gorm.DB
	cache      Cache
	byUsername *cache.Cache[string, *Profile]
	logger     *slog.Logger
}

// NewRepository creates a repository. A nil cache selects a MemoryCache with DefaultCacheTTL.
func NewRepository(db *gorm.DB, c Cache, logger *slog.Logger) *Repository {
	if c == nil {
		c = NewMemoryCache(DefaultCacheTTL)
	}
	r := &Repository{
		db:     db,
		cache:  c,
		logger: logger,
	}
	r.byUsername = cache.NewCache[string, *Profile](logger, publicLookupTTL, func(username string) (*Profile, error) {
		var p Profile
		if err := db.WithContext(context.Background()).Where("username = ?", username).First(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	})
	return r
}

// FindByUserID returns the profile of a user, serving from cache when possible.
func (r *Repository) FindByUserID(ctx context.Context, userID uint) (*Profile, error) {
	if p, ok := r.cache.Get(ctx, userID); ok {
		return p, nil
	}

	var p Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	r.cache.Set(ctx, userID, &p)
	return &p, nil
}

// FindByUsername looks a profile up by its unique username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*Profile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, ErrProfileNotFound
	}
	p, err := r.byUsername.Get(username)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// EnsureForUser returns the user's profile, creating an empty one on first access.
// The boolean reports whether a profile was created.
func (r *Repository) EnsureForUser(ctx context.Context, userID uint, email, country string) (*Profile, bool, error) {
	p, err := r.FindByUserID(ctx, userID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	p = NewProfile(userID, email)
	p.Country = country
	err = sqlite.PerformWrite(r.logger, r.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Exec(`
			INSERT INTO profiles (user_id, email, country, custom_fields, privacy_settings, version, is_complete, is_verified, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, false, false, ?, ?)
			ON CONFLICT(user_id) DO NOTHING
		`, userID, p.Email, p.Country, p.CustomFields, p.PrivacySettings, time.Now().UTC(), time.Now().UTC()).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	r.invalidate(ctx, userID)
	created, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	r.logger.Info("Created profile", slog.Uint64("userID", uint64(userID)))
	return created, true, nil
}

// Update writes every editable column of p. The write only applies when the
// stored version still equals p.Version; on success p.Version is advanced.
func (r *Repository) Update(ctx context.Context, p *Profile) error {
	if p.Username != nil {
		taken, err := r.UsernameTaken(ctx, *p.Username, p.UserID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
	}

	now := time.Now().UTC()
	columns := map[string]interface{}{
		"username":         p.Username,
		"first_name":       p.FirstName,
		"last_name":        p.LastName,
		"display_name":     p.DisplayName,
		"email":            p.Email,
		"phone":            p.Phone,
		"location":         p.Location,
		"country":          p.Country,
		"bio":              p.Bio,
		"website":          p.Website,
		"avatar_url":       p.AvatarURL,
		"avatar_key":       p.AvatarKey,
		"professional":     p.Professional,
		"social_links":     p.SocialLinks,
		"custom_fields":    p.CustomFields,
		"privacy_settings": p.PrivacySettings,
		"is_complete":      p.IsComplete,
		"is_verified":      p.IsVerified,
		"version":          p.Version + 1,
		"updated_at":       now,
	}

	var rows int64
	err := sqlite.PerformWrite(r.logger, r.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Model(&Profile{}).
			Where("user_id = ? AND version = ?", p.UserID, p.Version).
			Updates(columns)
		rows = res.RowsAffected
		return res.Error
	})
	r.invalidate(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if rows == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Profile{}).Where("user_id = ?", p.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrProfileNotFound
		}
		return ErrVersionConflict
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

// UpdateAvatar stores a new avatar location and returns the updated profile.
func (r *Repository) UpdateAvatar(ctx context.Context, userID uint, url, key string) (*Profile, error) {
	p, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.AvatarURL = url
	p.AvatarKey = key
	RefreshCompleteness(p)
	if err := r.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetVerified flips the verification flag.
func (r *Repository) SetVerified(ctx context.Context, userID uint, verified bool) error {
	p, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	p.IsVerified = verified
	return r.Update(ctx, p)
}

// Delete removes the profile of a user. Deleting a missing profile is not an error.
func (r *Repository) Delete(ctx context.Context, userID uint) error {
	err := sqlite.PerformWrite(r.logger, r.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).Delete(&Profile{}).Error
	})
	r.invalidate(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// UsernameTaken reports whether a profile other than exceptUserID uses username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, exceptUserID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Profile{}).
		Where("username = ? AND user_id <> ?", username, exceptUserID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Search finds public, searchable profiles whose names match the query.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Profile{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var found []Profile
	err := r.db.WithContext(ctx).
		Where(datatypes.JSONQuery("privacy_settings").Equals(true, "searchable")).
		Where(datatypes.JSONQuery("privacy_settings").Equals(string(VisibilityPublic), "profile_visibility")).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern, pattern).
		Order("updated_at DESC").
		Limit(limit).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ReferencedAvatarKeys returns every avatar key still attached to a profile.
func (r *Repository) ReferencedAvatarKeys(ctx context.Context) (map[string]bool, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&Profile{}).
		Where("avatar_key <> ''").
		Pluck("avatar_key", &keys).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}

// Purge empties every profile cache.
func (r *Repository) Purge(ctx context.Context) {
	r.cache.Clear(ctx)
	r.byUsername.Clear()
}

func (r *Repository) invalidate(ctx context.Context, userID uint) {
	r.cache.Delete(ctx, userID)
	r.byUsername.Clear()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SetSocialLinks replaces the social links.
func (p *Profile) SetSocialLinks(links SocialLinks) {
	p.SocialLinks = datatypes.NewJSONType(links)
}

// SetCustomFields replaces the custom fields, defaulting empty visibilities to public.
func (p *Profile) SetCustomFields(fields []CustomField) {
	out := make([]CustomField, 0, len(fields))
	for _, f := range fields {
		f.Key = strings.TrimSpace(f.Key)
		f.Value = strings.TrimSpace(f.Value)
		if f.Visibility == "" {
			f.Visibility = VisibilityPublic
		}
		out = append(out, f)
	}
	p.CustomFields = datatypes.NewJSONType(out)
}

// SetPrivacySettings replaces the privacy settings.
func (p *Profile) SetPrivacySettings(s PrivacySettings) {
	p.PrivacySettings = datatypes.NewJSONType(s.withDefaults())
}

// SetProfessional replaces the professional details.
func (p *Profile) SetProfessional(prof Professional) {
	skills := make([]string, 0, len(prof.Skills))
	for _, s := range prof.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	prof.Skills = skills
	prof.JobTitle = strings.TrimSpace(prof.JobTitle)
	prof.Company = strings.TrimSpace(prof.Company)
	prof.Industry = strings.TrimSpace(prof.Industry)
	p.Professional = datatypes.NewJSONType(prof)
}
