package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"profilehub/internal/audit"
	"profilehub/internal/connections"
	"profilehub/internal/profiles"
)

// UpdateInput is a partial profile update. Nil fields are left unchanged.
type UpdateInput struct {
	Username        *string                   `json:"username"`
	FirstName       *string                   `json:"first_name"`
	LastName        *string                   `json:"last_name"`
	DisplayName     *string                   `json:"display_name"`
	Email           *string                   `json:"email"`
	Phone           *string                   `json:"phone"`
	Location        *string                   `json:"location"`
	Country         *string                   `json:"country"`
	Bio             *string                   `json:"bio"`
	Website         *string                   `json:"website"`
	Professional    *profiles.Professional    `json:"professional"`
	SocialLinks     *profiles.SocialLinks     `json:"social_links"`
	CustomFields    *[]profiles.CustomField   `json:"custom_fields"`
	PrivacySettings *profiles.PrivacySettings `json:"privacy_settings"`
	// ExpectedVersion rejects the update when the stored profile moved on. Zero skips the check.
	ExpectedVersion int `json:"version"`
}

// apply copies the set fields onto p and returns their names.
func (in UpdateInput) apply(p *profiles.Profile) []string {
	var changed []string
	set := func(name string, dst *string, src *string) {
		if src != nil {
			*dst = *src
			changed = append(changed, name)
		}
	}
	if in.Username != nil {
		u := *in.Username
		p.Username = &u
		changed = append(changed, "username")
	}
	set("first_name", &p.FirstName, in.FirstName)
	set("last_name", &p.LastName, in.LastName)
	set("display_name", &p.DisplayName, in.DisplayName)
	set("email", &p.Email, in.Email)
	set("phone", &p.Phone, in.Phone)
	set("location", &p.Location, in.Location)
	set("country", &p.Country, in.Country)
	set("bio", &p.Bio, in.Bio)
	set("website", &p.Website, in.Website)
	if in.Professional != nil {
		p.SetProfessional(*in.Professional)
		changed = append(changed, "professional")
	}
	if in.SocialLinks != nil {
		p.SetSocialLinks(trimLinks(*in.SocialLinks))
		changed = append(changed, "social_links")
	}
	if in.CustomFields != nil {
		p.SetCustomFields(*in.CustomFields)
		changed = append(changed, "custom_fields")
	}
	if in.PrivacySettings != nil {
		p.SetPrivacySettings(*in.PrivacySettings)
		changed = append(changed, "privacy_settings")
	}
	return changed
}

func trimLinks(l profiles.SocialLinks) profiles.SocialLinks {
	return profiles.SocialLinks{
		Twitter:   strings.TrimSpace(l.Twitter),
		LinkedIn:  strings.TrimSpace(l.LinkedIn),
		GitHub:    strings.TrimSpace(l.GitHub),
		Instagram: strings.TrimSpace(l.Instagram),
		Facebook:  strings.TrimSpace(l.Facebook),
		YouTube:   strings.TrimSpace(l.YouTube),
	}
}

func (s *Service) relation(ctx context.Context, viewerID, ownerID uint) (profiles.Relation, error) {
	if viewerID != 0 && viewerID == ownerID {
		return profiles.RelationSelf, nil
	}
	friends, err := connections.AreFriends(s.db.WithContext(ctx), viewerID, ownerID)
	if err != nil {
		return profiles.RelationStranger, err
	}
	if friends {
		return profiles.RelationFriend, nil
	}
	return profiles.RelationStranger, nil
}

func (s *Service) viewFor(ctx context.Context, viewerID uint, p *profiles.Profile) (*profiles.Profile, error) {
	rel, err := s.relation(ctx, viewerID, p.UserID)
	if err != nil {
		return nil, err
	}
	if rel != profiles.RelationSelf {
		s.record(ctx, p.UserID, audit.ActionProfileViewed, map[string]any{"viewer_id": viewerID})
	}
	return profiles.View(p, rel), nil
}

// GetProfile returns userID's profile as viewerID may see it. A user reading
// their own profile gets it created on first access.
func (s *Service) GetProfile(ctx context.Context, viewerID, userID uint) (*profiles.Profile, error) {
	s.logger.Debug("Fetching profile", slog.Uint64("viewerID", uint64(viewerID)), slog.Uint64("userID", uint64(userID)))

	var (
		p   *profiles.Profile
		err error
	)
	if viewerID == userID {
		p, err = s.ownProfile(ctx, userID)
	} else {
		p, err = s.repo.FindByUserID(ctx, userID)
	}
	if err != nil {
		s.logOutcome("get_profile", userID, err)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.viewFor(ctx, viewerID, p)
}

// GetProfileByUsername looks a profile up by username.
func (s *Service) GetProfileByUsername(ctx context.Context, viewerID uint, username string) (*profiles.Profile, error) {
	p, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		s.logOutcome("get_profile_by_username", viewerID, err, slog.String("username", username))
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.viewFor(ctx, viewerID, p)
}

// save normalizes, validates and persists p.
func (s *Service) save(ctx context.Context, p *profiles.Profile) error {
	profiles.Normalize(p)
	if err := profiles.Validate(p); err != nil {
		return err
	}
	if err := profiles.ValidatePrivacySettings(p.PrivacySettings.Data()); err != nil {
		return err
	}
	profiles.RefreshCompleteness(p)
	return s.repo.Update(ctx, p)
}

// UpdateProfile applies a partial update to the caller's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, in UpdateInput) (*profiles.Profile, error) {
	s.logger.Debug("Updating profile", slog.Uint64("userID", uint64(userID)))

	p, err := s.ownProfile(ctx, userID)
	if err != nil {
		s.logOutcome("update_profile", userID, err)
		return nil, err
	}
	if in.ExpectedVersion != 0 && in.ExpectedVersion != p.Version {
		s.logOutcome("update_profile", userID, profiles.ErrVersionConflict,
			slog.Int("expected", in.ExpectedVersion), slog.Int("current", p.Version))
		return nil, profiles.ErrVersionConflict
	}

	changed := in.apply(p)
	if len(changed) == 0 {
		return p, nil
	}
	if err := s.save(ctx, p); err != nil {
		s.logOutcome("update_profile", userID, err)
		return nil, err
	}

	s.record(ctx, userID, audit.ActionProfileUpdated, map[string]any{"fields": changed, "version": p.Version})
	s.logOutcome("update_profile", userID, nil, slog.Int("version", p.Version), slog.Any("fields", changed))
	return p, nil
}

// UpdatePrivacySettings replaces the caller's privacy settings.
func (s *Service) UpdatePrivacySettings(ctx context.Context, userID uint, settings profiles.PrivacySettings) (*profiles.Profile, error) {
	if err := profiles.ValidatePrivacySettings(settings); err != nil {
		s.logOutcome("update_privacy", userID, err)
		return nil, err
	}
	p, err := s.ownProfile(ctx, userID)
	if err != nil {
		s.logOutcome("update_privacy", userID, err)
		return nil, err
	}
	p.SetPrivacySettings(settings)
	if err := s.save(ctx, p); err != nil {
		s.logOutcome("update_privacy", userID, err)
		return nil, err
	}

	privacy := p.Privacy()
	s.record(ctx, userID, audit.ActionPrivacyUpdated, map[string]any{
		"profile_visibility": privacy.ProfileVisibility,
		"searchable":         privacy.Searchable,
	})
	s.logOutcome("update_privacy", userID, nil)
	return p, nil
}

// UpdateSocialLinks replaces the caller's social links.
func (s *Service) UpdateSocialLinks(ctx context.Context, userID uint, links profiles.SocialLinks) (*profiles.Profile, error) {
	p, err := s.ownProfile(ctx, userID)
	if err != nil {
		s.logOutcome("update_social_links", userID, err)
		return nil, err
	}
	p.SetSocialLinks(trimLinks(links))
	if err := s.save(ctx, p); err != nil {
		s.logOutcome("update_social_links", userID, err)
		return nil, err
	}

	s.record(ctx, userID, audit.ActionSocialLinksUpdated, map[string]any{"count": p.SocialLinks.Data().Count()})
	s.logOutcome("update_social_links", userID, nil)
	return p, nil
}

// SetCustomFields replaces the caller's whole custom field list.
func (s *Service) SetCustomFields(ctx context.Context, userID uint, fields []profiles.CustomField) (*profiles.Profile, error) {
	p, err := s.ownProfile(ctx, userID)
	if err != nil {
		s.logOutcome("set_custom_fields", userID, err)
		return nil, err
	}
	p.SetCustomFields(fields)
	if err := s.save(ctx, p); err != nil {
		s.logOutcome("set_custom_fields", userID, err)
		return nil, err
	}

	s.record(ctx, userID, audit.ActionCustomFieldsUpdated, map[string]any{"count": len(fields)})
	s.logOutcome("set_custom_fields", userID, nil, slog.Int("count", len(fields)))
	return p, nil
}

// SearchProfiles finds public, searchable profiles, filtered for the viewer.
func (s *Service) SearchProfiles(ctx context.Context, viewerID uint, query string, limit int) ([]*profiles.Profile, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return nil, invalidInput("search query must be at least 2 characters")
	}
	found, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		s.logOutcome("search_profiles", viewerID, err, slog.String("query", query))
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}

	out := make([]*profiles.Profile, 0, len(found))
	for i := range found {
		rel, err := s.relation(ctx, viewerID, found[i].UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, profiles.View(&found[i], rel))
	}
	s.logger.Debug("Profile search", slog.String("query", query), slog.Int("results", len(out)))
	return out, nil
}
