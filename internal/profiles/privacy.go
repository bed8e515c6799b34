package profiles

import (
	"gorm.io/datatypes"
)

// Relation describes how a viewer relates to the profile owner.
type Relation int

const (
	RelationStranger Relation = iota
	RelationFriend
	RelationSelf
)

// allows reports whether a viewer with this relation may see a field with visibility v.
func (r Relation) allows(v Visibility) bool {
	switch r {
	case RelationSelf:
		return true
	case RelationFriend:
		return v == VisibilityPublic || v == VisibilityFriends
	default:
		return v == VisibilityPublic
	}
}

// View returns a copy of p with every field the viewer may not see blanked out.
// A profile hidden as a whole keeps only its identity and avatar.
func View(p *Profile, rel Relation) *Profile {
	out := p.Clone()
	if rel == RelationSelf {
		return out
	}

	settings := p.Privacy()
	out.AvatarKey = ""

	if !rel.allows(settings.ProfileVisibility) {
		return &Profile{
			ID:           out.ID,
			UserID:       out.UserID,
			Username:     out.Username,
			DisplayName:  out.DisplayName,
			FirstName:    out.FirstName,
			LastName:     out.LastName,
			AvatarURL:    out.AvatarURL,
			IsVerified:   out.IsVerified,
			CustomFields: datatypes.NewJSONType([]CustomField{}),
			PrivacySettings: datatypes.NewJSONType(PrivacySettings{
				ProfileVisibility: settings.ProfileVisibility,
			}),
		}
	}

	if !rel.allows(settings.Email) {
		out.Email = ""
	}
	if !rel.allows(settings.Phone) {
		out.Phone = ""
	}
	if !rel.allows(settings.Location) {
		out.Location = ""
		out.Country = ""
	}
	if !rel.allows(settings.Bio) {
		out.Bio = ""
	}
	if !rel.allows(settings.Professional) {
		out.Professional = datatypes.NewJSONType(Professional{})
	}
	if !rel.allows(settings.SocialLinks) {
		out.SocialLinks = datatypes.NewJSONType(SocialLinks{})
		out.Website = ""
	}

	visible := []CustomField{}
	if rel.allows(settings.CustomFields) {
		for _, f := range p.Fields() {
			v := f.Visibility
			if v == "" {
				v = VisibilityPublic
			}
			if rel.allows(v) {
				visible = append(visible, f)
			}
		}
	}
	out.CustomFields = datatypes.NewJSONType(visible)

	// Other users only learn whether the profile is public or not.
	out.PrivacySettings = datatypes.NewJSONType(PrivacySettings{
		ProfileVisibility: settings.ProfileVisibility,
		Searchable:        settings.Searchable,
		ShowOnlineStatus:  settings.ShowOnlineStatus,
	})
	out.Version = 0
	return out
}
