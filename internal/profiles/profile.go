package profiles

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrProfileNotFound is returned when a profile lookup fails.
var ErrProfileNotFound = gorm.ErrRecordNotFound

// ErrVersionConflict is returned when an update was prepared against a stale version.
var ErrVersionConflict = errors.New("profile was modified by another request")

// Visibility controls who may see a profile field.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the known visibility levels.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	}
	return false
}

// Professional is the work-related part of a profile.
type Professional struct {
	JobTitle          string   `json:"job_title"`
	Company           string   `json:"company"`
	Industry          string   `json:"industry"`
	YearsOfExperience int      `json:"years_of_experience"`
	Skills            []string `json:"skills"`
}

// IsZero reports whether no professional field is filled in.
func (p Professional) IsZero() bool {
	return p.JobTitle == "" && p.Company == "" && p.Industry == "" &&
		p.YearsOfExperience == 0 && len(p.Skills) == 0
}

// SocialLinks holds links to the user's external accounts.
type SocialLinks struct {
	Twitter   string `json:"twitter"`
	LinkedIn  string `json:"linkedin"`
	GitHub    string `json:"github"`
	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	YouTube   string `json:"youtube"`
}

// Count returns how many links are set.
func (s SocialLinks) Count() int {
	n := 0
	for _, link := range []string{s.Twitter, s.LinkedIn, s.GitHub, s.Instagram, s.Facebook, s.YouTube} {
		if link != "" {
			n++
		}
	}
	return n
}

// CustomField is a user-defined key/value pair shown on the profile.
type CustomField struct {
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Visibility Visibility `json:"visibility"`
}

// PrivacySettings stores per-field visibility flags.
type PrivacySettings struct {
	ProfileVisibility Visibility `json:"profile_visibility"`
	Email             Visibility `json:"email"`
	Phone             Visibility `json:"phone"`
	Location          Visibility `json:"location"`
	Bio               Visibility `json:"bio"`
	Professional      Visibility `json:"professional"`
	SocialLinks       Visibility `json:"social_links"`
	CustomFields      Visibility `json:"custom_fields"`
	Searchable        bool       `json:"searchable"`
	ShowOnlineStatus  bool       `json:"show_online_status"`
}

// DefaultPrivacySettings returns the settings applied to new profiles.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		ProfileVisibility: VisibilityPublic,
		Email:             VisibilityPrivate,
		Phone:             VisibilityPrivate,
		Location:          VisibilityPublic,
		Bio:               VisibilityPublic,
		Professional:      VisibilityPublic,
		SocialLinks:       VisibilityPublic,
		CustomFields:      VisibilityPublic,
		Searchable:        true,
		ShowOnlineStatus:  true,
	}
}

// withDefaults fills unset visibilities from the defaults, so rows written
// before a field existed still read as a complete settings object.
func (p PrivacySettings) withDefaults() PrivacySettings {
	d := DefaultPrivacySettings()
	fill := func(v *Visibility, def Visibility) {
		if *v == "" {
			*v = def
		}
	}
	fill(&p.ProfileVisibility, d.ProfileVisibility)
	fill(&p.Email, d.Email)
	fill(&p.Phone, d.Phone)
	fill(&p.Location, d.Location)
	fill(&p.Bio, d.Bio)
	fill(&p.Professional, d.Professional)
	fill(&p.SocialLinks, d.SocialLinks)
	fill(&p.CustomFields, d.CustomFields)
	return p
}

// Profile is the editable attribute record of a user.
type Profile struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint    `gorm:"not null;uniqueIndex" json:"user_id"`
	Username    *string `gorm:"uniqueIndex" json:"username"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DisplayName string  `json:"display_name"`

	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Country  string `gorm:"size:2" json:"country"`

	Bio       string `json:"bio"`
	Website   string `json:"website"`
	AvatarURL string `json:"avatar_url"`
	AvatarKey string `json:"-"`

	Professional    datatypes.JSONType[Professional]    `json:"professional"`
	SocialLinks     datatypes.JSONType[SocialLinks]     `json:"social_links"`
	CustomFields    datatypes.JSONType[[]CustomField]   `json:"custom_fields"`
	PrivacySettings datatypes.JSONType[PrivacySettings] `json:"privacy_settings"`

	Version    int       `gorm:"not null;default:1" json:"version"`
	IsComplete bool      `gorm:"not null;default:false" json:"is_complete"`
	IsVerified bool      `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewProfile returns an empty profile for a freshly created user.
func NewProfile(userID uint, email string) *Profile {
	return &Profile{
		UserID:          userID,
		Email:           email,
		CustomFields:    datatypes.NewJSONType([]CustomField{}),
		PrivacySettings: datatypes.NewJSONType(DefaultPrivacySettings()),
		Version:         1,
	}
}

// Privacy returns the stored privacy settings with defaults applied.
func (p *Profile) Privacy() PrivacySettings {
	return p.PrivacySettings.Data().withDefaults()
}

// Fields returns a copy of the custom fields.
func (p *Profile) Fields() []CustomField {
	fields := p.CustomFields.Data()
	out := make([]CustomField, len(fields))
	copy(out, fields)
	return out
}

// UsernameOrEmpty dereferences the optional username.
func (p *Profile) UsernameOrEmpty() string {
	if p.Username == nil {
		return ""
	}
	return *p.Username
}

// Clone returns a deep copy so cached values are never mutated by callers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Username != nil {
		u := *p.Username
		c.Username = &u
	}
	prof := p.Professional.Data()
	prof.Skills = append([]string(nil), prof.Skills...)
	c.Professional = datatypes.NewJSONType(prof)
	c.CustomFields = datatypes.NewJSONType(p.Fields())
	return &c
}
