package profiles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/internal/profiles"
)

func sharedProfile() *profiles.Profile {
	p := validProfile()
	p.Location = "Madrid"
	p.AvatarKey = "1/abc.jpg"
	p.AvatarURL = "/avatars/1/abc.jpg"
	p.SetProfessional(profiles.Professional{JobTitle: "Engineer", Company: "Acme"})
	p.SetSocialLinks(profiles.SocialLinks{GitHub: "https://github.com/jane"})
	p.SetCustomFields([]profiles.CustomField{
		{Key: "pronouns", Value: "she/her", Visibility: profiles.VisibilityPublic},
		{Key: "shoe size", Value: "38", Visibility: profiles.VisibilityFriends},
		{Key: "diary", Value: "secret", Visibility: profiles.VisibilityPrivate},
	})
	return p
}

func customKeys(p *profiles.Profile) []string {
	keys := []string{}
	for _, f := range p.Fields() {
		keys = append(keys, f.Key)
	}
	return keys
}

func TestView(t *testing.T) {
	t.Run("self sees everything", func(t *testing.T) {
		p := sharedProfile()
		v := profiles.View(p, profiles.RelationSelf)

		assert.Equal(t, p.Email, v.Email)
		assert.Equal(t, p.Phone, v.Phone)
		assert.Equal(t, p.AvatarKey, v.AvatarKey)
		assert.Equal(t, p.Version, v.Version)
		assert.Len(t, v.Fields(), 3)
	})

	t.Run("strangers see public fields only", func(t *testing.T) {
		v := profiles.View(sharedProfile(), profiles.RelationStranger)

		assert.Empty(t, v.Email)
		assert.Empty(t, v.Phone)
		assert.Empty(t, v.AvatarKey)
		assert.Equal(t, "Madrid", v.Location)
		assert.Equal(t, "Engineer", v.Professional.Data().JobTitle)
		assert.Equal(t, []string{"pronouns"}, customKeys(v))
		assert.Zero(t, v.Version)
	})

	t.Run("friends see friends fields", func(t *testing.T) {
		p := sharedProfile()
		s := p.Privacy()
		s.Phone = profiles.VisibilityFriends
		p.SetPrivacySettings(s)

		v := profiles.View(p, profiles.RelationFriend)

		assert.Empty(t, v.Email)
		assert.Equal(t, p.Phone, v.Phone)
		assert.Equal(t, []string{"pronouns", "shoe size"}, customKeys(v))
	})

	t.Run("private profile shows identity only", func(t *testing.T) {
		p := sharedProfile()
		s := p.Privacy()
		s.ProfileVisibility = profiles.VisibilityPrivate
		p.SetPrivacySettings(s)

		for _, rel := range []profiles.Relation{profiles.RelationStranger, profiles.RelationFriend} {
			v := profiles.View(p, rel)
			assert.Equal(t, p.UsernameOrEmpty(), v.UsernameOrEmpty())
			assert.Equal(t, "Jane", v.FirstName)
			assert.Equal(t, p.AvatarURL, v.AvatarURL)
			assert.Empty(t, v.Bio)
			assert.Empty(t, v.Location)
			assert.Empty(t, v.Website)
			assert.Empty(t, v.Fields())
			assert.Equal(t, profiles.VisibilityPrivate, v.Privacy().ProfileVisibility)
		}
	})

	t.Run("friends only profile is open to friends", func(t *testing.T) {
		p := sharedProfile()
		s := p.Privacy()
		s.ProfileVisibility = profiles.VisibilityFriends
		p.SetPrivacySettings(s)

		assert.Empty(t, profiles.View(p, profiles.RelationStranger).Bio)
		assert.Equal(t, p.Bio, profiles.View(p, profiles.RelationFriend).Bio)
	})

	t.Run("hidden social links also hide website", func(t *testing.T) {
		p := sharedProfile()
		s := p.Privacy()
		s.SocialLinks = profiles.VisibilityPrivate
		p.SetPrivacySettings(s)

		v := profiles.View(p, profiles.RelationStranger)
		assert.Empty(t, v.Website)
		assert.Zero(t, v.SocialLinks.Data().Count())
	})

	t.Run("does not mutate the source", func(t *testing.T) {
		p := sharedProfile()
		_ = profiles.View(p, profiles.RelationStranger)

		require.Len(t, p.Fields(), 3)
		assert.Equal(t, "jane@example.com", p.Email)
	})
}

func TestCompleteness(t *testing.T) {
	t.Run("empty profile scores only the email", func(t *testing.T) {
		p := profiles.NewProfile(1, "jane@example.com")
		assert.Equal(t, 10, profiles.Completeness(p))

		profiles.RefreshCompleteness(p)
		assert.False(t, p.IsComplete)
	})

	t.Run("fully filled profile scores 100", func(t *testing.T) {
		p := sharedProfile()
		assert.Equal(t, 100, profiles.Completeness(p))

		profiles.RefreshCompleteness(p)
		assert.True(t, p.IsComplete)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		p := sharedProfile()
		p.AvatarURL = ""
		p.Phone = ""
		// 100 - 15 - 5
		assert.Equal(t, profiles.CompleteThreshold, profiles.Completeness(p))

		profiles.RefreshCompleteness(p)
		assert.True(t, p.IsComplete)
	})
}

func TestDefaultPrivacySettings(t *testing.T) {
	s := profiles.DefaultPrivacySettings()

	assert.Equal(t, profiles.VisibilityPublic, s.ProfileVisibility)
	assert.Equal(t, profiles.VisibilityPrivate, s.Email)
	assert.Equal(t, profiles.VisibilityPrivate, s.Phone)
	assert.Equal(t, profiles.VisibilityPublic, s.Bio)
	assert.True(t, s.Searchable)
}

func TestPrivacyFillsMissingValues(t *testing.T) {
	p := profiles.NewProfile(1, "")
	p.SetPrivacySettings(profiles.PrivacySettings{ProfileVisibility: profiles.VisibilityFriends})

	s := p.Privacy()
	assert.Equal(t, profiles.VisibilityFriends, s.ProfileVisibility)
	assert.Equal(t, profiles.VisibilityPrivate, s.Email)
	assert.Equal(t, profiles.VisibilityPublic, s.Location)
}
