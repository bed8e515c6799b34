package profiles

// CompleteThreshold is the completeness percentage at which a profile counts as complete.
const CompleteThreshold = 80

type completenessCheck struct {
	weight int
	filled func(p *Profile) bool
}

var completenessChecks = []completenessCheck{
	{15, func(p *Profile) bool { return p.FirstName != "" }},
	{10, func(p *Profile) bool { return p.LastName != "" }},
	{10, func(p *Profile) bool { return p.Username != nil && *p.Username != "" }},
	{15, func(p *Profile) bool { return p.AvatarURL != "" }},
	{15, func(p *Profile) bool { return p.Bio != "" }},
	{10, func(p *Profile) bool { return p.Email != "" }},
	{5, func(p *Profile) bool { return p.Phone != "" }},
	{5, func(p *Profile) bool { return p.Location != "" || p.Country != "" }},
	{10, func(p *Profile) bool { return !p.Professional.Data().IsZero() }},
	{5, func(p *Profile) bool { return p.SocialLinks.Data().Count() > 0 || p.Website != "" }},
}

// Completeness returns how much of the profile is filled in, from 0 to 100.
func Completeness(p *Profile) int {
	total, filled := 0, 0
	for _, c := range completenessChecks {
		total += c.weight
		if c.filled(p) {
			filled += c.weight
		}
	}
	if total == 0 {
		return 0
	}
	return filled * 100 / total
}

// RefreshCompleteness updates IsComplete from the current field values.
func RefreshCompleteness(p *Profile) {
	p.IsComplete = Completeness(p) >= CompleteThreshold
}
