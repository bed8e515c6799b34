package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"log/slog"

	"profilehub/internal/profiles"
	"profilehub/internal/usecases"
	"profilehub/internal/users"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "demo-password"

// Seeder creates demo accounts with filled-in profiles and a random
// friendship graph. It goes through the use cases so seeded data passes
// the same validation as real traffic.
type Seeder struct {
	Service     *usecases.Service
	Logger      *slog.Logger
	UserCount   int
	FriendsEach int
}

// NewSeeder creates a new seeder instance
func NewSeeder(svc *usecases.Service, logger *slog.Logger, userCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		Service:     svc,
		Logger:      logger,
		UserCount:   userCount,
		FriendsEach: 3,
	}
}

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Margaret", "Ken", "Barbara", "Dennis", "Frances", "Alan", "Radia", "Edsger", "Katherine"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Hamilton", "Thompson", "Liskov", "Ritchie", "Allen", "Turing", "Perlman", "Dijkstra", "Johnson"}
	locations  = []struct{ city, country string }{
		{"Berlin", "DE"}, {"Lisbon", "PT"}, {"Madrid", "ES"}, {"Toronto", "CA"},
		{"Austin", "US"}, {"Tokyo", "JP"}, {"Melbourne", "AU"}, {"Dublin", "IE"},
	}
	jobs = []profiles.Professional{
		{JobTitle: "Backend Engineer", Company: "Acme", Industry: "Software", Skills: []string{"go", "sql", "kubernetes"}},
		{JobTitle: "Product Designer", Company: "Globex", Industry: "Design", Skills: []string{"figma", "research"}},
		{JobTitle: "Data Scientist", Company: "Initech", Industry: "Analytics", Skills: []string{"python", "statistics"}},
		{JobTitle: "Site Reliability Engineer", Company: "Umbrella", Industry: "Infrastructure", Skills: []string{"linux", "terraform", "go"}},
		{JobTitle: "Engineering Manager", Company: "Hooli", Industry: "Software", Skills: []string{"hiring", "planning"}},
	}
	bios = []string{
		"Coffee first, code second.",
		"Building things that last.",
		"Open source contributor and occasional speaker.",
		"Writes about distributed systems on weekends.",
		"",
	}
	visibilities = []profiles.Visibility{profiles.VisibilityPublic, profiles.VisibilityFriends, profiles.VisibilityPrivate}
)

// Run seeds UserCount accounts and connects each to FriendsEach others.
func (s *Seeder) Run(ctx context.Context) error {
	if s.UserCount <= 0 {
		return fmt.Errorf("user count must be positive, got %d", s.UserCount)
	}
	s.Logger.Info("Seeding demo profiles", slog.Int("users", s.UserCount))

	ids := make([]uint, 0, s.UserCount)
	for i := 1; i <= s.UserCount; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id, err := s.seedUser(ctx, i)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	connected := 0
	for _, id := range ids {
		for j := 0; j < s.FriendsEach && len(ids) > 1; j++ {
			friend := ids[rand.IntN(len(ids))]
			if friend == id {
				continue
			}
			// The second request meets the first, which is how demo users accept each other.
			if _, err := s.Service.Connect(ctx, id, friend); err != nil {
				return fmt.Errorf("connect %d and %d: %w", id, friend, err)
			}
			if _, err := s.Service.Connect(ctx, friend, id); err != nil {
				return fmt.Errorf("connect %d and %d: %w", friend, id, err)
			}
			connected++
		}
	}

	s.Logger.Info("Seeding complete",
		slog.Int("users", len(ids)),
		slog.Int("connections", connected))
	return nil
}

func (s *Seeder) seedUser(ctx context.Context, n int) (uint, error) {
	email := fmt.Sprintf("demo%03d@example.com", n)

	user, _, err := s.Service.Register(ctx, email, DemoPassword)
	if errors.Is(err, users.ErrUserExists) {
		user, err = users.FindByEmail(s.Service.DB(), email)
		if err != nil {
			return 0, fmt.Errorf("lookup %s: %w", email, err)
		}
		s.Logger.Debug("Demo user already exists", slog.String("email", email))
		return user.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", email, err)
	}

	first := firstNames[rand.IntN(len(firstNames))]
	last := lastNames[rand.IntN(len(lastNames))]
	username := fmt.Sprintf("%s.%s%d", strings.ToLower(first), strings.ToLower(last), n)
	place := locations[rand.IntN(len(locations))]
	job := jobs[rand.IntN(len(jobs))]
	job.YearsOfExperience = 1 + rand.IntN(20)
	bio := bios[rand.IntN(len(bios))]
	links := profiles.SocialLinks{GitHub: "https://github.com/" + strings.ToLower(first+last)}
	fields := []profiles.CustomField{
		{Key: "pronouns", Value: "they/them", Visibility: profiles.VisibilityPublic},
		{Key: "timezone", Value: place.city, Visibility: visibilities[rand.IntN(len(visibilities))]},
	}
	privacy := profiles.DefaultPrivacySettings()
	privacy.ProfileVisibility = visibilities[rand.IntN(len(visibilities))]

	_, err = s.Service.UpdateProfile(ctx, user.ID, usecases.UpdateInput{
		Username:        &username,
		FirstName:       &first,
		LastName:        &last,
		Location:        &place.city,
		Country:         &place.country,
		Bio:             &bio,
		Professional:    &job,
		SocialLinks:     &links,
		CustomFields:    &fields,
		PrivacySettings: &privacy,
	})
	if err != nil {
		return 0, fmt.Errorf("fill profile of %s: %w", email, err)
	}
	return user.ID, nil
}
