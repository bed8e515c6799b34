package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"

	"profilehub/internal/audit"
	"profilehub/internal/connections"
	"profilehub/internal/pkg/async"
	"profilehub/internal/profiles"
	"profilehub/internal/users"
)

// Register creates an account and its empty profile.
func (s *Service) Register(ctx context.Context, email, password string) (*users.User, *profiles.Profile, error) {
	if err := checkCredentials(email, password); err != nil {
		s.logOutcome("register", 0, err)
		return nil, nil, err
	}
	user, err := users.CreateUser(s.db.WithContext(ctx), email, password)
	if err != nil {
		s.logOutcome("register", 0, err, slog.String("email", users.NormalizeEmail(email)))
		return nil, nil, err
	}

	p, err := s.ownProfile(ctx, user.ID)
	if err != nil {
		s.logOutcome("register", user.ID, err)
		return nil, nil, err
	}
	s.logOutcome("register", user.ID, nil)
	return user, p, nil
}

func checkCredentials(email, password string) error {
	email = users.NormalizeEmail(email)
	switch {
	case email == "":
		return invalidInput("email cannot be empty")
	case !strings.Contains(email, "@"):
		return invalidInput("email must be a valid address")
	case len(password) < users.MinPasswordLength:
		return invalidInput(fmt.Sprintf("password must be at least %d characters", users.MinPasswordLength))
	}
	return nil
}

// Login checks the credentials and makes sure the profile exists.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, error) {
	user, err := users.Authenticate(s.db.WithContext(ctx), email, password)
	if err != nil {
		s.logOutcome("login", 0, err, slog.String("email", users.NormalizeEmail(email)))
		return nil, err
	}
	if _, err := s.ownProfile(ctx, user.ID); err != nil {
		s.logOutcome("login", user.ID, err)
		return nil, err
	}
	s.logOutcome("login", user.ID, nil)
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	db := s.db.WithContext(ctx)
	user, err := users.FindByID(db, userID)
	if err != nil {
		s.logOutcome("change_password", userID, err)
		return err
	}
	if _, err := users.Authenticate(db, user.Email, current); err != nil {
		s.logOutcome("change_password", userID, err)
		return err
	}
	if len(next) < users.MinPasswordLength {
		err := invalidInput(fmt.Sprintf("password must be at least %d characters", users.MinPasswordLength))
		s.logOutcome("change_password", userID, err)
		return err
	}
	if err := users.ChangePassword(db, user.Email, next); err != nil {
		s.logOutcome("change_password", userID, err)
		return err
	}
	s.logOutcome("change_password", userID, nil)
	return nil
}

// DeleteAccount removes the user, their profile, avatar and connections.
// The audit trail is kept until retention cleanup removes it.
func (s *Service) DeleteAccount(ctx context.Context, userID uint) error {
	db := s.db.WithContext(ctx)
	if _, err := users.FindByID(db, userID); err != nil {
		s.logOutcome("delete_account", userID, err)
		return err
	}

	var avatarKey string
	p, err := s.repo.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		avatarKey = p.AvatarKey
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.logOutcome("delete_account", userID, err)
		return err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"connections", func() error { return connections.RemoveAll(db, userID) }},
		{"profile", func() error { return s.repo.Delete(ctx, userID) }},
		{"user", func() error { return users.DeleteUser(db, userID) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			err = fmt.Errorf("failed to delete %s: %w", step.name, err)
			s.logOutcome("delete_account", userID, err)
			return err
		}
	}
	// Only remove the file once no row references it.
	if avatarKey != "" {
		s.removeAvatarFile(ctx, userID, avatarKey)
	}

	s.record(ctx, userID, audit.ActionAccountDeleted, nil)
	s.logOutcome("delete_account", userID, nil)
	return nil
}

// Export is everything stored about a user.
type Export struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Account     *users.User       `json:"account"`
	Profile     *profiles.Profile `json:"profile"`
	CountryName string            `json:"country_name,omitempty"`
	Friends     []uint            `json:"friends"`
	AuditTrail  []audit.Event     `json:"audit_trail"`
}

// ExportData gathers the user's records concurrently.
func (s *Service) ExportData(ctx context.Context, userID uint) (*Export, error) {
	db := s.db.WithContext(ctx)
	tasks := []async.Task{
		{Name: "account", Execute: func(ctx context.Context) (interface{}, error) {
			return users.FindByID(db, userID)
		}},
		{Name: "profile", Execute: func(ctx context.Context) (interface{}, error) {
			return s.ownProfile(ctx, userID)
		}},
		{Name: "friends", Execute: func(ctx context.Context) (interface{}, error) {
			return connections.ListFriends(db, userID)
		}},
		{Name: "audit", Execute: func(ctx context.Context) (interface{}, error) {
			return audit.ListForUser(db, userID, audit.MaxListLimit)
		}},
	}

	results := s.pool.Execute(ctx, tasks)
	for _, task := range tasks {
		if err := results[task.Name].Err; err != nil {
			err = fmt.Errorf("failed to export %s: %w", task.Name, err)
			s.logOutcome("export_data", userID, err)
			return nil, err
		}
	}

	export := &Export{
		GeneratedAt: time.Now().UTC(),
		Account:     results["account"].Data.(*users.User),
		Profile:     results["profile"].Data.(*profiles.Profile),
		Friends:     results["friends"].Data.([]uint),
		AuditTrail:  results["audit"].Data.([]audit.Event),
	}
	if name, ok := profiles.CountryName(export.Profile.Country); ok {
		export.CountryName = name
	}

	s.record(ctx, userID, audit.ActionDataExported, nil)
	s.logOutcome("export_data", userID, nil, slog.Int("auditEvents", len(export.AuditTrail)))
	return export, nil
}

// AuditTrail lists the user's most recent audit events.
func (s *Service) AuditTrail(ctx context.Context, userID uint, limit int) ([]audit.Event, error) {
	events, err := audit.ListForUser(s.db.WithContext(ctx), userID, limit)
	if err != nil {
		s.logOutcome("audit_trail", userID, err)
		return nil, err
	}
	return events, nil
}

// PurgeCaches drops every cached profile and the persistent cache table.
// It returns the number of cache rows removed.
func (s *Service) PurgeCaches(ctx context.Context) (int64, error) {
	s.repo.Purge(ctx)
	rows, err := cache.PurgeAllCaches(s.db.WithContext(ctx))
	if err != nil {
		s.logger.Error("Failed to purge caches", slog.Any("error", err))
		return 0, err
	}
	s.logger.Info("Caches purged", slog.Int64("rows", rows))
	return rows, nil
}
