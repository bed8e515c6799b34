// Package usecases implements the user-facing profile operations on top of
// the repository, avatar store and audit trail.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"profilehub/internal/audit"
	"profilehub/internal/avatars"
	"profilehub/internal/pkg/async"
	"profilehub/internal/pkg/geoip"
	"profilehub/internal/profiles"
	"profilehub/internal/users"
)

// Avatar processing defaults used when Options.Avatar leaves a value unset.
const (
	DefaultAvatarMaxBytes = 5 << 20
	DefaultAvatarEdge     = 512
	DefaultAvatarQuality  = 85
)

// Options bundles the collaborators of a Service.
type Options struct {
	DB         *gorm.DB
	Repository *profiles.Repository
	Store      avatars.Store
	Recorder   *audit.Recorder
	Geo        *geoip.Locator
	Logger     *slog.Logger
	Avatar     avatars.Options
	// ExportWorkers bounds the goroutines gathering a data export.
	ExportWorkers int
}

// Service runs one user-facing operation per method. Every method logs its
// outcome and returns plain errors for the transport layer to map.
type Service struct {
	db       *gorm.DB
	repo     *profiles.Repository
	store    avatars.Store
	recorder *audit.Recorder
	geo      *geoip.Locator
	logger   *slog.Logger
	avatar   avatars.Options
	pool     *async.Pool
}

func NewService(opts Options) *Service {
	workers := opts.ExportWorkers
	if workers <= 0 {
		workers = 4
	}
	avatar := opts.Avatar
	if avatar.MaxBytes <= 0 {
		avatar.MaxBytes = DefaultAvatarMaxBytes
	}
	if avatar.Edge <= 0 {
		avatar.Edge = DefaultAvatarEdge
	}
	if avatar.Quality <= 0 {
		avatar.Quality = DefaultAvatarQuality
	}
	return &Service{
		db:       opts.DB,
		repo:     opts.Repository,
		store:    opts.Store,
		recorder: opts.Recorder,
		geo:      opts.Geo,
		logger:   opts.Logger,
		avatar:   avatar,
		pool:     async.NewPool(workers),
	}
}

// Repository exposes the profile repository for maintenance tasks.
func (s *Service) Repository() *profiles.Repository {
	return s.repo
}

// DB returns the connection the service writes through.
func (s *Service) DB() *gorm.DB {
	return s.db
}

// RequestInfo describes the caller for the audit trail.
type RequestInfo struct {
	IP        string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo attaches caller details to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func requestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

func (s *Service) record(ctx context.Context, userID uint, action audit.Action, details map[string]any) {
	info := requestInfoFrom(ctx)
	s.recorder.Record(ctx, audit.Entry{
		UserID:    userID,
		Action:    action,
		UserAgent: info.UserAgent,
		IP:        info.IP,
		Details:   details,
	})
}

// logOutcome logs the result of an operation at a level matching the error kind.
func (s *Service) logOutcome(op string, userID uint, err error, attrs ...any) {
	attrs = append([]any{slog.String("op", op), slog.Uint64("userID", uint64(userID))}, attrs...)
	switch {
	case err == nil:
		s.logger.Info("Operation succeeded", attrs...)
	case IsClientError(err):
		s.logger.Info("Operation rejected", append(attrs, slog.String("reason", err.Error()))...)
	default:
		s.logger.Error("Operation failed", append(attrs, slog.Any("error", err))...)
	}
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	var verrs profiles.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, profiles.ErrVersionConflict),
		errors.Is(err, profiles.ErrUsernameTaken),
		errors.Is(err, avatars.ErrUnsupportedImage),
		errors.Is(err, avatars.ErrTooLarge),
		errors.Is(err, avatars.ErrEmptyImage),
		errors.Is(err, users.ErrUserExists),
		errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, ErrInvalidInput):
		return true
	}
	return false
}

// ErrInvalidInput wraps request problems that are not field validation failures.
var ErrInvalidInput = errors.New("invalid input")

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// ownProfile loads the caller's profile, creating it on first access.
func (s *Service) ownProfile(ctx context.Context, userID uint) (*profiles.Profile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := users.FindByID(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	country := s.geo.CountryCode(requestInfoFrom(ctx).IP)
	p, created, err := s.repo.EnsureForUser(ctx, userID, user.Email, country)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("Profile created on first access",
			slog.Uint64("userID", uint64(userID)),
			slog.String("country", country))
	}
	return p, nil
}

// GeoIPEnabled reports whether new profiles get their country from the request IP.
func (s *Service) GeoIPEnabled() bool {
	return s.geo.Enabled()
}
