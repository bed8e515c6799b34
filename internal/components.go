package internal

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"profilehub/internal/audit"
	"profilehub/internal/auth"
	"profilehub/internal/avatars"
	"profilehub/internal/config"
	"profilehub/internal/pkg/geoip"
	"profilehub/internal/profiles"
	"profilehub/internal/usecases"
)

// Components are the long-lived collaborators shared by routes and jobs.
type Components struct {
	Service  *usecases.Service
	Profiles *profiles.Repository
	Avatars  *avatars.FileStore
	Recorder *audit.Recorder
	Geo      *geoip.Locator
	Tokens   *auth.TokenIssuer
}

// BuildComponents wires the service graph from configuration.
func BuildComponents(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Components, error) {
	profileCache, err := profiles.NewCacheFromConfig(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ProfileCacheTTL(), logger)
	if err != nil {
		logger.Warn("Redis profile cache unavailable, falling back to memory",
			slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		profileCache = profiles.NewMemoryCache(cfg.ProfileCacheTTL())
	}
	repo := profiles.NewRepository(db, profileCache, logger)

	store, err := avatars.NewFileStore(cfg.AvatarDirectory(), cfg.AvatarURLPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to open avatar store: %w", err)
	}

	auditFile := audit.FileOptions{}
	if !cfg.IsTest() {
		auditFile = audit.FileOptions{
			Path:       cfg.AuditLogPath(),
			MaxSizeMB:  cfg.GetLogMaxSizeMB(),
			MaxBackups: cfg.GetLogMaxBackups(),
			MaxAgeDays: cfg.AuditRetentionDays,
		}
	}
	recorder := audit.NewRecorder(db, logger, auditFile)
	geo := geoip.Open(cfg.GeoDBPath, logger)

	svc := usecases.NewService(usecases.Options{
		DB:         db,
		Repository: repo,
		Store:      store,
		Recorder:   recorder,
		Geo:        geo,
		Logger:     logger,
		Avatar: avatars.Options{
			MaxBytes: cfg.AvatarMaxBytes,
			Edge:     cfg.AvatarEdgePixels,
			Quality:  cfg.AvatarJPEGQuality,
		},
	})

	return &Components{
		Service:  svc,
		Profiles: repo,
		Avatars:  store,
		Recorder: recorder,
		Geo:      geo,
		Tokens:   NewTokenIssuer(cfg),
	}, nil
}

// NewTokenIssuer signs bearer tokens with the configured key and lifetime.
func NewTokenIssuer(cfg *config.Config) *auth.TokenIssuer {
	return auth.NewTokenIssuer(cfg.PrivateKey, cfg.TokenTTL())
}

// Close releases the audit file and the GeoLite reader.
func (c *Components) Close() error {
	return errors.Join(c.Recorder.Close(), c.Geo.Close())
}
