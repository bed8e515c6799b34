package internal

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"profilehub/internal/config"
	"profilehub/internal/http"
	"profilehub/internal/http/middleware"
)

// apiCORSConfig is shared by every JSON endpoint. Native clients and
// third-party web frontends both call the API cross-origin.
var apiCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,POST,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, User-Agent",
}

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/api/v1/auth/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes builds the components from the server's database and mounts every route.
func MountAppRoutes(srv *cartridge.Server) {
	logger := srv.GetLogger()
	comps, err := BuildComponents(config.GetConfig(), srv.GetDBManager().GetConnection(), logger)
	if err != nil {
		logger.Error("Failed to build components", slog.Any("error", err))
		panic(err)
	}
	MountRoutes(srv, comps)
}

// MountRoutes sets up the session and mounts the API on srv.
func MountRoutes(srv *cartridge.Server, comps *Components) {
	SetupSession(srv)

	cfg := config.GetConfig()
	sessionMgr := srv.Session()
	logger := srv.GetLogger()
	h := http.NewHandlers(comps.Service, comps.Tokens, comps.Avatars)

	// Rate limiting only applies in production; it would interfere with tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Brute force protection for login and registration.
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Image decoding is the most expensive request we serve.
	uploadRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(20),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	requireUser := middleware.RequireUser(comps.Tokens, sessionMgr, logger)
	optionalUser := middleware.OptionalUser(comps.Tokens, sessionMgr, logger)

	route := func(mw ...fiber.Handler) *cartridge.RouteConfig {
		return &cartridge.RouteConfig{
			EnableCORS:       true,
			CORSConfig:       apiCORSConfig,
			CustomMiddleware: mw,
		}
	}
	publicConfig := route()
	authConfig := route(authRateLimiter)
	viewerConfig := route(optionalUser)
	userConfig := route(requireUser)
	uploadConfig := route(uploadRateLimiter, requireUser)

	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === HEALTH ===
	srv.Get("/_health", h.HealthAction, publicConfig)
	srv.Head("/_health", h.HealthAction, publicConfig)

	// === AVATAR FILES ===
	srv.Get("/avatars/*", h.AvatarServeAction, publicConfig)

	// === AUTHENTICATION ===
	srv.Post("/api/v1/auth/register", h.RegisterAction, authConfig)
	srv.Post("/api/v1/auth/login", h.LoginAction, authConfig)
	srv.Post("/api/v1/auth/logout", h.LogoutAction, publicConfig)

	// === OWN PROFILE ===
	// Updates are POSTed.
	srv.Get("/api/v1/profile", h.ProfileShowAction, userConfig)
	srv.Post("/api/v1/profile", h.ProfileUpdateAction, userConfig)
	srv.Post("/api/v1/profile/privacy", h.PrivacyUpdateAction, userConfig)
	srv.Post("/api/v1/profile/social-links", h.SocialLinksUpdateAction, userConfig)
	srv.Post("/api/v1/profile/custom-fields", h.CustomFieldsUpdateAction, userConfig)
	srv.Post("/api/v1/profile/avatar", h.AvatarUploadAction, uploadConfig)
	srv.Delete("/api/v1/profile/avatar", h.AvatarDeleteAction, userConfig)
	srv.Post("/api/v1/profile/avatar/delete", h.AvatarDeleteAction, userConfig)
	srv.Get("/api/v1/profile/export", h.ExportAction, userConfig)
	srv.Get("/api/v1/profile/audit", h.AuditTrailAction, userConfig)

	// === ACCOUNT ===
	srv.Post("/api/v1/account/password", h.PasswordChangeAction, userConfig)
	srv.Delete("/api/v1/account", h.AccountDeleteAction, userConfig)
	srv.Post("/api/v1/account/delete", h.AccountDeleteAction, userConfig)

	// === OTHER USERS ===
	srv.Get("/api/v1/profiles/search", h.ProfileSearchAction, viewerConfig)
	srv.Get("/api/v1/profiles/:username", h.ProfileByUsernameAction, viewerConfig)
	srv.Get("/api/v1/users/:id/profile", h.UserProfileAction, viewerConfig)

	// === CONNECTIONS ===
	srv.Get("/api/v1/connections", h.ConnectionsIndexAction, userConfig)
	srv.Get("/api/v1/connections/requests", h.ConnectionRequestsIndexAction, userConfig)
	srv.Post("/api/v1/connections/requests/:id/accept", h.ConnectionAcceptAction, userConfig)
	srv.Post("/api/v1/connections/requests/:id/decline", h.ConnectionDeclineAction, userConfig)
	srv.Post("/api/v1/connections/:id", h.ConnectionCreateAction, userConfig)
	srv.Delete("/api/v1/connections/:id", h.ConnectionDeleteAction, userConfig)

	// Cache purges are operator-only and go through profilectl purge-cache.

	// CORS preflight for every API path.
	srv.Options("/api/v1/*", preflight, publicConfig)
}
