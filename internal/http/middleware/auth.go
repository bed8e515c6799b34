package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"profilehub/internal/auth"
)

// UserIDKey is the fiber locals key holding the authenticated user id.
const UserIDKey = "user_id"

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// authenticate resolves the caller from the Authorization header first, then the session cookie.
// ok is false for anonymous requests; msg is set when credentials were sent but are unusable.
func authenticate(c *fiber.Ctx, tokens *auth.TokenIssuer, sessions *cartridge.SessionManager, logger *slog.Logger) (userID uint, ok bool, msg string) {
	if header := c.Get("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return 0, false, "Invalid Authorization header format. Expected: Bearer <token>"
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			return 0, false, "Token is empty"
		}
		id, err := tokens.Parse(token)
		if err != nil {
			logger.Debug("Rejected bearer token", slog.String("path", c.Path()), slog.Any("error", err))
			return 0, false, "Invalid or expired token"
		}
		return id, true, ""
	}

	if sessions != nil {
		if id, authenticated := sessions.GetUserID(c); authenticated {
			return id, true, ""
		}
	}
	return 0, false, ""
}

// RequireUser rejects requests without a valid bearer token or session.
// Expects: Authorization: Bearer <token>, or the session cookie set at login.
func RequireUser(tokens *auth.TokenIssuer, sessions *cartridge.SessionManager, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, msg := authenticate(c, tokens, sessions, logger)
		if !ok {
			if msg == "" {
				msg = "Authentication required"
			}
			return unauthorized(c, msg)
		}
		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// OptionalUser identifies the caller when credentials are present and lets
// anonymous requests through. Bad credentials are still rejected.
func OptionalUser(tokens *auth.TokenIssuer, sessions *cartridge.SessionManager, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok, msg := authenticate(c, tokens, sessions, logger)
		if msg != "" {
			return unauthorized(c, msg)
		}
		if ok {
			c.Locals(UserIDKey, userID)
		}
		return c.Next()
	}
}

// UserID returns the id stored by RequireUser or OptionalUser.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(UserIDKey).(uint)
	return id, ok && id != 0
}
