package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"profilehub/internal/users"
)

type credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type sessionPayload struct {
	User      *users.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Profile   any         `json:"profile,omitempty"`
}

// startSession issues a bearer token and sets the session cookie for browser clients.
func (h *Handlers) startSession(ctx *cartridge.Context, user *users.User) (string, time.Time, error) {
	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	if ctx.Session != nil {
		if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
			// Mobile clients only need the token.
			ctx.Logger.Warn("Failed to set session", slog.Uint64("userID", uint64(user.ID)), slog.Any("error", err))
		}
	}
	return token, expiresAt, nil
}

// RegisterAction creates an account and logs it in.
func (h *Handlers) RegisterAction(ctx *cartridge.Context) error {
	var body credentials
	if err := ctx.BodyParser(&body); err != nil {
		return badRequest(ctx)
	}

	user, profile, err := h.svc.Register(requestContext(ctx), body.Email, body.Password)
	if err != nil {
		return failWith(ctx, err)
	}

	token, expiresAt, err := h.startSession(ctx, user)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusCreated, sessionPayload{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
		Profile:   profile,
	})
}

// LoginAction checks credentials and returns a bearer token.
func (h *Handlers) LoginAction(ctx *cartridge.Context) error {
	var body credentials
	if err := ctx.BodyParser(&body); err != nil {
		return badRequest(ctx)
	}
	if body.Email == "" || body.Password == "" {
		return failure(ctx, fiber.StatusUnprocessableEntity, "Email and password are required")
	}

	user, err := h.svc.Login(requestContext(ctx), body.Email, body.Password)
	if err != nil {
		return failWith(ctx, err)
	}

	token, expiresAt, err := h.startSession(ctx, user)
	if err != nil {
		return failWith(ctx, err)
	}
	ctx.Logger.Debug("Login successful", slog.Uint64("userID", uint64(user.ID)))
	return success(ctx, fiber.StatusOK, sessionPayload{User: user, Token: token, ExpiresAt: expiresAt})
}

// LogoutAction clears the session cookie. Bearer tokens simply expire.
func (h *Handlers) LogoutAction(ctx *cartridge.Context) error {
	if ctx.Session != nil {
		ctx.Session.ClearSession(ctx.Ctx)
	}
	return success(ctx, fiber.StatusOK, nil)
}
