package http

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"profilehub/internal/auth"
	"profilehub/internal/avatars"
	"profilehub/internal/http/middleware"
	"profilehub/internal/profiles"
	"profilehub/internal/usecases"
	"profilehub/internal/users"
)

// Handlers serves the JSON API on top of the use case service.
type Handlers struct {
	svc    *usecases.Service
	tokens *auth.TokenIssuer
	store  avatars.Store
}

func NewHandlers(svc *usecases.Service, tokens *auth.TokenIssuer, store avatars.Store) *Handlers {
	return &Handlers{svc: svc, tokens: tokens, store: store}
}

// requestContext carries the caller's address and client into the use cases for auditing.
func requestContext(ctx *cartridge.Context) context.Context {
	return usecases.WithRequestInfo(ctx.UserContext(), usecases.RequestInfo{
		IP:        ctx.IP(),
		UserAgent: ctx.Get("User-Agent"),
	})
}

// currentUser returns the authenticated user id. Routes using it sit behind middleware.RequireUser.
func currentUser(ctx *cartridge.Context) uint {
	id, _ := middleware.UserID(ctx.Ctx)
	return id
}

func success(ctx *cartridge.Context, status int, data any) error {
	return ctx.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func failure(ctx *cartridge.Context, status int, msg string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// failWith converts a use case error into the JSON error body.
func failWith(ctx *cartridge.Context, err error) error {
	var verrs profiles.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error":   verrs.First(),
			"fields":  verrs,
		})
	case errors.Is(err, usecases.ErrInvalidInput):
		return failure(ctx, fiber.StatusUnprocessableEntity,
			strings.TrimPrefix(err.Error(), usecases.ErrInvalidInput.Error()+": "))
	case errors.Is(err, avatars.ErrUnsupportedImage), errors.Is(err, avatars.ErrEmptyImage):
		return failure(ctx, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, avatars.ErrTooLarge):
		return failure(ctx, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return failure(ctx, fiber.StatusNotFound, "Not found")
	case errors.Is(err, profiles.ErrVersionConflict),
		errors.Is(err, profiles.ErrUsernameTaken),
		errors.Is(err, users.ErrUserExists):
		return failure(ctx, fiber.StatusConflict, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		return failure(ctx, fiber.StatusUnauthorized, err.Error())
	}

	ctx.Logger.Error("Request failed",
		slog.String("path", ctx.Path()),
		slog.String("method", ctx.Method()),
		slog.Any("error", err))
	return failure(ctx, fiber.StatusInternalServerError, "Internal server error")
}

func badRequest(ctx *cartridge.Context) error {
	return failure(ctx, fiber.StatusBadRequest, "Invalid request body")
}
