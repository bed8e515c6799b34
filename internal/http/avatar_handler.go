package http

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"profilehub/internal/avatars"
)

// AvatarUploadAction accepts a multipart "avatar" file.
func (h *Handlers) AvatarUploadAction(ctx *cartridge.Context) error {
	header, err := ctx.FormFile("avatar")
	if err != nil {
		return failure(ctx, fiber.StatusUnprocessableEntity, "avatar file is required")
	}
	file, err := header.Open()
	if err != nil {
		return failWith(ctx, err)
	}
	defer file.Close()

	p, err := h.svc.UploadAvatar(requestContext(ctx), currentUser(ctx), file)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// AvatarDeleteAction removes the avatar. It succeeds when there is none.
func (h *Handlers) AvatarDeleteAction(ctx *cartridge.Context) error {
	p, err := h.svc.DeleteAvatar(requestContext(ctx), currentUser(ctx))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// AvatarServeAction streams a stored avatar file.
func (h *Handlers) AvatarServeAction(ctx *cartridge.Context) error {
	key := ctx.Params("*")
	rc, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, avatars.ErrInvalidKey) {
			return ctx.SendStatus(fiber.StatusNotFound)
		}
		ctx.Logger.Error("Failed to open avatar", slog.String("key", key), slog.Any("error", err))
		return ctx.SendStatus(fiber.StatusInternalServerError)
	}

	// Keys are never reused, so the content behind a URL never changes.
	ctx.Set(fiber.HeaderContentType, "image/jpeg")
	ctx.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return ctx.SendStream(rc)
}
