package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

// PasswordChangeAction replaces the password after verifying the current one.
func (h *Handlers) PasswordChangeAction(ctx *cartridge.Context) error {
	var body struct {
		CurrentPassword string `json:"current_password" form:"current_password"`
		NewPassword     string `json:"new_password" form:"new_password"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return badRequest(ctx)
	}
	if strings.TrimSpace(body.CurrentPassword) == "" {
		return failure(ctx, fiber.StatusUnprocessableEntity, "Current password is required")
	}
	if strings.TrimSpace(body.NewPassword) == "" {
		return failure(ctx, fiber.StatusUnprocessableEntity, "New password is required")
	}

	if err := h.svc.ChangePassword(requestContext(ctx), currentUser(ctx), body.CurrentPassword, body.NewPassword); err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, nil)
}

// ExportAction returns everything stored about the caller as a JSON download.
func (h *Handlers) ExportAction(ctx *cartridge.Context) error {
	export, err := h.svc.ExportData(requestContext(ctx), currentUser(ctx))
	if err != nil {
		return failWith(ctx, err)
	}
	filename := fmt.Sprintf("profilehub-export-%s.json", time.Now().UTC().Format("20060102"))
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return success(ctx, fiber.StatusOK, export)
}

// AuditTrailAction lists the caller's recent audit events.
func (h *Handlers) AuditTrailAction(ctx *cartridge.Context) error {
	events, err := h.svc.AuditTrail(requestContext(ctx), currentUser(ctx), ctx.QueryInt("limit", 100))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, events)
}

// AccountDeleteAction removes the caller's account and everything attached to it.
func (h *Handlers) AccountDeleteAction(ctx *cartridge.Context) error {
	if err := h.svc.DeleteAccount(requestContext(ctx), currentUser(ctx)); err != nil {
		return failWith(ctx, err)
	}
	if ctx.Session != nil {
		ctx.Session.ClearSession(ctx.Ctx)
	}
	return success(ctx, fiber.StatusOK, nil)
}
