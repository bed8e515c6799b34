package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"profilehub/internal/http/middleware"
	"profilehub/internal/profiles"
	"profilehub/internal/usecases"
)

// ProfileShowAction returns the caller's own profile.
func (h *Handlers) ProfileShowAction(ctx *cartridge.Context) error {
	userID := currentUser(ctx)
	p, err := h.svc.GetProfile(requestContext(ctx), userID, userID)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// ProfileUpdateAction applies a partial update. Send "version" to guard against lost updates.
func (h *Handlers) ProfileUpdateAction(ctx *cartridge.Context) error {
	var in usecases.UpdateInput
	if err := ctx.BodyParser(&in); err != nil {
		return badRequest(ctx)
	}
	p, err := h.svc.UpdateProfile(requestContext(ctx), currentUser(ctx), in)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// PrivacyUpdateAction replaces the privacy settings.
func (h *Handlers) PrivacyUpdateAction(ctx *cartridge.Context) error {
	var settings profiles.PrivacySettings
	if err := ctx.BodyParser(&settings); err != nil {
		return badRequest(ctx)
	}
	p, err := h.svc.UpdatePrivacySettings(requestContext(ctx), currentUser(ctx), settings)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// SocialLinksUpdateAction replaces the social links.
func (h *Handlers) SocialLinksUpdateAction(ctx *cartridge.Context) error {
	var links profiles.SocialLinks
	if err := ctx.BodyParser(&links); err != nil {
		return badRequest(ctx)
	}
	p, err := h.svc.UpdateSocialLinks(requestContext(ctx), currentUser(ctx), links)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// CustomFieldsUpdateAction replaces the whole custom field list.
func (h *Handlers) CustomFieldsUpdateAction(ctx *cartridge.Context) error {
	var body struct {
		CustomFields []profiles.CustomField `json:"custom_fields"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return badRequest(ctx)
	}
	p, err := h.svc.SetCustomFields(requestContext(ctx), currentUser(ctx), body.CustomFields)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// ProfileSearchAction finds public profiles by name or username.
func (h *Handlers) ProfileSearchAction(ctx *cartridge.Context) error {
	viewerID, _ := middleware.UserID(ctx.Ctx)
	found, err := h.svc.SearchProfiles(requestContext(ctx), viewerID, ctx.Query("q"), ctx.QueryInt("limit", 20))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, found)
}

// ProfileByUsernameAction shows someone's profile as the caller may see it.
func (h *Handlers) ProfileByUsernameAction(ctx *cartridge.Context) error {
	viewerID, _ := middleware.UserID(ctx.Ctx)
	p, err := h.svc.GetProfileByUsername(requestContext(ctx), viewerID, ctx.Params("username"))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}

// UserProfileAction shows a profile by user id.
func (h *Handlers) UserProfileAction(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return failure(ctx, fiber.StatusBadRequest, "Invalid user id")
	}
	viewerID, _ := middleware.UserID(ctx.Ctx)
	p, err := h.svc.GetProfile(requestContext(ctx), viewerID, uint(id))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, p)
}
