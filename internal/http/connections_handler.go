package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

func friendID(ctx *cartridge.Context) (uint, bool) {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// ConnectionsIndexAction lists the caller's friends.
func (h *Handlers) ConnectionsIndexAction(ctx *cartridge.Context) error {
	friends, err := h.svc.ListConnections(requestContext(ctx), currentUser(ctx))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, friends)
}

// ConnectionCreateAction sends a friend request to the user in the path.
// The response state is "connected" when that user had already asked the caller.
func (h *Handlers) ConnectionCreateAction(ctx *cartridge.Context) error {
	id, ok := friendID(ctx)
	if !ok {
		return failure(ctx, fiber.StatusBadRequest, "Invalid user id")
	}
	state, err := h.svc.Connect(requestContext(ctx), currentUser(ctx), id)
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusCreated, fiber.Map{"friend_id": id, "state": state})
}

// ConnectionRequestsIndexAction lists requests waiting for the caller's answer.
func (h *Handlers) ConnectionRequestsIndexAction(ctx *cartridge.Context) error {
	reqs, err := h.svc.ListConnectionRequests(requestContext(ctx), currentUser(ctx))
	if err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, reqs)
}

func (h *Handlers) ConnectionAcceptAction(ctx *cartridge.Context) error {
	id, ok := friendID(ctx)
	if !ok {
		return failure(ctx, fiber.StatusBadRequest, "Invalid user id")
	}
	if err := h.svc.AcceptConnection(requestContext(ctx), currentUser(ctx), id); err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, fiber.Map{"friend_id": id, "state": "connected"})
}

func (h *Handlers) ConnectionDeclineAction(ctx *cartridge.Context) error {
	id, ok := friendID(ctx)
	if !ok {
		return failure(ctx, fiber.StatusBadRequest, "Invalid user id")
	}
	if err := h.svc.DeclineConnection(requestContext(ctx), currentUser(ctx), id); err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, nil)
}

// ConnectionDeleteAction removes the friendship with the user in the path.
func (h *Handlers) ConnectionDeleteAction(ctx *cartridge.Context) error {
	id, ok := friendID(ctx)
	if !ok {
		return failure(ctx, fiber.StatusBadRequest, "Invalid user id")
	}
	if err := h.svc.Disconnect(requestContext(ctx), currentUser(ctx), id); err != nil {
		return failWith(ctx, err)
	}
	return success(ctx, fiber.StatusOK, nil)
}
