package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/logger"
	"github.com/iliyamo/event-booking/internal/model"
)

// UserAdmin changes account status.  *repository.UserRepo satisfies it.
type UserAdmin interface {
	SetStatus(ctx context.Context, id uint64, status string) error
}

// SessionRevoker ends every session of a user.  *repository.TokenRepo
// satisfies it.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AdminHandler serves the moderation endpoints.  All routes require the
// ADMIN role.
type AdminHandler struct {
	Events   EventAPI
	Users    UserAdmin
	Sessions SessionRevoker
}

func NewAdminHandler(e EventAPI, u UserAdmin, s SessionRevoker) *AdminHandler {
	if e == nil || u == nil || s == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Events: e, Users: u, Sessions: s}
}

// ListPending handles GET /v1/admin/events/pending: events awaiting
// approval and approved events with a submitted edit.
func (h *AdminHandler) ListPending(c echo.Context) error {
	events, err := h.Events.ListPendingReview(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": events, "total": len(events)})
}

// Approve handles PUT /v1/events/approve/:id.
func (h *AdminHandler) Approve(c echo.Context) error {
	return h.transition(c, h.Events.Approve)
}

// ApproveUpdate handles PUT /v1/events/approve-update/:id.
func (h *AdminHandler) ApproveUpdate(c echo.Context) error {
	return h.transition(c, h.Events.ApproveUpdate)
}

// RejectUpdate handles PUT /v1/events/reject-update/:id.
func (h *AdminHandler) RejectUpdate(c echo.Context) error {
	return h.transition(c, h.Events.RejectUpdate)
}

func (h *AdminHandler) transition(c echo.Context, fn func(context.Context, uint64) (*model.Event, error)) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ev, err := fn(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

type userStatusReq struct {
	Status string `json:"status" validate:"oneof=ACTIVE BLOCKED"`
}

// SetUserStatus handles PUT /v1/admin/users/:id/status.  Blocking a user
// also revokes their refresh tokens.
func (h *AdminHandler) SetUserStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var body userStatusReq
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	body.Status = strings.ToUpper(strings.TrimSpace(body.Status))
	if err := c.Validate(&body); err != nil {
		return badRequest(c, err.Error())
	}
	if self, _ := requester(c); self.UserID == id && body.Status == model.UserBlocked {
		return badRequest(c, "administrators cannot block themselves")
	}

	ctx := c.Request().Context()
	if err := h.Users.SetStatus(ctx, id, body.Status); err != nil {
		return writeError(c, err)
	}
	if body.Status == model.UserBlocked {
		if err := h.Sessions.RevokeAllForUser(ctx, id); err != nil {
			return writeError(c, err)
		}
	}
	logger.Infof(ctx, "user %d status set to %s", id, body.Status)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": body.Status})
}
