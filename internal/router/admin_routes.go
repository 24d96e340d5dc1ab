package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/middleware"
	"github.com/iliyamo/event-booking/internal/model"
)

// registerAdmin mounts the moderation endpoints.  All require ADMIN.
// Middleware is attached per route so unknown /v1 paths still 404.
func registerAdmin(v1 *echo.Group, d Deps) {
	admin := []echo.MiddlewareFunc{middleware.JWTAuth(d.JWTSecret), middleware.RequireRole(model.RoleAdmin)}

	v1.PUT("/events/approve/:id", d.Admin.Approve, admin...)
	v1.PUT("/events/approve-update/:id", d.Admin.ApproveUpdate, admin...)
	v1.PUT("/events/reject-update/:id", d.Admin.RejectUpdate, admin...)
	v1.GET("/admin/events/pending", d.Admin.ListPending, admin...)
	v1.PUT("/admin/users/:id/status", d.Admin.SetUserStatus, admin...)
	v1.POST("/admin/tickets/verify", d.Bookings.VerifyTicket, admin...)
}
