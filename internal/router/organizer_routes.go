package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/middleware"
	"github.com/iliyamo/event-booking/internal/model"
)

// registerOrganizer mounts event management for organizers.  Deletion is
// shared with administrators; the service decides which events each may
// remove.
func registerOrganizer(v1 *echo.Group, d Deps) {
	auth := middleware.JWTAuth(d.JWTSecret)
	organizer := middleware.RequireRole(model.RoleOrganizer)

	v1.POST("/events", d.Events.Create, auth, organizer)
	v1.GET("/events/mine", d.Events.ListMine, auth, organizer)
	v1.PUT("/events/:id", d.Events.Update, auth, organizer)
	v1.DELETE("/events/:id", d.Events.Delete, auth, middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
}
