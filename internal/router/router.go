package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/handler"
	"github.com/iliyamo/event-booking/internal/middleware"
)

// Deps carries what the route registrars need.  Limiter and Cache pass
// requests through when Redis is unavailable.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Auth      *handler.AuthHandler
	Events    *handler.EventHandler
	Bookings  *handler.BookingHandler
	Admin     *handler.AdminHandler
	Limiter   *middleware.RateLimiter
	Cache     *middleware.ResponseCache
}

// RegisterRoutes mounts every endpoint.  All API routes live under /v1,
// identify the caller when a token is present and pass the rate limiter;
// role checks are attached per group.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	v1 := e.Group("/v1", middleware.OptionalJWT(d.JWTSecret), d.Limiter.Middleware())
	registerAuth(v1, d)
	registerPublic(v1, d)
	registerClient(v1, d)
	registerOrganizer(v1, d)
	registerAdmin(v1, d)
}

// registerAuth mounts the token endpoints.  Credential routes get the
// stricter auth bucket.  Logout accepts either a refresh token in the
// body or an access token.
func registerAuth(v1 *echo.Group, d Deps) {
	g := v1.Group("/auth")
	strict := d.Limiter.Auth()
	g.POST("/register", d.Auth.Register, strict)
	g.POST("/login", d.Auth.Login, strict)
	g.POST("/refresh", d.Auth.Refresh, strict)
	g.POST("/logout", d.Auth.Logout)

	v1.GET("/me", d.Auth.Me, middleware.JWTAuth(d.JWTSecret))
}

// registerPublic mounts the catalogue.  The list is served through the
// response cache, which event mutations purge.
func registerPublic(v1 *echo.Group, d Deps) {
	v1.GET("/events", d.Events.List, d.Cache.Middleware())
	v1.GET("/events/:id", d.Events.Get)
	v1.GET("/events/:id/availability", d.Events.Availability)
}
