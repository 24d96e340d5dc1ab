package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/event-booking/internal/utils"
)

// HeaderAuthToken is the custom header carrying the access token.  The
// standard "Authorization: Bearer <token>" form is accepted as well.
const HeaderAuthToken = "X-Auth-Token"

// Context keys set by JWTAuth and OptionalJWT.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

func rawToken(c echo.Context) string {
	if t := strings.TrimSpace(c.Request().Header.Get(HeaderAuthToken)); t != "" {
		return t
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// JWTAuth returns an Echo middleware that validates the access token and
// injects the token's subject (as uint64) and role claims into the
// request context.  The provided secret must match the one used when
// issuing tokens.  Handlers read them back with UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := rawToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing auth token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			uid, _ := claims.UserID()
			c.Set(ctxUserID, uid)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT identifies the caller when a valid token is present and lets
// anonymous requests through.  An invalid token is treated as absent.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := rawToken(c); raw != "" {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					uid, _ := claims.UserID()
					c.Set(ctxUserID, uid)
					c.Set(ctxRole, claims.Role)
				}
			}
			return next(c)
		}
	}
}
