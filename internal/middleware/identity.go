package middleware

// identity.go reads back the caller identity stored by JWTAuth and
// OptionalJWT.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id and whether one is present.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated role or "" for anonymous callers.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// userKey identifies the caller in rate-limit keys.  It returns "guest"
// when no user is authenticated.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
