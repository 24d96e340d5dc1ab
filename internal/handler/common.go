package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-booking/internal/logger"
	"github.com/iliyamo/event-booking/internal/middleware"
	"github.com/iliyamo/event-booking/internal/repository"
	"github.com/iliyamo/event-booking/internal/service"
)

// Error codes returned next to the message for failures clients may want
// to branch on.
const (
	codeDuplicateTransaction = "duplicate_transaction"
	codeEmailExists          = "email_exists"
)

// writeError translates a service error into a JSON response.  Unknown
// errors are logged with the request id and hidden behind a 500.
func writeError(c echo.Context, err error) error {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		status, code = http.StatusConflict, codeEmailExists
	case errors.Is(err, repository.ErrValidation), errors.Is(err, repository.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrConflict):
		status, code = http.StatusBadRequest, codeDuplicateTransaction
	default:
		logger.Errorf(c.Request().Context(), "%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	body := echo.Map{"error": message(err)}
	if code != "" {
		body["code"] = code
	}
	return c.JSON(status, body)
}

// message drops the sentinel prefix ("not found: booking not found"
// becomes "booking not found").
func message(err error) string {
	msg := err.Error()
	for _, s := range []error{
		repository.ErrValidation, repository.ErrInvalidState, repository.ErrNotFound,
		repository.ErrForbidden, repository.ErrConflict,
	} {
		if errors.Is(err, s) {
			if rest, ok := strings.CutPrefix(msg, s.Error()+": "); ok {
				return rest
			}
		}
	}
	return msg
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// requester builds the caller identity set by the JWT middleware.
func requester(c echo.Context) (service.Requester, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return service.Requester{}, false
	}
	return service.Requester{UserID: uid, Role: middleware.Role(c)}, true
}

// optionalRequester is requester for routes open to anonymous callers.
func optionalRequester(c echo.Context) *service.Requester {
	if req, ok := requester(c); ok {
		return &req
	}
	return nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
