// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// allowed to act on a booking owned by someone else, while
// ErrInvalidState signals that a booking or event is not in a state
// that permits the requested transition.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a unique value is already taken, most
// notably a payment transaction id that was recorded before.
var ErrConflict = errors.New("conflict")

// ErrInvalidState is returned when an entity is not in a state that
// allows the operation (paying a confirmed booking, deleting an event
// with bookings, approving an approved event).
var ErrInvalidState = errors.New("invalid state")

// ErrValidation marks malformed input detected below the handler layer.
var ErrValidation = errors.New("validation failed")

// ErrEmailExists is returned when registering an address that is taken.
// Handlers answer 409.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique-index violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
