package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-booking/internal/model"
)

// TicketRepo reads tickets issued at payment confirmation.
type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `t.id, t.booking_id, t.booking_item_id, t.package_id,
	DATE_FORMAT(t.event_date, '%Y-%m-%d'), t.ticket_number, t.created_at`

// ListByBooking returns the tickets of a booking in issue order.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+ticketColumns+" FROM tickets t WHERE t.booking_id = ? ORDER BY t.id", bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.BookingID, &t.BookingItemID, &t.PackageID, &t.Date, &t.TicketNumber, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByNumber returns a ticket with the owner and event of its booking,
// or ErrNotFound.
func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*model.TicketOwnership, error) {
	const q = `SELECT ` + ticketColumns + `, b.user_id, b.event_id, e.title
		FROM tickets t
		JOIN bookings b ON b.id = t.booking_id
		JOIN events e ON e.id = b.event_id
		WHERE t.ticket_number = ?`
	var o model.TicketOwnership
	err := r.db.QueryRowContext(ctx, q, number).Scan(&o.ID, &o.BookingID, &o.BookingItemID, &o.PackageID,
		&o.Date, &o.TicketNumber, &o.CreatedAt, &o.UserID, &o.EventID, &o.EventTitle)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}
