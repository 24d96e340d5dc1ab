package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/event-booking/internal/model"
)

// maxTicketNumberAttempts bounds regeneration of a colliding ticket number.
const maxTicketNumberAttempts = 5

// BookingRepo provides persistence for bookings, their items and payments.
// Bookings are created PENDING/UNPAID and only ConfirmPayment moves them to
// CONFIRMED/PAID.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// ConfirmedUsage returns the confirmed quantities of eventID.
func (r *BookingRepo) ConfirmedUsage(ctx context.Context, eventID uint64) (CapacityUsage, error) {
	return confirmedUsage(ctx, r.db, eventID)
}

// Create persists b and its items.  The event row is locked while check
// inspects the confirmed usage so that the check and the insert see the
// same state.  On success the generated ids are written back.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, items []model.BookingItem, check func(CapacityUsage) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockEvent(ctx, tx, b.EventID); err != nil {
		return err
	}
	if check != nil {
		usage, err := confirmedUsage(ctx, tx, b.EventID)
		if err != nil {
			return err
		}
		if err := check(usage); err != nil {
			return err
		}
	}

	b.BookingStatus = model.BookingPending
	b.PaymentStatus = model.PaymentUnpaid
	const q = `INSERT INTO bookings (user_id, event_id, quantity, total_amount_cents, booking_status, payment_status)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.EventID, b.Quantity, b.TotalAmountCents, b.BookingStatus, b.PaymentStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	for i := range items {
		it := &items[i]
		it.BookingID = b.ID
		res, err := tx.ExecContext(ctx,
			"INSERT INTO booking_items (booking_id, package_id, event_date, qty, price_at_time_cents) VALUES (?, ?, ?, ?, ?)",
			it.BookingID, it.PackageID, it.Date, it.Qty, it.PriceAtTimeCents)
		if err != nil {
			return err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		it.ID = uint64(itemID)
	}
	return tx.Commit()
}

const bookingDetailSelect = `SELECT b.id, b.user_id, b.event_id, b.quantity, b.total_amount_cents,
	b.booking_status, b.payment_status, b.created_at, b.updated_at,
	e.title, e.location, DATE_FORMAT(e.start_date, '%Y-%m-%d'), DATE_FORMAT(e.end_date, '%Y-%m-%d'),
	e.organizer_id, u.name, u.email
	FROM bookings b
	JOIN events e ON e.id = b.event_id
	JOIN users u ON u.id = b.user_id`

func scanBookingDetail(s rowScanner) (model.BookingDetail, error) {
	var d model.BookingDetail
	err := s.Scan(&d.ID, &d.UserID, &d.EventID, &d.Quantity, &d.TotalAmountCents,
		&d.BookingStatus, &d.PaymentStatus, &d.CreatedAt, &d.UpdatedAt,
		&d.EventTitle, &d.EventLocation, &d.EventStartDate, &d.EventEndDate,
		&d.OrganizerID, &d.UserName, &d.UserEmail)
	return d, err
}

// GetDetail returns a booking joined with its event, user, items and
// payment, or ErrNotFound.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error) {
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx, bookingDetailSelect+" WHERE b.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	out := []model.BookingDetail{d}
	if err := attachBookingChildren(ctx, r.db, out); err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, bookingDetailSelect+" WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BookingDetail{}
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachBookingChildren(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIfPending hard-deletes a booking that is still PENDING/UNPAID.
// Items cascade.  It reports whether a row was removed.
func (r *BookingRepo) DeleteIfPending(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM bookings WHERE id = ? AND booking_status = ? AND payment_status = ?",
		id, model.BookingPending, model.PaymentUnpaid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConfirmPaymentParams carries the input of ConfirmPayment.  Authorize is
// called with the locked booking before anything is written; Check is
// called with the confirmed usage of the event and the booking's items
// while the event row is locked.  TicketNumber builds the number of the
// unit-th ticket (1-based) and is called again after a collision.
type ConfirmPaymentParams struct {
	BookingID     uint64
	TransactionID string
	UPIApp        string
	Authorize     func(model.Booking) error
	Check         func(*model.Event, CapacityUsage, []model.BookingItem) error
	TicketNumber  func(b model.Booking, unit int) string
}

// ConfirmPayment records a successful payment, moves the booking to
// CONFIRMED/PAID and issues one ticket per unit of quantity, all in one
// transaction.  A transaction id that was already used yields
// ErrConflict; a booking that is no longer pending yields ErrInvalidState.
func (r *BookingRepo) ConfirmPayment(ctx context.Context, p ConfirmPaymentParams) (*model.Booking, []model.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var b model.Booking
	const sel = `SELECT id, user_id, event_id, quantity, total_amount_cents, booking_status, payment_status, created_at, updated_at
		FROM bookings WHERE id = ? FOR UPDATE`
	if err := tx.QueryRowContext(ctx, sel, p.BookingID).Scan(&b.ID, &b.UserID, &b.EventID, &b.Quantity,
		&b.TotalAmountCents, &b.BookingStatus, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, nil, notFound(err)
	}
	if p.Authorize != nil {
		if err := p.Authorize(b); err != nil {
			return nil, nil, err
		}
	}

	var used int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE transaction_id = ?", p.TransactionID).Scan(&used); err != nil {
		return nil, nil, err
	}
	if used > 0 {
		return nil, nil, fmt.Errorf("%w: transaction %s was already recorded", ErrConflict, p.TransactionID)
	}
	if !b.IsPending() {
		return nil, nil, fmt.Errorf("%w: booking already confirmed", ErrInvalidState)
	}

	items, err := loadItems(ctx, tx, b.ID)
	if err != nil {
		return nil, nil, err
	}
	ev, err := loadLockedEvent(ctx, tx, b.EventID)
	if err != nil {
		return nil, nil, err
	}
	if p.Check != nil {
		usage, err := confirmedUsage(ctx, tx, b.EventID)
		if err != nil {
			return nil, nil, err
		}
		if err := p.Check(ev, usage, items); err != nil {
			return nil, nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO payments (booking_id, amount_cents, upi_app, transaction_id, status) VALUES (?, ?, ?, ?, ?)",
		b.ID, b.TotalAmountCents, p.UPIApp, p.TransactionID, model.PaymentSuccess); err != nil {
		if isDuplicateKey(err) {
			return nil, nil, fmt.Errorf("%w: transaction %s was already recorded", ErrConflict, p.TransactionID)
		}
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE bookings SET booking_status = ?, payment_status = ? WHERE id = ?",
		model.BookingConfirmed, model.PaymentPaid, b.ID); err != nil {
		return nil, nil, err
	}
	b.BookingStatus = model.BookingConfirmed
	b.PaymentStatus = model.PaymentPaid

	tickets := make([]model.Ticket, 0, b.Quantity)
	unit := 0
	for _, it := range items {
		for n := 0; n < it.Qty; n++ {
			unit++
			t := model.Ticket{BookingID: b.ID, BookingItemID: it.ID, PackageID: it.PackageID, Date: it.Date}
			if err := insertTicket(ctx, tx, &t, func() string { return p.TicketNumber(b, unit) }); err != nil {
				return nil, nil, err
			}
			tickets = append(tickets, t)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &b, tickets, nil
}

// insertTicket inserts t with a fresh number from next, retrying on a
// unique-key collision.
func insertTicket(ctx context.Context, tx *sql.Tx, t *model.Ticket, next func() string) error {
	var lastErr error
	for attempt := 0; attempt < maxTicketNumberAttempts; attempt++ {
		t.TicketNumber = next()
		res, err := tx.ExecContext(ctx,
			"INSERT INTO tickets (booking_id, booking_item_id, package_id, event_date, ticket_number) VALUES (?, ?, ?, ?, ?)",
			t.BookingID, t.BookingItemID, t.PackageID, t.Date, t.TicketNumber)
		if err != nil {
			if isDuplicateKey(err) {
				lastErr = err
				continue
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
		return nil
	}
	return fmt.Errorf("ticket number still colliding after %d attempts: %w", maxTicketNumberAttempts, lastErr)
}

// loadLockedEvent locks the event row and reads it with its packages and
// schedule through tx.  Nothing inside a transaction may go back to the
// pool: with every connection held by a transaction the second acquire
// never returns.
func loadLockedEvent(ctx context.Context, tx *sql.Tx, eventID uint64) (*model.Event, error) {
	ev, err := scanEvent(tx.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events e WHERE e.id = ? FOR UPDATE", eventID))
	if err != nil {
		return nil, notFound(err)
	}
	events := []model.Event{ev}
	if err := attachChildren(ctx, tx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func lockEvent(ctx context.Context, tx *sql.Tx, eventID uint64) error {
	var id uint64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM events WHERE id = ? FOR UPDATE", eventID).Scan(&id); err != nil {
		return notFound(err)
	}
	return nil
}

const itemSelect = `SELECT bi.id, bi.booking_id, bi.package_id, p.name, DATE_FORMAT(bi.event_date, '%Y-%m-%d'),
	bi.qty, bi.price_at_time_cents
	FROM booking_items bi
	JOIN event_packages p ON p.id = bi.package_id`

func scanItems(rows *sql.Rows) ([]model.BookingItem, error) {
	defer rows.Close()
	out := []model.BookingItem{}
	for rows.Next() {
		var it model.BookingItem
		if err := rows.Scan(&it.ID, &it.BookingID, &it.PackageID, &it.PackageName, &it.Date, &it.Qty, &it.PriceAtTimeCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func loadItems(ctx context.Context, q querier, bookingID uint64) ([]model.BookingItem, error) {
	rows, err := q.QueryContext(ctx, itemSelect+" WHERE bi.booking_id = ? ORDER BY bi.id", bookingID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func attachBookingChildren(ctx context.Context, q querier, details []model.BookingDetail) error {
	if len(details) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(details))
	args := make([]any, 0, len(details))
	for i := range details {
		details[i].Items = []model.BookingItem{}
		index[details[i].ID] = i
		args = append(args, details[i].ID)
	}
	in := placeholders(len(args))

	rows, err := q.QueryContext(ctx, itemSelect+" WHERE bi.booking_id IN ("+in+") ORDER BY bi.booking_id, bi.id", args...)
	if err != nil {
		return err
	}
	items, err := scanItems(rows)
	if err != nil {
		return err
	}
	for _, it := range items {
		i := index[it.BookingID]
		details[i].Items = append(details[i].Items, it)
	}

	rows, err = q.QueryContext(ctx,
		"SELECT id, booking_id, amount_cents, upi_app, transaction_id, status, created_at FROM payments WHERE booking_id IN ("+in+")",
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.AmountCents, &p.UPIApp, &p.TransactionID, &p.Status, &p.CreatedAt); err != nil {
			return err
		}
		details[index[p.BookingID]].Payment = &p
	}
	return rows.Err()
}
