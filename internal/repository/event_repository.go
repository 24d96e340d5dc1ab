package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iliyamo/event-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so that read helpers
// can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ErrEventNotPending is returned by Replace when an in-place overwrite
// finds the event already approved.
var ErrEventNotPending = fmt.Errorf("%w: event is no longer pending", ErrInvalidState)

// EventRepo persists events together with their packages and schedule days.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *EventRepo) DB() *sql.DB { return r.db }

// Dates are formatted in SQL so they scan straight into strings.
const eventColumns = `e.id, e.organizer_id, e.title, e.description, e.location, e.category,
	DATE_FORMAT(e.start_date, '%Y-%m-%d'), DATE_FORMAT(e.end_date, '%Y-%m-%d'),
	e.max_capacity, e.status, e.edit_permission, e.proposed_data, e.created_at, e.updated_at`

func scanEvent(s rowScanner) (model.Event, error) {
	var (
		ev       model.Event
		perm     sql.NullString
		proposed []byte
	)
	err := s.Scan(&ev.ID, &ev.OrganizerID, &ev.Title, &ev.Description, &ev.Location, &ev.Category,
		&ev.StartDate, &ev.EndDate, &ev.MaxCapacity, &ev.Status, &perm, &proposed, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return ev, err
	}
	if perm.Valid {
		p := perm.String
		ev.EditPermission = &p
	}
	if len(proposed) > 0 {
		var in model.EventInput
		if err := json.Unmarshal(proposed, &in); err != nil {
			return ev, fmt.Errorf("decode proposed_data of event %d: %w", ev.ID, err)
		}
		ev.ProposedData = &in
	}
	return ev, nil
}

// Create inserts the event, its packages and its schedule days in one
// transaction.  Generated ids are written back into ev.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO events (organizer_id, title, description, location, category, start_date, end_date, max_capacity, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, ev.OrganizerID, ev.Title, ev.Description, ev.Location, ev.Category,
		ev.StartDate, ev.EndDate, ev.MaxCapacity, ev.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	for i := range ev.Packages {
		if err := insertPackage(ctx, tx, ev.ID, &ev.Packages[i]); err != nil {
			return err
		}
	}
	for i := range ev.Schedules {
		if err := upsertSchedule(ctx, tx, ev.ID, &ev.Schedules[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID returns the event with packages and schedules, or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events e WHERE e.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	events := []model.Event{ev}
	if err := attachChildren(ctx, r.db, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// ListByOrganizer returns every event owned by organizerID, newest first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	return r.list(ctx, "SELECT "+eventColumns+" FROM events e WHERE e.organizer_id = ? ORDER BY e.created_at DESC, e.id DESC", organizerID)
}

// ListPendingReview returns events awaiting first approval and approved
// events with a submitted edit, oldest first.
func (r *EventRepo) ListPendingReview(ctx context.Context) ([]model.Event, error) {
	return r.list(ctx, "SELECT "+eventColumns+" FROM events e WHERE e.status = ? OR e.edit_permission = ? ORDER BY e.updated_at ASC, e.id ASC",
		model.EventPending, model.EditSubmitted)
}

func (r *EventRepo) list(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachChildren(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus moves an event from one approval status to another.  It
// returns ErrInvalidState when the event is not currently in from.
func (r *EventRepo) SetStatus(ctx context.Context, id uint64, from, to string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE events SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return err
	}
	return r.requireAffected(ctx, res, id)
}

// SaveProposal stages in as proposed_data of an approved event without a
// pending edit and marks it SUBMITTED.  The live columns are untouched.
func (r *EventRepo) SaveProposal(ctx context.Context, id uint64, in model.EventInput) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE events SET proposed_data = ?, edit_permission = ? WHERE id = ? AND status = ? AND edit_permission IS NULL",
		string(raw), model.EditSubmitted, id, model.EventApproved)
	if err != nil {
		return err
	}
	return r.requireAffected(ctx, res, id)
}

// ClearProposal drops a submitted edit, leaving the live event unchanged.
func (r *EventRepo) ClearProposal(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE events SET proposed_data = NULL, edit_permission = NULL WHERE id = ? AND edit_permission = ?",
		id, model.EditSubmitted)
	if err != nil {
		return err
	}
	return r.requireAffected(ctx, res, id)
}

// requireAffected turns a conditional update that matched nothing into
// ErrNotFound or ErrInvalidState depending on whether the row exists.
func (r *EventRepo) requireAffected(ctx context.Context, res sql.Result, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", id).Scan(&one); err != nil {
		return notFound(err)
	}
	return ErrInvalidState
}

// Replace overwrites the live event with ev inside one transaction.
// Packages carrying an id are updated, packages without one are inserted
// and packages missing from ev are deleted; deleting a package that has
// booking items fails with ErrInvalidState.  Schedule days are upserted
// by date and days outside [StartDate, EndDate] are removed, which also
// fails with ErrInvalidState when bookings exist on them.  When
// fromProposal is set the event must have a submitted edit, which is
// cleared as part of the same transaction; otherwise the event must still
// be PENDING under the row lock or ErrEventNotPending is returned.
func (r *EventRepo) Replace(ctx context.Context, ev *model.Event, fromProposal bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status string
		perm   sql.NullString
	)
	if err := tx.QueryRowContext(ctx, "SELECT status, edit_permission FROM events WHERE id = ? FOR UPDATE", ev.ID).Scan(&status, &perm); err != nil {
		return notFound(err)
	}
	if fromProposal && (!perm.Valid || perm.String != model.EditSubmitted) {
		return ErrInvalidState
	}
	if !fromProposal && status != model.EventPending {
		return ErrEventNotPending
	}

	upd := `UPDATE events SET title = ?, description = ?, location = ?, category = ?, start_date = ?, end_date = ?, max_capacity = ?`
	if fromProposal {
		upd += `, proposed_data = NULL, edit_permission = NULL`
	}
	upd += ` WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, ev.Title, ev.Description, ev.Location, ev.Category,
		ev.StartDate, ev.EndDate, ev.MaxCapacity, ev.ID); err != nil {
		return err
	}
	if err := replacePackages(ctx, tx, ev); err != nil {
		return err
	}
	if err := replaceSchedules(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes an event and, through cascading keys, its packages and
// schedule.  Events with bookings cannot be deleted.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ? FOR UPDATE", id).Scan(&one); err != nil {
		return notFound(err)
	}
	var bookings int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE event_id = ?", id).Scan(&bookings); err != nil {
		return err
	}
	if bookings > 0 {
		return fmt.Errorf("%w: event has %d booking(s)", ErrInvalidState, bookings)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func insertPackage(ctx context.Context, q querier, eventID uint64, p *model.EventPackage) error {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO event_packages (event_id, name, price_cents, features, capacity) VALUES (?, ?, ?, ?, ?)",
		eventID, p.Name, p.PriceCents, features, p.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.EventID = eventID
	return nil
}

// upsertSchedule writes one schedule day keyed by (event_id, event_date).
// LAST_INSERT_ID(id) makes the existing row id visible on update.
func upsertSchedule(ctx context.Context, q querier, eventID uint64, s *model.EventSchedule) error {
	const stmt = `INSERT INTO event_schedules (event_id, event_date, start_time, end_time, capacity)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), start_time = VALUES(start_time),
			end_time = VALUES(end_time), capacity = VALUES(capacity)`
	res, err := q.ExecContext(ctx, stmt, eventID, s.Date, s.StartTime, s.EndTime, s.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.EventID = eventID
	return nil
}

func replacePackages(ctx context.Context, tx *sql.Tx, ev *model.Event) error {
	existing := map[uint64]bool{}
	rows, err := tx.QueryContext(ctx, "SELECT id FROM event_packages WHERE event_id = ?", ev.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	keep := map[uint64]bool{}
	for i := range ev.Packages {
		p := &ev.Packages[i]
		if p.ID == 0 {
			if err := insertPackage(ctx, tx, ev.ID, p); err != nil {
				return err
			}
			continue
		}
		if !existing[p.ID] {
			return fmt.Errorf("%w: package %d does not belong to event %d", ErrValidation, p.ID, ev.ID)
		}
		features, err := encodeFeatures(p.Features)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE event_packages SET name = ?, price_cents = ?, features = ?, capacity = ? WHERE id = ?",
			p.Name, p.PriceCents, features, p.Capacity, p.ID); err != nil {
			return err
		}
		p.EventID = ev.ID
		keep[p.ID] = true
	}

	for id := range existing {
		if keep[id] {
			continue
		}
		var used int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM booking_items WHERE package_id = ?", id).Scan(&used); err != nil {
			return err
		}
		if used > 0 {
			return fmt.Errorf("%w: package %d has bookings and cannot be removed", ErrInvalidState, id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM event_packages WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

func replaceSchedules(ctx context.Context, tx *sql.Tx, ev *model.Event) error {
	var booked int
	const q = `SELECT COUNT(*) FROM booking_items bi
		JOIN bookings b ON b.id = bi.booking_id
		WHERE b.event_id = ? AND (bi.event_date < ? OR bi.event_date > ?)`
	if err := tx.QueryRowContext(ctx, q, ev.ID, ev.StartDate, ev.EndDate).Scan(&booked); err != nil {
		return err
	}
	if booked > 0 {
		return fmt.Errorf("%w: bookings exist on days outside %s..%s", ErrInvalidState, ev.StartDate, ev.EndDate)
	}
	for i := range ev.Schedules {
		if err := upsertSchedule(ctx, tx, ev.ID, &ev.Schedules[i]); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx,
		"DELETE FROM event_schedules WHERE event_id = ? AND (event_date < ? OR event_date > ?)",
		ev.ID, ev.StartDate, ev.EndDate)
	return err
}

// attachChildren loads packages and schedules for events with one query
// per table.
func attachChildren(ctx context.Context, q querier, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(events))
	args := make([]any, 0, len(events))
	for i := range events {
		events[i].Packages = []model.EventPackage{}
		events[i].Schedules = []model.EventSchedule{}
		index[events[i].ID] = i
		args = append(args, events[i].ID)
	}
	in := placeholders(len(args))

	rows, err := q.QueryContext(ctx,
		"SELECT id, event_id, name, price_cents, features, capacity FROM event_packages WHERE event_id IN ("+in+") ORDER BY event_id, id",
		args...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			p        model.EventPackage
			features []byte
		)
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.PriceCents, &features, &p.Capacity); err != nil {
			rows.Close()
			return err
		}
		if p.Features, err = decodeFeatures(features); err != nil {
			rows.Close()
			return err
		}
		i := index[p.EventID]
		events[i].Packages = append(events[i].Packages, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx,
		"SELECT id, event_id, DATE_FORMAT(event_date, '%Y-%m-%d'), start_time, end_time, capacity FROM event_schedules WHERE event_id IN ("+in+") ORDER BY event_id, event_date",
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.EventSchedule
		if err := rows.Scan(&s.ID, &s.EventID, &s.Date, &s.StartTime, &s.EndTime, &s.Capacity); err != nil {
			return err
		}
		i := index[s.EventID]
		events[i].Schedules = append(events[i].Schedules, s)
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func encodeFeatures(f []string) (string, error) {
	if f == nil {
		f = []string{}
	}
	b, err := json.Marshal(f)
	return string(b), err
}

func decodeFeatures(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode package features: %w", err)
	}
	return out, nil
}
