package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/event-booking/internal/model"
)

// EventQuery defines filters & pagination for the public event list.
type EventQuery struct {
	Search   string
	Category string
	From     string // only events ending on or after this day
	Page     int
	PageSize int
}

// ListApproved returns one page of APPROVED events ordered by start date,
// with the total number of matches.
func (r *EventRepo) ListApproved(ctx context.Context, q EventQuery) ([]model.Event, int64, error) {
	where := []string{"e.status = ?"}
	args := []any{model.EventApproved}

	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		where = append(where, "(LOWER(e.title) LIKE ? OR LOWER(e.description) LIKE ? OR LOWER(e.location) LIKE ?)")
		args = append(args, like, like, like)
	}
	if q.Category != "" {
		where = append(where, "LOWER(e.category) = ?")
		args = append(args, strings.ToLower(q.Category))
	}
	if q.From != "" {
		where = append(where, "e.end_date >= ?")
		args = append(args, q.From)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events e WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := "SELECT " + eventColumns + " FROM events e WHERE " + cond + " ORDER BY e.start_date ASC, e.id ASC LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), limit, offset)
	events, err := r.list(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
