package repository

import (
	"context"

	"github.com/iliyamo/event-booking/internal/model"
)

// PackageDay identifies one package on one event day.
type PackageDay struct {
	PackageID uint64
	Date      string
}

// CapacityUsage holds the quantities already taken by CONFIRMED bookings
// of an event, per package-day and per day.
type CapacityUsage struct {
	PackageDay map[PackageDay]int
	Day        map[string]int
}

func newCapacityUsage() CapacityUsage {
	return CapacityUsage{PackageDay: map[PackageDay]int{}, Day: map[string]int{}}
}

// confirmedUsage sums confirmed quantities of an event.  Pending
// bookings hold no capacity.
func confirmedUsage(ctx context.Context, q querier, eventID uint64) (CapacityUsage, error) {
	const stmt = `SELECT bi.package_id, DATE_FORMAT(bi.event_date, '%Y-%m-%d'), SUM(bi.qty)
		FROM booking_items bi
		JOIN bookings b ON b.id = bi.booking_id
		WHERE b.event_id = ? AND b.booking_status = ?
		GROUP BY bi.package_id, bi.event_date`
	usage := newCapacityUsage()
	rows, err := q.QueryContext(ctx, stmt, eventID, model.BookingConfirmed)
	if err != nil {
		return usage, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			k   PackageDay
			qty int
		)
		if err := rows.Scan(&k.PackageID, &k.Date, &qty); err != nil {
			return usage, err
		}
		usage.PackageDay[k] += qty
		usage.Day[k.Date] += qty
	}
	return usage, rows.Err()
}
