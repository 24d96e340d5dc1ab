package service

import (
	"fmt"

	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/repository"
)

// CapacityLimits are the seat limits of one event.  A package limit applies
// per day; a day limit applies across all packages.  Zero means unlimited.
type CapacityLimits struct {
	Package map[uint64]int
	Day     map[string]int
	Max     int
}

// LimitsFor derives the limits of ev.  A schedule day without its own
// capacity falls back to the event's max capacity.
func LimitsFor(ev *model.Event) CapacityLimits {
	l := CapacityLimits{
		Package: make(map[uint64]int, len(ev.Packages)),
		Day:     make(map[string]int, len(ev.Schedules)),
		Max:     ev.MaxCapacity,
	}
	for _, p := range ev.Packages {
		l.Package[p.ID] = p.Capacity
	}
	for _, s := range ev.Schedules {
		c := s.Capacity
		if c == 0 {
			c = ev.MaxCapacity
		}
		l.Day[s.Date] = c
	}
	return l
}

func (l CapacityLimits) dayLimit(date string) int {
	if c, ok := l.Day[date]; ok {
		return c
	}
	return l.Max
}

// Check reports whether lines still fit next to the confirmed usage.  It
// returns an error wrapping ErrInvalidState naming the first limit that
// would be exceeded.
func (l CapacityLimits) Check(used repository.CapacityUsage, lines []model.BookingItem) error {
	perPackage := map[repository.PackageDay]int{}
	perDay := map[string]int{}
	for _, it := range lines {
		perPackage[repository.PackageDay{PackageID: it.PackageID, Date: it.Date}] += it.Qty
		perDay[it.Date] += it.Qty
	}

	// Walk lines rather than the maps so that errors are deterministic.
	for _, it := range lines {
		k := repository.PackageDay{PackageID: it.PackageID, Date: it.Date}
		if c := l.Package[it.PackageID]; c > 0 && used.PackageDay[k]+perPackage[k] > c {
			return fmt.Errorf("%w: package %d on %s has %d of %d seats left",
				repository.ErrInvalidState, it.PackageID, it.Date, max(c-used.PackageDay[k], 0), c)
		}
	}
	for _, it := range lines {
		if c := l.dayLimit(it.Date); c > 0 && used.Day[it.Date]+perDay[it.Date] > c {
			return fmt.Errorf("%w: %s has %d of %d seats left",
				repository.ErrInvalidState, it.Date, max(c-used.Day[it.Date], 0), c)
		}
	}
	return nil
}

// PackageAvailability is the state of one package on one day.  Remaining
// is nil when neither the package nor the day is limited.
type PackageAvailability struct {
	PackageID  uint64 `json:"package_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Capacity   int    `json:"capacity"`
	DailySold  int    `json:"daily_sold"`
	Remaining  *int   `json:"remaining"`
}

// DayAvailability is the state of one schedule day.
type DayAvailability struct {
	Date      string                `json:"date"`
	StartTime string                `json:"start_time"`
	EndTime   string                `json:"end_time"`
	Capacity  int                   `json:"capacity"`
	DailySold int                   `json:"daily_sold"`
	Remaining *int                  `json:"remaining"`
	Packages  []PackageAvailability `json:"packages"`
}

// ComputeAvailability combines the limits of ev with its confirmed usage.
func ComputeAvailability(ev *model.Event, used repository.CapacityUsage) []DayAvailability {
	l := LimitsFor(ev)
	out := make([]DayAvailability, 0, len(ev.Schedules))
	for _, s := range ev.Schedules {
		day := DayAvailability{
			Date:      s.Date,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Capacity:  l.dayLimit(s.Date),
			DailySold: used.Day[s.Date],
			Packages:  make([]PackageAvailability, 0, len(ev.Packages)),
		}
		if day.Capacity > 0 {
			day.Remaining = remaining(day.Capacity, day.DailySold)
		}
		for _, p := range ev.Packages {
			pa := PackageAvailability{
				PackageID:  p.ID,
				Name:       p.Name,
				PriceCents: p.PriceCents,
				Capacity:   p.Capacity,
				DailySold:  used.PackageDay[repository.PackageDay{PackageID: p.ID, Date: s.Date}],
			}
			if p.Capacity > 0 {
				pa.Remaining = remaining(p.Capacity, pa.DailySold)
			}
			if day.Remaining != nil && (pa.Remaining == nil || *day.Remaining < *pa.Remaining) {
				v := *day.Remaining
				pa.Remaining = &v
			}
			day.Packages = append(day.Packages, pa)
		}
		out = append(out, day)
	}
	return out
}

func remaining(capacity, sold int) *int {
	v := max(capacity-sold, 0)
	return &v
}
