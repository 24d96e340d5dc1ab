package model

import "time"

// Event approval states (events.status).
const (
	EventPending  = "PENDING"
	EventApproved = "APPROVED"
)

// EditSubmitted is the only non-null value of events.edit_permission.  It
// marks an approved event whose organizer has proposed changes that are
// waiting in proposed_data for an administrator.
const EditSubmitted = "SUBMITTED"

// DateLayout is the wire and storage layout of calendar days.
const DateLayout = "2006-01-02"

// Event is an organizer's event together with its ticket packages and
// its day-by-day schedule.  Dates are YYYY-MM-DD strings.
//
// Fields:
//  ID             – primary key identifier.
//  OrganizerID    – user who owns the event.
//  Title … Category – public-facing descriptive fields.
//  StartDate      – first day the event runs.
//  EndDate        – last day the event runs (>= StartDate).
//  MaxCapacity    – total seats; equals the sum of package capacities.
//  Status         – PENDING until an admin approves, then APPROVED.
//  EditPermission – nil or SUBMITTED while a proposal awaits review.
//  ProposedData   – staged edit of an approved event (nil when none).
type Event struct {
	ID             uint64          `json:"id"`
	OrganizerID    uint64          `json:"organizer_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Location       string          `json:"location"`
	Category       string          `json:"category"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	MaxCapacity    int             `json:"max_capacity"`
	Status         string          `json:"status"`
	EditPermission *string         `json:"edit_permission"`
	ProposedData   *EventInput     `json:"proposed_data,omitempty"`
	Packages       []EventPackage  `json:"packages"`
	Schedules      []EventSchedule `json:"schedules"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HasPendingEdit reports whether an edit proposal is waiting for review.
func (e *Event) HasPendingEdit() bool {
	return e.EditPermission != nil && *e.EditPermission == EditSubmitted
}

// EventSchedule is one calendar day of an event (event_schedules row).
type EventSchedule struct {
	ID        uint64 `json:"id"`
	EventID   uint64 `json:"event_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Capacity  int    `json:"capacity"`
}

// EventPackage is a ticket tier of an event (event_packages row).
// Capacity is per day; zero means unlimited.
type EventPackage struct {
	ID         uint64   `json:"id"`
	EventID    uint64   `json:"event_id"`
	Name       string   `json:"name"`
	PriceCents int64    `json:"price_cents"`
	Features   []string `json:"features"`
	Capacity   int      `json:"capacity"`
}

// EventInput is the organizer-supplied body for creating or editing an
// event.  The same shape is persisted as proposed_data.
type EventInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Category    string          `json:"category"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	MaxCapacity int             `json:"max_capacity"`
	Packages    []PackageInput  `json:"packages"`
	Schedules   []ScheduleInput `json:"schedules,omitempty"`
}

// PackageInput describes a package in an EventInput.  ID is set when an
// edit refers to an existing package.
type PackageInput struct {
	ID         uint64   `json:"id,omitempty"`
	Name       string   `json:"name"`
	PriceCents int64    `json:"price_cents"`
	Features   []string `json:"features,omitempty"`
	Capacity   int      `json:"capacity"`
}

// ScheduleInput overrides the timing or capacity of one event day.
type ScheduleInput struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Capacity  int    `json:"capacity,omitempty"`
}
