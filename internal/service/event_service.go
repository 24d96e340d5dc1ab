package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-booking/internal/logger"
	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/repository"
)

// maxEventDays bounds the date range of a single event.
const maxEventDays = 366

const timeLayout = "15:04"

// EventStore is the persistence used by EventService.
type EventStore interface {
	Create(ctx context.Context, ev *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	ListApproved(ctx context.Context, q repository.EventQuery) ([]model.Event, int64, error)
	ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error)
	ListPendingReview(ctx context.Context) ([]model.Event, error)
	Replace(ctx context.Context, ev *model.Event, fromProposal bool) error
	SaveProposal(ctx context.Context, id uint64, in model.EventInput) error
	ClearProposal(ctx context.Context, id uint64) error
	SetStatus(ctx context.Context, id uint64, from, to string) error
	Delete(ctx context.Context, id uint64) error
}

// UsageReader reports confirmed seat usage of an event.
type UsageReader interface {
	ConfirmedUsage(ctx context.Context, eventID uint64) (repository.CapacityUsage, error)
}

// CachePurger drops cached public responses after the live event set
// changes.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// EventPage is one page of the public event list.
type EventPage struct {
	Events   []model.Event `json:"events"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// EventService implements event creation, editing and the approval
// workflow.
type EventService struct {
	events EventStore
	usage  UsageReader
	cache  CachePurger
}

// NewEventService wires an EventService.  cache may be nil.
func NewEventService(events EventStore, usage UsageReader, cache CachePurger) *EventService {
	return &EventService{events: events, usage: usage, cache: cache}
}

// Create stores a new PENDING event owned by the requester.
func (s *EventService) Create(ctx context.Context, req Requester, in model.EventInput) (*model.Event, error) {
	if err := ValidateEventInput(&in); err != nil {
		return nil, err
	}
	ev := buildEvent(in, req.UserID)
	ev.Status = model.EventPending
	if err := s.events.Create(ctx, &ev); err != nil {
		return nil, err
	}
	logger.Infof(ctx, "event %d created by organizer %d", ev.ID, req.UserID)
	return s.events.GetByID(ctx, ev.ID)
}

// Get returns an approved event to anyone.  Pending events and staged
// edits are visible only to the owner and administrators; req is nil
// for anonymous callers.
func (s *EventService) Get(ctx context.Context, req *Requester, id uint64) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "event not found")
	}
	privileged := req != nil && (req.IsAdmin() || req.UserID == ev.OrganizerID)
	if ev.Status != model.EventApproved && !privileged {
		return nil, fmt.Errorf("%w: event not found", repository.ErrNotFound)
	}
	if !privileged {
		ev.ProposedData = nil
	}
	return ev, nil
}

// List returns one page of approved events.
func (s *EventService) List(ctx context.Context, q repository.EventQuery) (*EventPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	events, total, err := s.events.ListApproved(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].ProposedData = nil
	}
	return &EventPage{Events: events, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// ListMine returns the requester's events in every state.
func (s *EventService) ListMine(ctx context.Context, req Requester) ([]model.Event, error) {
	return s.events.ListByOrganizer(ctx, req.UserID)
}

// ListPendingReview returns events waiting for an administrator.
func (s *EventService) ListPendingReview(ctx context.Context) ([]model.Event, error) {
	return s.events.ListPendingReview(ctx)
}

// Update applies an organizer's edit.  A pending event is overwritten in
// place.  An approved event keeps its live fields; the edit is staged as
// a proposal for an administrator, and only one proposal may wait at a
// time.
func (s *EventService) Update(ctx context.Context, req Requester, id uint64, in model.EventInput) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "event not found")
	}
	if ev.OrganizerID != req.UserID {
		return nil, fmt.Errorf("%w: only the organizer can edit this event", repository.ErrForbidden)
	}
	if err := ValidateEventInput(&in); err != nil {
		return nil, err
	}
	if err := checkPackageOwnership(ev, in.Packages); err != nil {
		return nil, err
	}

	if ev.Status == model.EventPending {
		next := buildEvent(in, ev.OrganizerID)
		next.ID = ev.ID
		err := s.events.Replace(ctx, &next, false)
		if err == nil {
			logger.Infof(ctx, "pending event %d overwritten by organizer %d", id, req.UserID)
			return s.events.GetByID(ctx, id)
		}
		if !errors.Is(err, repository.ErrEventNotPending) {
			return nil, err
		}
		// Approved after it was read; the edit goes to review instead.
		logger.Infof(ctx, "event %d approved during edit, staging proposal", id)
	} else if ev.HasPendingEdit() {
		return nil, fmt.Errorf("%w: an edit is already awaiting review", repository.ErrInvalidState)
	}

	if err := s.events.SaveProposal(ctx, id, in); err != nil {
		if errors.Is(err, repository.ErrInvalidState) {
			return nil, fmt.Errorf("%w: an edit is already awaiting review", repository.ErrInvalidState)
		}
		return nil, err
	}
	logger.Infof(ctx, "edit of approved event %d submitted for review", id)
	return s.events.GetByID(ctx, id)
}

// Approve publishes a pending event.
func (s *EventService) Approve(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "event not found")
	}
	if ev.Status == model.EventApproved {
		return nil, fmt.Errorf("%w: event is already approved", repository.ErrInvalidState)
	}
	if err := s.events.SetStatus(ctx, id, model.EventPending, model.EventApproved); err != nil {
		if errors.Is(err, repository.ErrInvalidState) {
			return nil, fmt.Errorf("%w: event is already approved", repository.ErrInvalidState)
		}
		return nil, err
	}
	logger.Infof(ctx, "event %d approved", id)
	s.purge(ctx)
	return s.events.GetByID(ctx, id)
}

// ApproveUpdate copies a submitted proposal into the live event and
// clears it.
func (s *EventService) ApproveUpdate(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "event not found")
	}
	if !ev.HasPendingEdit() || ev.ProposedData == nil {
		return nil, fmt.Errorf("%w: event has no submitted edit", repository.ErrInvalidState)
	}
	in := *ev.ProposedData
	if err := ValidateEventInput(&in); err != nil {
		return nil, err
	}
	if err := checkPackageOwnership(ev, in.Packages); err != nil {
		return nil, err
	}
	next := buildEvent(in, ev.OrganizerID)
	next.ID = ev.ID
	if err := s.events.Replace(ctx, &next, true); err != nil {
		return nil, err
	}
	logger.Infof(ctx, "edit of event %d applied", id)
	s.purge(ctx)
	return s.events.GetByID(ctx, id)
}

// RejectUpdate discards a submitted proposal.  The organizer may submit
// again afterwards.
func (s *EventService) RejectUpdate(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "event not found")
	}
	if !ev.HasPendingEdit() {
		return nil, fmt.Errorf("%w: event has no submitted edit", repository.ErrInvalidState)
	}
	if err := s.events.ClearProposal(ctx, id); err != nil {
		return nil, err
	}
	logger.Infof(ctx, "edit of event %d rejected", id)
	return s.events.GetByID(ctx, id)
}

// Delete removes an event.  Organizers may delete their own events while
// they are pending; administrators may delete any event without bookings.
func (s *EventService) Delete(ctx context.Context, req Requester, id uint64) error {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return wrapNotFound(err, "event not found")
	}
	if !req.IsAdmin() {
		if ev.OrganizerID != req.UserID {
			return fmt.Errorf("%w: only the organizer can delete this event", repository.ErrForbidden)
		}
		if ev.Status != model.EventPending {
			return fmt.Errorf("%w: approved events can only be deleted by an administrator", repository.ErrForbidden)
		}
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}
	logger.Infof(ctx, "event %d deleted by user %d", id, req.UserID)
	if ev.Status == model.EventApproved {
		s.purge(ctx)
	}
	return nil
}

// Availability reports seats per day and package of an event visible to req.
func (s *EventService) Availability(ctx context.Context, req *Requester, id uint64) ([]DayAvailability, error) {
	ev, err := s.Get(ctx, req, id)
	if err != nil {
		return nil, err
	}
	used, err := s.usage.ConfirmedUsage(ctx, id)
	if err != nil {
		return nil, err
	}
	return ComputeAvailability(ev, used), nil
}

func (s *EventService) purge(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		logger.Warnf(ctx, "event cache purge failed: %v", err)
	}
}

// ValidateEventInput trims and checks an organizer's event body.
func ValidateEventInput(in *model.EventInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)

	if in.Title == "" {
		return invalid("title is required")
	}
	start, err := time.Parse(model.DateLayout, in.StartDate)
	if err != nil {
		return invalid("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(model.DateLayout, in.EndDate)
	if err != nil {
		return invalid("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return invalid("end_date must not be before start_date")
	}
	if int(end.Sub(start).Hours()/24)+1 > maxEventDays {
		return invalid(fmt.Sprintf("an event may span at most %d days", maxEventDays))
	}
	if in.MaxCapacity <= 0 {
		return invalid("max_capacity must be positive")
	}
	if len(in.Packages) == 0 {
		return invalid("at least one package is required")
	}
	sum := 0
	for i := range in.Packages {
		p := &in.Packages[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return invalid("package name is required")
		}
		if p.PriceCents < 0 {
			return invalid("package price must not be negative")
		}
		if p.Capacity < 0 {
			return invalid("package capacity must not be negative")
		}
		sum += p.Capacity
	}
	if sum != in.MaxCapacity {
		return invalid(fmt.Sprintf("sum of package capacities (%d) must equal max_capacity (%d)", sum, in.MaxCapacity))
	}

	seen := map[string]bool{}
	for i := range in.Schedules {
		sc := &in.Schedules[i]
		sc.Date = strings.TrimSpace(sc.Date)
		d, err := time.Parse(model.DateLayout, sc.Date)
		if err != nil {
			return invalid("schedule date must be YYYY-MM-DD")
		}
		if d.Before(start) || d.After(end) {
			return invalid(fmt.Sprintf("schedule date %s is outside the event", sc.Date))
		}
		if seen[sc.Date] {
			return invalid(fmt.Sprintf("schedule date %s is listed twice", sc.Date))
		}
		seen[sc.Date] = true
		if sc.StartTime != "" {
			if _, err := time.Parse(timeLayout, sc.StartTime); err != nil {
				return invalid("schedule start_time must be HH:MM")
			}
		}
		if sc.EndTime != "" {
			if _, err := time.Parse(timeLayout, sc.EndTime); err != nil {
				return invalid("schedule end_time must be HH:MM")
			}
		}
		if sc.Capacity < 0 || sc.Capacity > in.MaxCapacity {
			return invalid("schedule capacity must be between 0 and max_capacity")
		}
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", repository.ErrValidation, msg)
}

// checkPackageOwnership rejects package ids that are not packages of ev.
func checkPackageOwnership(ev *model.Event, packages []model.PackageInput) error {
	own := make(map[uint64]bool, len(ev.Packages))
	for _, p := range ev.Packages {
		own[p.ID] = true
	}
	seen := map[uint64]bool{}
	for _, p := range packages {
		if p.ID == 0 {
			continue
		}
		if !own[p.ID] {
			return invalid(fmt.Sprintf("package %d does not belong to event %d", p.ID, ev.ID))
		}
		if seen[p.ID] {
			return invalid(fmt.Sprintf("package %d is listed twice", p.ID))
		}
		seen[p.ID] = true
	}
	return nil
}

// buildEvent turns a validated input into an event with one schedule row
// per calendar day.  Days without an override run 00:00-23:59 at the
// event's max capacity.
func buildEvent(in model.EventInput, organizerID uint64) model.Event {
	ev := model.Event{
		OrganizerID: organizerID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Category:    in.Category,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		MaxCapacity: in.MaxCapacity,
	}
	for _, p := range in.Packages {
		ev.Packages = append(ev.Packages, model.EventPackage{
			ID:         p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Features:   p.Features,
			Capacity:   p.Capacity,
		})
	}
	overrides := make(map[string]model.ScheduleInput, len(in.Schedules))
	for _, sc := range in.Schedules {
		overrides[sc.Date] = sc
	}
	start, _ := time.Parse(model.DateLayout, in.StartDate)
	end, _ := time.Parse(model.DateLayout, in.EndDate)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(model.DateLayout)
		sc := model.EventSchedule{Date: day, StartTime: "00:00", EndTime: "23:59", Capacity: in.MaxCapacity}
		if o, ok := overrides[day]; ok {
			if o.StartTime != "" {
				sc.StartTime = o.StartTime
			}
			if o.EndTime != "" {
				sc.EndTime = o.EndTime
			}
			if o.Capacity > 0 {
				sc.Capacity = o.Capacity
			}
		}
		ev.Schedules = append(ev.Schedules, sc)
	}
	return ev
}
