package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/queue"
	"github.com/iliyamo/event-booking/internal/repository"
)

// fakeStore keeps events, bookings, payments and tickets in memory and
// mirrors the contracts of the MySQL repositories.
type fakeStore struct {
	mu       sync.Mutex
	nextID   uint64
	events   map[uint64]*model.Event
	bookings map[uint64]*model.Booking
	items    map[uint64][]model.BookingItem
	payments map[string]uint64 // transaction id -> booking id
	tickets  map[uint64][]model.Ticket
	users    map[uint64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:   map[uint64]*model.Event{},
		bookings: map[uint64]*model.Booking{},
		items:    map[uint64][]model.BookingItem{},
		payments: map[string]uint64{},
		tickets:  map[uint64][]model.Ticket{},
		users:    map[uint64]string{},
	}
}

func (f *fakeStore) id() uint64 {
	f.nextID++
	return f.nextID
}

func cloneEvent(ev *model.Event) *model.Event {
	c := *ev
	c.Packages = append([]model.EventPackage{}, ev.Packages...)
	c.Schedules = append([]model.EventSchedule{}, ev.Schedules...)
	if ev.ProposedData != nil {
		p := *ev.ProposedData
		c.ProposedData = &p
	}
	if ev.EditPermission != nil {
		p := *ev.EditPermission
		c.EditPermission = &p
	}
	return &c
}

// EventStore

func (f *fakeStore) Create(ctx context.Context, ev *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = f.id()
	for i := range ev.Packages {
		ev.Packages[i].ID = f.id()
		ev.Packages[i].EventID = ev.ID
	}
	for i := range ev.Schedules {
		ev.Schedules[i].ID = f.id()
		ev.Schedules[i].EventID = ev.ID
	}
	f.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEvent(ev), nil
}

func (f *fakeStore) ListApproved(ctx context.Context, q repository.EventQuery) ([]model.Event, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Event{}
	for _, ev := range f.events {
		if ev.Status == model.EventApproved {
			out = append(out, *cloneEvent(ev))
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Event{}
	for _, ev := range f.events {
		if ev.OrganizerID == organizerID {
			out = append(out, *cloneEvent(ev))
		}
	}
	return out, nil
}

func (f *fakeStore) ListPendingReview(ctx context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Event{}
	for _, ev := range f.events {
		if ev.Status == model.EventPending || ev.HasPendingEdit() {
			out = append(out, *cloneEvent(ev))
		}
	}
	return out, nil
}

func (f *fakeStore) Replace(ctx context.Context, ev *model.Event, fromProposal bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.events[ev.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if fromProposal && !cur.HasPendingEdit() {
		return repository.ErrInvalidState
	}
	if !fromProposal && cur.Status != model.EventPending {
		return repository.ErrEventNotPending
	}
	for i := range ev.Packages {
		if ev.Packages[i].ID == 0 {
			ev.Packages[i].ID = f.id()
		}
		ev.Packages[i].EventID = ev.ID
	}
	for i := range ev.Schedules {
		ev.Schedules[i].ID = f.id()
		ev.Schedules[i].EventID = ev.ID
	}
	next := cloneEvent(ev)
	next.Status = cur.Status
	next.EditPermission = cur.EditPermission
	next.ProposedData = cur.ProposedData
	if fromProposal {
		next.EditPermission = nil
		next.ProposedData = nil
	}
	f.events[ev.ID] = next
	return nil
}

func (f *fakeStore) SaveProposal(ctx context.Context, id uint64, in model.EventInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if ev.Status != model.EventApproved || ev.EditPermission != nil {
		return repository.ErrInvalidState
	}
	perm := model.EditSubmitted
	ev.EditPermission = &perm
	ev.ProposedData = &in
	return nil
}

func (f *fakeStore) ClearProposal(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !ev.HasPendingEdit() {
		return repository.ErrInvalidState
	}
	ev.EditPermission = nil
	ev.ProposedData = nil
	return nil
}

func (f *fakeStore) SetStatus(ctx context.Context, id uint64, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if ev.Status != from {
		return repository.ErrInvalidState
	}
	ev.Status = to
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return repository.ErrNotFound
	}
	for _, b := range f.bookings {
		if b.EventID == id {
			return fmt.Errorf("%w: event has bookings", repository.ErrInvalidState)
		}
	}
	delete(f.events, id)
	return nil
}

// UsageReader

func (f *fakeStore) ConfirmedUsage(ctx context.Context, eventID uint64) (repository.CapacityUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usageLocked(eventID), nil
}

func (f *fakeStore) usageLocked(eventID uint64) repository.CapacityUsage {
	u := repository.CapacityUsage{PackageDay: map[repository.PackageDay]int{}, Day: map[string]int{}}
	for id, b := range f.bookings {
		if b.EventID != eventID || b.BookingStatus != model.BookingConfirmed {
			continue
		}
		for _, it := range f.items[id] {
			u.PackageDay[repository.PackageDay{PackageID: it.PackageID, Date: it.Date}] += it.Qty
			u.Day[it.Date] += it.Qty
		}
	}
	return u
}

// BookingStore

type bookingStore struct{ *fakeStore }

func (f bookingStore) Create(ctx context.Context, b *model.Booking, items []model.BookingItem, check func(repository.CapacityUsage) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[b.EventID]; !ok {
		return repository.ErrNotFound
	}
	if check != nil {
		if err := check(f.usageLocked(b.EventID)); err != nil {
			return err
		}
	}
	b.ID = f.id()
	b.BookingStatus = model.BookingPending
	b.PaymentStatus = model.PaymentUnpaid
	for i := range items {
		items[i].ID = f.id()
		items[i].BookingID = b.ID
	}
	c := *b
	f.bookings[b.ID] = &c
	f.items[b.ID] = append([]model.BookingItem{}, items...)
	return nil
}

func (f bookingStore) GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := &model.BookingDetail{Booking: *b, Items: append([]model.BookingItem{}, f.items[id]...), UserName: f.users[b.UserID]}
	if ev, ok := f.events[b.EventID]; ok {
		d.EventTitle = ev.Title
		d.OrganizerID = ev.OrganizerID
	}
	for tx, bid := range f.payments {
		if bid == id {
			d.Payment = &model.Payment{BookingID: id, TransactionID: tx, UPIApp: "gpay", AmountCents: b.TotalAmountCents}
		}
	}
	return d, nil
}

func (f bookingStore) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	out := []model.BookingDetail{}
	f.mu.Lock()
	ids := []uint64{}
	for id, b := range f.bookings {
		if b.UserID == userID {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()
	for _, id := range ids {
		d, _ := f.GetDetail(ctx, id)
		out = append(out, *d)
	}
	return out, nil
}

func (f bookingStore) DeleteIfPending(ctx context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || !b.IsPending() {
		return false, nil
	}
	delete(f.bookings, id)
	delete(f.items, id)
	return true, nil
}

func (f bookingStore) ConfirmPayment(ctx context.Context, p repository.ConfirmPaymentParams) (*model.Booking, []model.Ticket, error) {
	f.mu.Lock()
	b, ok := f.bookings[p.BookingID]
	if !ok {
		f.mu.Unlock()
		return nil, nil, repository.ErrNotFound
	}
	cur := *b
	f.mu.Unlock()

	if err := p.Authorize(cur); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	if _, used := f.payments[p.TransactionID]; used {
		f.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: transaction %s was already recorded", repository.ErrConflict, p.TransactionID)
	}
	if !cur.IsPending() {
		f.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: booking already confirmed", repository.ErrInvalidState)
	}
	ev, ok := f.events[cur.EventID]
	if !ok {
		f.mu.Unlock()
		return nil, nil, repository.ErrNotFound
	}
	ev = cloneEvent(ev)
	usage := f.usageLocked(cur.EventID)
	items := append([]model.BookingItem{}, f.items[cur.ID]...)
	f.mu.Unlock()

	if err := p.Check(ev, usage, items); err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.TransactionID] = cur.ID
	b.BookingStatus = model.BookingConfirmed
	b.PaymentStatus = model.PaymentPaid
	var tickets []model.Ticket
	unit := 0
	for _, it := range items {
		for n := 0; n < it.Qty; n++ {
			unit++
			tickets = append(tickets, model.Ticket{ID: f.id(), BookingID: b.ID, BookingItemID: it.ID, PackageID: it.PackageID, Date: it.Date, TicketNumber: p.TicketNumber(*b, unit)})
		}
	}
	f.tickets[b.ID] = tickets
	out := *b
	return &out, tickets, nil
}

// TicketStore

func (f *fakeStore) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Ticket{}, f.tickets[bookingID]...), nil
}

func (f *fakeStore) GetByNumber(ctx context.Context, number string) (*model.TicketOwnership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for bid, ts := range f.tickets {
		for _, t := range ts {
			if t.TicketNumber == number {
				b := f.bookings[bid]
				return &model.TicketOwnership{Ticket: t, UserID: b.UserID, EventID: b.EventID}, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

type fakePublisher struct {
	err  error
	sent chan queue.BookingConfirmedEvent
}

func newFakePublisher(err error) *fakePublisher {
	return &fakePublisher{err: err, sent: make(chan queue.BookingConfirmedEvent, 8)}
}

func (p *fakePublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
	p.sent <- ev
	return p.err
}

type countingPurger struct {
	mu sync.Mutex
	n  int
}

func (c *countingPurger) Purge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *countingPurger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
