// Package service holds the booking and event rules between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-booking/internal/logger"
	"github.com/iliyamo/event-booking/internal/model"
	"github.com/iliyamo/event-booking/internal/queue"
	"github.com/iliyamo/event-booking/internal/repository"
)

// BookingStore is the persistence used by BookingService.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, items []model.BookingItem, check func(repository.CapacityUsage) error) error
	GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error)
	DeleteIfPending(ctx context.Context, id uint64) (bool, error)
	ConfirmPayment(ctx context.Context, p repository.ConfirmPaymentParams) (*model.Booking, []model.Ticket, error)
}

// EventReader loads an event with its packages and schedule.
type EventReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
}

// TicketStore reads issued tickets.
type TicketStore interface {
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*model.TicketOwnership, error)
}

// ReceiptPublisher hands confirmed bookings to the receipt pipeline.
type ReceiptPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// Requester is the authenticated caller of an operation.
type Requester struct {
	UserID uint64
	Role   string
}

func (r Requester) IsAdmin() bool { return r.Role == model.RoleAdmin }

// BookingLine is one requested package-day.  An empty Date means the
// event's first day.
type BookingLine struct {
	PackageID uint64 `json:"package_id"`
	Qty       int    `json:"qty"`
	Date      string `json:"date"`
}

// CreateBookingInput is the body of a new booking.
type CreateBookingInput struct {
	EventID uint64
	Items   []BookingLine
}

// ConfirmPaymentInput identifies a UPI payment for a booking.
type ConfirmPaymentInput struct {
	BookingID     uint64 `json:"booking_id"`
	TransactionID string `json:"transaction_id"`
	UPIApp        string `json:"upi_app"`
}

// PaymentResult is the outcome of a confirmed payment.
type PaymentResult struct {
	Booking *model.Booking `json:"booking"`
	Tickets []model.Ticket `json:"tickets"`
}

// BookingService implements the booking lifecycle and payment confirmation.
type BookingService struct {
	bookings       BookingStore
	events         EventReader
	tickets        TicketStore
	publisher      ReceiptPublisher
	ticketNumber   func(model.Booking, int) string
	publishTimeout time.Duration
}

// NewBookingService wires a BookingService.  publisher may be nil, in
// which case no receipts are sent.
func NewBookingService(bookings BookingStore, events EventReader, tickets TicketStore, publisher ReceiptPublisher) *BookingService {
	return &BookingService{
		bookings:       bookings,
		events:         events,
		tickets:        tickets,
		publisher:      publisher,
		ticketNumber:   TicketNumber,
		publishTimeout: 10 * time.Second,
	}
}

// Create validates the requested lines against an approved event and
// stores a PENDING/UNPAID booking.  Lines for the same package and day
// are merged; prices are captured from the packages at this moment.
func (s *BookingService) Create(ctx context.Context, req Requester, in CreateBookingInput) (*model.BookingDetail, error) {
	if in.EventID == 0 {
		return nil, fmt.Errorf("%w: event_id is required", repository.ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", repository.ErrValidation)
	}
	ev, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, wrapNotFound(err, "event not found")
	}
	if ev.Status != model.EventApproved {
		return nil, fmt.Errorf("%w: event not found", repository.ErrNotFound)
	}

	packages := make(map[uint64]model.EventPackage, len(ev.Packages))
	for _, p := range ev.Packages {
		packages[p.ID] = p
	}
	days := make(map[string]bool, len(ev.Schedules))
	for _, sc := range ev.Schedules {
		days[sc.Date] = true
	}
	firstDay := ev.StartDate
	if len(ev.Schedules) > 0 {
		firstDay = ev.Schedules[0].Date
	}

	var (
		items []model.BookingItem
		pos   = map[repository.PackageDay]int{}
		b     = model.Booking{UserID: req.UserID, EventID: ev.ID}
	)
	for _, line := range in.Items {
		if line.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be at least 1", repository.ErrValidation)
		}
		p, ok := packages[line.PackageID]
		if !ok {
			return nil, fmt.Errorf("%w: package %d not found for event %d", repository.ErrNotFound, line.PackageID, ev.ID)
		}
		date := strings.TrimSpace(line.Date)
		if date == "" {
			date = firstDay
		}
		if !days[date] {
			return nil, fmt.Errorf("%w: %s is not a day of this event", repository.ErrValidation, date)
		}
		k := repository.PackageDay{PackageID: p.ID, Date: date}
		if i, dup := pos[k]; dup {
			items[i].Qty += line.Qty
		} else {
			pos[k] = len(items)
			items = append(items, model.BookingItem{PackageID: p.ID, PackageName: p.Name, Date: date, Qty: line.Qty, PriceAtTimeCents: p.PriceCents})
		}
		b.Quantity += line.Qty
		b.TotalAmountCents += p.PriceCents * int64(line.Qty)
	}

	limits := LimitsFor(ev)
	check := func(used repository.CapacityUsage) error { return limits.Check(used, items) }
	if err := s.bookings.Create(ctx, &b, items, check); err != nil {
		return nil, err
	}
	logger.Infof(ctx, "booking %d created for event %d by user %d (qty=%d total=%d)", b.ID, ev.ID, req.UserID, b.Quantity, b.TotalAmountCents)
	return s.bookings.GetDetail(ctx, b.ID)
}

// Cancel hard-deletes a pending booking of the requester.
func (s *BookingService) Cancel(ctx context.Context, req Requester, id uint64) error {
	d, err := s.bookings.GetDetail(ctx, id)
	if err != nil {
		return wrapNotFound(err, "booking not found")
	}
	if d.UserID != req.UserID {
		return fmt.Errorf("%w: only the booking owner can cancel it", repository.ErrForbidden)
	}
	if !d.IsPending() {
		return fmt.Errorf("%w: only pending bookings can be cancelled", repository.ErrInvalidState)
	}
	ok, err := s.bookings.DeleteIfPending(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		// confirmed or removed between the read and the delete
		return fmt.Errorf("%w: only pending bookings can be cancelled", repository.ErrInvalidState)
	}
	logger.Infof(ctx, "booking %d cancelled by user %d", id, req.UserID)
	return nil
}

// Get returns a booking to its owner or to an administrator.
func (s *BookingService) Get(ctx context.Context, req Requester, id uint64) (*model.BookingDetail, error) {
	d, err := s.bookings.GetDetail(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "booking not found")
	}
	if d.UserID != req.UserID && !req.IsAdmin() {
		return nil, fmt.Errorf("%w: booking belongs to another user", repository.ErrForbidden)
	}
	return d, nil
}

// ListMine returns the requester's bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, req Requester) ([]model.BookingDetail, error) {
	return s.bookings.ListByUser(ctx, req.UserID)
}

// ConfirmPayment records a UPI payment for a pending booking, confirms it
// and issues its tickets.  Capacity is checked again while the event is
// locked so that confirmed seats never exceed a limit.  The receipt is
// published after commit and its failure is only logged.
func (s *BookingService) ConfirmPayment(ctx context.Context, req Requester, in ConfirmPaymentInput) (*PaymentResult, error) {
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.UPIApp = strings.TrimSpace(in.UPIApp)
	switch {
	case in.BookingID == 0:
		return nil, fmt.Errorf("%w: booking_id is required", repository.ErrValidation)
	case in.TransactionID == "":
		return nil, fmt.Errorf("%w: transaction_id is required", repository.ErrValidation)
	case in.UPIApp == "":
		return nil, fmt.Errorf("%w: upi_app is required", repository.ErrValidation)
	}

	b, tickets, err := s.bookings.ConfirmPayment(ctx, repository.ConfirmPaymentParams{
		BookingID:     in.BookingID,
		TransactionID: in.TransactionID,
		UPIApp:        in.UPIApp,
		Authorize: func(b model.Booking) error {
			if b.UserID != req.UserID && !req.IsAdmin() {
				return fmt.Errorf("%w: booking belongs to another user", repository.ErrForbidden)
			}
			return nil
		},
		Check: func(ev *model.Event, used repository.CapacityUsage, items []model.BookingItem) error {
			return LimitsFor(ev).Check(used, items)
		},
		TicketNumber: s.ticketNumber,
	})
	if err != nil {
		return nil, wrapNotFound(err, "booking not found")
	}
	logger.Infof(ctx, "booking %d confirmed with transaction %s via %s, %d ticket(s) issued", b.ID, in.TransactionID, in.UPIApp, len(tickets))

	go s.publishReceipt(context.WithoutCancel(ctx), b.ID, tickets)
	return &PaymentResult{Booking: b, Tickets: tickets}, nil
}

func (s *BookingService) publishReceipt(ctx context.Context, bookingID uint64, tickets []model.Ticket) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	d, err := s.bookings.GetDetail(ctx, bookingID)
	if err != nil {
		logger.Errorf(ctx, "receipt for booking %d: load booking: %v", bookingID, err)
		return
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, queue.NewBookingConfirmedEvent(d, tickets)); err != nil {
		logger.Errorf(ctx, "receipt for booking %d: publish: %v", bookingID, err)
	}
}

// Tickets lists the tickets of a booking visible to req.
func (s *BookingService) Tickets(ctx context.Context, req Requester, bookingID uint64) ([]model.Ticket, error) {
	if _, err := s.Get(ctx, req, bookingID); err != nil {
		return nil, err
	}
	return s.tickets.ListByBooking(ctx, bookingID)
}

// TicketByNumber returns a ticket to the holder of its booking or to an
// administrator.
func (s *BookingService) TicketByNumber(ctx context.Context, req Requester, number string) (*model.TicketOwnership, error) {
	t, err := s.tickets.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, wrapNotFound(err, "ticket not found")
	}
	if t.UserID != req.UserID && !req.IsAdmin() {
		return nil, fmt.Errorf("%w: ticket belongs to another user", repository.ErrForbidden)
	}
	return t, nil
}

// Receipt returns a paid booking with its tickets for rendering.
func (s *BookingService) Receipt(ctx context.Context, req Requester, bookingID uint64) (*model.BookingDetail, []model.Ticket, error) {
	d, err := s.Get(ctx, req, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if d.PaymentStatus != model.PaymentPaid {
		return nil, nil, fmt.Errorf("%w: receipt is available for paid bookings only", repository.ErrInvalidState)
	}
	tickets, err := s.tickets.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return d, tickets, nil
}

// wrapNotFound adds msg to a bare ErrNotFound.  Other errors pass through.
func wrapNotFound(err error, msg string) error {
	if err == repository.ErrNotFound {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, msg)
	}
	return err
}
