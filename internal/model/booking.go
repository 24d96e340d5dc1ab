package model

import "time"

// Booking confirmation states (bookings.booking_status).
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
)

// Settlement states (bookings.payment_status).  They move independently
// of the booking status.
const (
	PaymentUnpaid = "UNPAID"
	PaymentPaid   = "PAID"
)

// PaymentSuccess is the status written on every recorded payment.
const PaymentSuccess = "SUCCESS"

// Booking records a client's reservation against an event.  It
// aggregates the quantity and amount of its items.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – client who made the booking.
//  EventID          – event being booked.
//  Quantity         – total number of seats across items.
//  TotalAmountCents – Σ price × qty at booking time, in paise.
//  BookingStatus    – PENDING or CONFIRMED.
//  PaymentStatus    – UNPAID or PAID.
type Booking struct {
	ID               uint64    `json:"id"`
	UserID           uint64    `json:"user_id"`
	EventID          uint64    `json:"event_id"`
	Quantity         int       `json:"quantity"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	BookingStatus    string    `json:"booking_status"`
	PaymentStatus    string    `json:"payment_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsPending reports whether the booking can still be paid for or cancelled.
func (b Booking) IsPending() bool {
	return b.BookingStatus == BookingPending && b.PaymentStatus == PaymentUnpaid
}

// BookingItem is a per-package, per-day line of a booking.
type BookingItem struct {
	ID               uint64 `json:"id"`
	BookingID        uint64 `json:"booking_id"`
	PackageID        uint64 `json:"package_id"`
	PackageName      string `json:"package_name,omitempty"`
	Date             string `json:"date"`
	Qty              int    `json:"qty"`
	PriceAtTimeCents int64  `json:"price_at_time_cents"`
}

// Payment is the single successful transaction recorded for a booking.
type Payment struct {
	ID            uint64    `json:"id"`
	BookingID     uint64    `json:"booking_id"`
	AmountCents   int64     `json:"amount_cents"`
	UPIApp        string    `json:"upi_app"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// BookingDetail is a booking joined with the event, the booking user,
// its items and its payment.  It is the shape returned to clients.
type BookingDetail struct {
	Booking
	EventTitle     string        `json:"event_title"`
	EventLocation  string        `json:"event_location"`
	EventStartDate string        `json:"event_start_date"`
	EventEndDate   string        `json:"event_end_date"`
	OrganizerID    uint64        `json:"organizer_id"`
	UserName       string        `json:"user_name"`
	UserEmail      string        `json:"user_email"`
	Items          []BookingItem `json:"items"`
	Payment        *Payment      `json:"payment,omitempty"`
}
