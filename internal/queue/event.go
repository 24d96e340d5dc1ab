// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/event-booking/internal/model"
)

// BookingConfirmedQueue is the durable queue receiving confirmed bookings.
const BookingConfirmedQueue = "booking.confirmed"

// ReceiptLine is one booked package-day of a confirmed booking.
type ReceiptLine struct {
	PackageName string `json:"package_name"`
	Date        string `json:"date"`
	Qty         int    `json:"qty"`
	PriceCents  int64  `json:"price_cents"`
}

// BookingConfirmedEvent is published when a booking's payment is confirmed.
// It contains enough information for the receipt consumer to render a
// receipt without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64        `json:"booking_id"`
	UserID           uint64        `json:"user_id"`
	UserName         string        `json:"user_name"`
	UserEmail        string        `json:"user_email"`
	EventID          uint64        `json:"event_id"`
	EventTitle       string        `json:"event_title"`
	EventLocation    string        `json:"event_location"`
	StartDate        string        `json:"start_date"`
	EndDate          string        `json:"end_date"`
	Lines            []ReceiptLine `json:"lines"`
	Tickets          []string      `json:"tickets"`
	TransactionID    string        `json:"transaction_id"`
	UPIApp           string        `json:"upi_app"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	ConfirmedAt      string        `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the message for a confirmed booking.
func NewBookingConfirmedEvent(d *model.BookingDetail, tickets []model.Ticket) BookingConfirmedEvent {
	ev := BookingConfirmedEvent{
		BookingID:        d.ID,
		UserID:           d.UserID,
		UserName:         d.UserName,
		UserEmail:        d.UserEmail,
		EventID:          d.EventID,
		EventTitle:       d.EventTitle,
		EventLocation:    d.EventLocation,
		StartDate:        d.EventStartDate,
		EndDate:          d.EventEndDate,
		Lines:            make([]ReceiptLine, 0, len(d.Items)),
		Tickets:          make([]string, 0, len(tickets)),
		TotalAmountCents: d.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	for _, it := range d.Items {
		ev.Lines = append(ev.Lines, ReceiptLine{PackageName: it.PackageName, Date: it.Date, Qty: it.Qty, PriceCents: it.PriceAtTimeCents})
	}
	for _, t := range tickets {
		ev.Tickets = append(ev.Tickets, t.TicketNumber)
	}
	if d.Payment != nil {
		ev.TransactionID = d.Payment.TransactionID
		ev.UPIApp = d.Payment.UPIApp
	}
	return ev
}
