package model

import "time"

// Ticket is one purchased seat.  Tickets are issued when a booking's
// payment is confirmed, one per unit of quantity of each item.
type Ticket struct {
	ID            uint64    `json:"id"`
	BookingID     uint64    `json:"booking_id"`
	BookingItemID uint64    `json:"booking_item_id"`
	PackageID     uint64    `json:"package_id"`
	Date          string    `json:"date"`
	TicketNumber  string    `json:"ticket_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// TicketOwnership pairs a ticket with the user who holds its booking.
type TicketOwnership struct {
	Ticket
	UserID     uint64 `json:"user_id"`
	EventID    uint64 `json:"event_id"`
	EventTitle string `json:"event_title"`
}
