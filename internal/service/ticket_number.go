package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/event-booking/internal/model"
)

// TicketNumber builds the human-readable number of the unit-th ticket of
// b: TKT-<event>-<booking>-<8 random hex>-<unit>.  The random part comes
// from a v4 UUID; uniqueness is still enforced by the tickets table.
func TicketNumber(b model.Booking, unit int) string {
	r := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TKT-%d-%d-%s-%d", b.EventID, b.ID, r, unit)
}
